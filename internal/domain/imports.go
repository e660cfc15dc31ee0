package domain

import "time"

// ============================================================
// CSV Imports
// ============================================================

// ImportType selects which record kind a CSV batch produces.
type ImportType string

const (
	ImportTypeBalances     ImportType = "balances"
	ImportTypeTransactions ImportType = "transactions"
)

// ImportStatus is the lifecycle state of an ImportJob.
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// DefaultImportSource names uploads that arrive without a source.
const DefaultImportSource = "manual_upload"

// ImportJob is the audit record of one import invocation. Callers only ever
// see it in a terminal state (completed or failed).
type ImportJob struct {
	ID         int64        `json:"id"`
	SourceName string       `json:"source_name"`
	ImportType ImportType   `json:"import_type"`
	Status     ImportStatus `json:"status"`
	Message    *string      `json:"message"`
	CreatedAt  time.Time    `json:"-"`
}

// MessageText returns the job message or an empty string.
func (j *ImportJob) MessageText() string {
	if j.Message == nil {
		return ""
	}
	return *j.Message
}
