package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/infra/resilience"
	"github.com/boddenberg/account-manager-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var importTracer = otel.Tracer("service/imports")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrUnknownImportType fails a batch whose type is neither balances nor transactions.
var ErrUnknownImportType = errors.New("import_type must be balances or transactions")

// ImportService ingests CSV batches. Each batch is all-or-nothing and
// leaves exactly one terminal ImportJob behind.
type ImportService struct {
	store    port.ImportStore
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewImportService creates a new import service. bulkhead bounds how many
// batches run at once.
func NewImportService(store port.ImportStore, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *ImportService {
	return &ImportService{store: store, bulkhead: bulkhead, metrics: metrics, logger: logger}
}

// Import processes one CSV upload and returns the job that records it.
// Data problems never surface as an error: they roll the batch back and are
// reported through a failed job. The error is non-nil only when even the
// failed job could not be written.
func (s *ImportService) Import(ctx context.Context, content []byte, importType, sourceName string) (*domain.ImportJob, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.Import")
	defer span.End()

	if strings.TrimSpace(sourceName) == "" {
		sourceName = domain.DefaultImportSource
	}
	span.SetAttributes(
		attribute.String("import.type", importType),
		attribute.String("import.source", sourceName),
		attribute.Int("import.bytes", len(content)),
	)

	var (
		job  *domain.ImportJob
		rows int
	)
	start := time.Now()
	err := s.bulkhead.Do(ctx, func() error {
		var err error
		job, rows, err = s.run(ctx, content, importType, sourceName)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("import could not be recorded",
			zap.String("import_type", importType),
			zap.String("source", sourceName),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordImport(metricsLabel(importType), job.Status, rows, time.Since(start))

	fields := []zap.Field{
		zap.Int64("job_id", job.ID),
		zap.String("import_type", importType),
		zap.String("source", sourceName),
		zap.String("status", string(job.Status)),
		zap.String("message", job.MessageText()),
	}
	if job.Status == domain.ImportStatusFailed {
		span.SetStatus(codes.Error, job.MessageText())
		s.logger.Warn("import failed", fields...)
	} else {
		s.logger.Info("import completed", append(fields, zap.Int("rows", rows))...)
	}
	return job, nil
}

// ListJobs returns the most recent import jobs, newest first.
func (s *ImportService) ListJobs(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.ListJobs")
	defer span.End()

	return s.store.ListImportJobs(ctx, limit)
}

func (s *ImportService) run(ctx context.Context, content []byte, importType, sourceName string) (*domain.ImportJob, int, error) {
	var (
		completed *domain.ImportJob
		rows      int
	)
	batchErr := s.store.WithinTx(ctx, func(tx port.ImportTx) error {
		jobID, err := tx.CreateImportJob(ctx, &domain.ImportJob{
			SourceName: sourceName,
			ImportType: domain.ImportType(importType),
			Status:     domain.ImportStatusProcessing,
		})
		if err != nil {
			return err
		}

		n, err := processBatch(ctx, tx, content, importType)
		if err != nil {
			return err
		}

		msg := fmt.Sprintf("Imported %d rows.", n)
		if err := tx.UpdateImportJob(ctx, jobID, domain.ImportStatusCompleted, msg); err != nil {
			return err
		}
		completed = &domain.ImportJob{
			ID:         jobID,
			SourceName: sourceName,
			ImportType: domain.ImportType(importType),
			Status:     domain.ImportStatusCompleted,
			Message:    &msg,
		}
		rows = n
		return nil
	})
	if batchErr == nil {
		return completed, rows, nil
	}

	msg := batchErr.Error()
	failed, err := s.store.RecordImportJob(ctx, &domain.ImportJob{
		SourceName: sourceName,
		ImportType: domain.ImportType(importType),
		Status:     domain.ImportStatusFailed,
		Message:    &msg,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("record failed import (%s): %w", msg, err)
	}
	return failed, 0, nil
}

func processBatch(ctx context.Context, tx port.ImportTx, content []byte, importType string) (int, error) {
	var handle func(ctx context.Context, tx port.ImportTx, r *csvRows) (int, error)
	switch domain.ImportType(importType) {
	case domain.ImportTypeBalances:
		handle = importBalances
	case domain.ImportTypeTransactions:
		handle = importTransactions
	default:
		return 0, ErrUnknownImportType
	}

	r, err := newCSVRows(content)
	if err != nil {
		return 0, err
	}
	return handle(ctx, tx, r)
}

// importBalances writes one snapshot per row. Rows naming an unknown account
// are skipped before any other field is read. The last row per account sets
// its current balance.
func importBalances(ctx context.Context, tx port.ImportTx, r *csvRows) (int, error) {
	exists := map[int64]bool{}
	latest := map[int64]float64{}
	var order []int64
	inserted := 0

	for {
		row, err := r.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}

		accountID, err := row.intField("account_id")
		if err != nil {
			return 0, err
		}
		ok, seen := exists[accountID]
		if !seen {
			if ok, err = tx.AccountExists(ctx, accountID); err != nil {
				return 0, err
			}
			exists[accountID] = ok
		}
		if !ok {
			continue
		}

		date, err := row.dateField("snapshot_date")
		if err != nil {
			return 0, err
		}
		balance, err := row.decimalField("balance")
		if err != nil {
			return 0, err
		}

		if err := tx.InsertBalanceSnapshot(ctx, &domain.BalanceSnapshot{
			AccountID:    accountID,
			SnapshotDate: date,
			Balance:      balance,
		}); err != nil {
			return 0, err
		}
		if _, ok := latest[accountID]; !ok {
			order = append(order, accountID)
		}
		latest[accountID] = balance
		inserted++
	}

	for _, id := range order {
		if err := tx.SetAccountBalance(ctx, id, latest[id]); err != nil {
			return 0, err
		}
	}
	return inserted, nil
}

// importTransactions writes one transaction per row. Account ids are not
// checked against existing accounts.
func importTransactions(ctx context.Context, tx port.ImportTx, r *csvRows) (int, error) {
	inserted := 0
	for {
		row, err := r.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}

		accountID, err := row.intField("account_id")
		if err != nil {
			return 0, err
		}
		date, err := row.dateField("transaction_date")
		if err != nil {
			return 0, err
		}
		description, err := row.strField("description")
		if err != nil {
			return 0, err
		}
		amount, err := row.decimalField("amount")
		if err != nil {
			return 0, err
		}

		if err := tx.InsertTransaction(ctx, &domain.Transaction{
			AccountID:       accountID,
			TransactionDate: date,
			Description:     description,
			Amount:          amount,
			Category:        row.optionalField("category"),
			Merchant:        row.optionalField("merchant"),
		}); err != nil {
			return 0, err
		}
		inserted++
	}
	return inserted, nil
}

func metricsLabel(importType string) string {
	switch domain.ImportType(importType) {
	case domain.ImportTypeBalances, domain.ImportTypeTransactions:
		return importType
	}
	return observability.InvalidImportType
}

// ============================================================
// CSV reading
// ============================================================

// csvRows reads a header row followed by data rows. Rows may be shorter or
// longer than the header: cells past the header are ignored, and a header
// column with no cell in a row reads as absent. A repeated header name maps
// to its last column.
type csvRows struct {
	reader *csv.Reader
	header map[string]int
	read   bool
}

type csvRow struct {
	line   int
	fields []string
	header map[string]int
}

func newCSVRows(content []byte) (*csvRows, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, errors.New("file is not valid UTF-8")
	}
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	return &csvRows{reader: r}, nil
}

// next returns the following data row or io.EOF.
func (c *csvRows) next() (*csvRow, error) {
	if !c.read {
		c.read = true
		names, err := c.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		c.header = make(map[string]int, len(names))
		for i, n := range names {
			c.header[n] = i
		}
	}

	fields, err := c.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("malformed csv: %w", err)
	}
	line, _ := c.reader.FieldPos(0)
	return &csvRow{line: line, fields: fields, header: c.header}, nil
}

func (r *csvRow) strField(col string) (string, error) {
	i, ok := r.header[col]
	if !ok {
		return "", fmt.Errorf("line %d: missing column %q", r.line, col)
	}
	if i >= len(r.fields) {
		return "", fmt.Errorf("line %d: missing value for %q", r.line, col)
	}
	return r.fields[i], nil
}

func (r *csvRow) optionalField(col string) *string {
	i, ok := r.header[col]
	if !ok || i >= len(r.fields) || r.fields[i] == "" {
		return nil
	}
	v := r.fields[i]
	return &v
}

func (r *csvRow) intField(col string) (int64, error) {
	raw, err := r.strField(col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s %q", r.line, col, raw)
	}
	return v, nil
}

// dateField accepts exactly YYYY-MM-DD; surrounding whitespace is an error.
func (r *csvRow) dateField(col string) (domain.Date, error) {
	raw, err := r.strField(col)
	if err != nil {
		return domain.Date{}, err
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, fmt.Errorf("line %d: invalid %s %q, expected YYYY-MM-DD", r.line, col, raw)
	}
	return d, nil
}

func (r *csvRow) decimalField(col string) (float64, error) {
	raw, err := r.strField(col)
	if err != nil {
		return 0, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s %q", r.line, col, raw)
	}
	f, _ := d.Float64()
	return f, nil
}
