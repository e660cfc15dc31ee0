package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/port"
)

// ============================================================
// CSV import batches & job audit trail
// ============================================================

// WithinTx runs fn inside one transaction, committing only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx port.ImportTx) error) error {
	ctx, span := tracer.Start(ctx, "SQLite.WithinTx")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&importTx{tx: tx, store: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Sugar().Warnw("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) RecordImportJob(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error) {
	ctx, span := tracer.Start(ctx, "SQLite.RecordImportJob")
	defer span.End()

	id, created, err := s.insertImportJob(ctx, s.db, job)
	if err != nil {
		return nil, err
	}
	out := *job
	out.ID = id
	out.CreatedAt = parseTimestamp(created)
	return &out, nil
}

func (s *Store) ListImportJobs(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListImportJobs")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_name, import_type, status, message, created_at
		 FROM import_jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ImportJob{}
	for rows.Next() {
		var (
			job     domain.ImportJob
			typ     string
			status  string
			message sql.NullString
			created string
		)
		if err := rows.Scan(&job.ID, &job.SourceName, &typ, &status, &message, &created); err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		job.ImportType = domain.ImportType(typ)
		job.Status = domain.ImportStatus(status)
		if message.Valid {
			m := message.String
			job.Message = &m
		}
		job.CreatedAt = parseTimestamp(created)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) insertImportJob(ctx context.Context, q querier, job *domain.ImportJob) (int64, string, error) {
	created := s.timestamp()
	res, err := q.ExecContext(ctx,
		`INSERT INTO import_jobs (source_name, import_type, status, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		job.SourceName, string(job.ImportType), string(job.Status), job.Message, created)
	if err != nil {
		return 0, "", fmt.Errorf("insert import job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", fmt.Errorf("insert import job id: %w", err)
	}
	return id, created, nil
}

// importTx scopes every write to one *sql.Tx.
type importTx struct {
	tx    *sql.Tx
	store *Store
}

func (t *importTx) CreateImportJob(ctx context.Context, job *domain.ImportJob) (int64, error) {
	id, _, err := t.store.insertImportJob(ctx, t.tx, job)
	return id, err
}

func (t *importTx) UpdateImportJob(ctx context.Context, id int64, status domain.ImportStatus, message string) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE import_jobs SET status = ?, message = ? WHERE id = ?`, string(status), message, id); err != nil {
		return fmt.Errorf("update import job: %w", err)
	}
	return nil
}

func (t *importTx) AccountExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup account: %w", err)
	}
	return true, nil
}

func (t *importTx) InsertBalanceSnapshot(ctx context.Context, snap *domain.BalanceSnapshot) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO balance_snapshots (account_id, snapshot_date, balance) VALUES (?, ?, ?)`,
		snap.AccountID, snap.SnapshotDate.String(), snap.Balance); err != nil {
		return fmt.Errorf("insert balance snapshot: %w", err)
	}
	return nil
}

func (t *importTx) SetAccountBalance(ctx context.Context, id int64, balance float64) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET current_balance = ? WHERE id = ?`, balance, id); err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return nil
}

func (t *importTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (account_id, transaction_date, description, amount, category, merchant, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.AccountID, txn.TransactionDate.String(), txn.Description, txn.Amount, txn.Category, txn.Merchant, txn.Notes); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListBalanceSnapshots returns every snapshot for an account, oldest first.
func (s *Store) ListBalanceSnapshots(ctx context.Context, accountID int64) ([]domain.BalanceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, snapshot_date, balance FROM balance_snapshots WHERE account_id = ? ORDER BY id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list balance snapshots: %w", err)
	}
	defer rows.Close()

	out := []domain.BalanceSnapshot{}
	for rows.Next() {
		var (
			snap domain.BalanceSnapshot
			date string
		)
		if err := rows.Scan(&snap.ID, &snap.AccountID, &date, &snap.Balance); err != nil {
			return nil, fmt.Errorf("scan balance snapshot: %w", err)
		}
		d, err := domain.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		snap.SnapshotDate = d
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ListTransactions returns every transaction for an account, oldest first.
func (s *Store) ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, transaction_date, description, amount, category, merchant, notes
		 FROM transactions WHERE account_id = ? ORDER BY id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		var (
			txn  domain.Transaction
			date string
		)
		if err := rows.Scan(&txn.ID, &txn.AccountID, &date, &txn.Description, &txn.Amount, &txn.Category, &txn.Merchant, &txn.Notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := domain.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		txn.TransactionDate = d
		out = append(out, txn)
	}
	return out, rows.Err()
}
