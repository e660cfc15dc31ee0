// Package sqlite is the persistence adapter for the account manager. It
// implements the store ports over modernc.org/sqlite through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlite")

const timeLayout = time.RFC3339Nano

// Foreign keys are declared for documentation only; the pragma stays off
// because imported transactions may name accounts that do not exist yet.
const schema = `
CREATE TABLE IF NOT EXISTS institutions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT NOT NULL UNIQUE,
	institution_type TEXT NOT NULL DEFAULT 'bank',
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	institution_id  INTEGER REFERENCES institutions(id),
	name            TEXT NOT NULL,
	account_type    TEXT NOT NULL,
	currency        TEXT NOT NULL DEFAULT 'USD',
	current_balance REAL NOT NULL DEFAULT 0,
	is_active       INTEGER NOT NULL DEFAULT 1,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS credit_card_details (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id        INTEGER NOT NULL UNIQUE REFERENCES accounts(id),
	issuer_name       TEXT NOT NULL,
	apr               REAL,
	statement_day     INTEGER NOT NULL DEFAULT 1,
	due_day           INTEGER NOT NULL DEFAULT 20,
	due_date_override TEXT,
	min_payment_due   REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transactions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id       INTEGER NOT NULL REFERENCES accounts(id),
	transaction_date TEXT NOT NULL,
	description      TEXT NOT NULL,
	amount           REAL NOT NULL,
	category         TEXT,
	merchant         TEXT,
	notes            TEXT
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);

CREATE TABLE IF NOT EXISTS balance_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id    INTEGER NOT NULL REFERENCES accounts(id),
	snapshot_date TEXT NOT NULL,
	balance       REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_balance_snapshots_account ON balance_snapshots(account_id);

CREATE TABLE IF NOT EXISTS import_jobs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name TEXT NOT NULL,
	import_type TEXT NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reward_rules (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id      INTEGER NOT NULL REFERENCES accounts(id),
	category        TEXT NOT NULL,
	multiplier      REAL NOT NULL DEFAULT 1,
	point_currency  TEXT NOT NULL DEFAULT 'points',
	cap_description TEXT,
	exclusions      TEXT
);
CREATE INDEX IF NOT EXISTS idx_reward_rules_category ON reward_rules(category);

CREATE TABLE IF NOT EXISTS offers (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id       INTEGER NOT NULL REFERENCES accounts(id),
	title            TEXT NOT NULL,
	merchant         TEXT,
	category         TEXT,
	bonus_multiplier REAL NOT NULL DEFAULT 0,
	valid_until      TEXT,
	details          TEXT
);
CREATE INDEX IF NOT EXISTS idx_offers_account ON offers(account_id);

CREATE TABLE IF NOT EXISTS linked_items (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id             TEXT NOT NULL UNIQUE,
	institution_id      INTEGER NOT NULL REFERENCES institutions(id),
	institution_name    TEXT NOT NULL,
	access_token_sealed TEXT NOT NULL,
	is_active           INTEGER NOT NULL DEFAULT 1,
	created_at          TEXT NOT NULL
);
`

// querier is the subset of *sql.DB and *sql.Tx the stores use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements the account, card, import, reward and link store ports.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and :memory: databases
	// are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================
// helpers
// ============================================================

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTimestamp(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func dateArg(d *domain.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanDate(ns sql.NullString) (*domain.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(ns.String)
	if err != nil {
		return nil, fmt.Errorf("stored date %q: %w", ns.String, err)
	}
	return &d, nil
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(resource string, id int64) error {
	return &domain.ErrNotFound{Resource: resource, ID: fmt.Sprintf("%d", id)}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
