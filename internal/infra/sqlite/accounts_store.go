package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/domain"
)

// ============================================================
// Accounts
// ============================================================

const accountColumns = `id, institution_id, name, account_type, currency, current_balance, is_active, created_at`

func (s *Store) CreateAccount(ctx context.Context, req *domain.AccountCreate) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateAccount")
	defer span.End()

	acct := domain.Account{
		InstitutionID:  req.InstitutionID,
		Name:           req.Name,
		AccountType:    req.AccountType,
		Currency:       req.Currency,
		CurrentBalance: req.CurrentBalance,
		IsActive:       true,
	}
	if err := s.insertAccount(ctx, s.db, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *Store) insertAccount(ctx context.Context, q querier, acct *domain.Account) error {
	created := s.timestamp()
	res, err := q.ExecContext(ctx,
		`INSERT INTO accounts (institution_id, name, account_type, currency, current_balance, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		acct.InstitutionID, acct.Name, string(acct.AccountType), acct.Currency, acct.CurrentBalance, boolArg(acct.IsActive), created,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert account id: %w", err)
	}
	acct.ID = id
	acct.CreatedAt = parseTimestamp(created)
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListAccounts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetAccount")
	defer span.End()

	return getAccount(ctx, s.db, id)
}

// CountAccounts returns the number of stored accounts.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func getAccount(ctx context.Context, q querier, id int64) (*domain.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	acct, err := scanAccount(row)
	if isNoRows(err) {
		return nil, notFound("account", id)
	}
	return acct, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*domain.Account, error) {
	var (
		acct    domain.Account
		instID  sql.NullInt64
		acctTyp string
		active  int
		created string
	)
	if err := r.Scan(&acct.ID, &instID, &acct.Name, &acctTyp, &acct.Currency, &acct.CurrentBalance, &active, &created); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	if instID.Valid {
		v := instID.Int64
		acct.InstitutionID = &v
	}
	acct.AccountType = domain.AccountType(acctTyp)
	acct.IsActive = active != 0
	acct.CreatedAt = parseTimestamp(created)
	return &acct, nil
}
