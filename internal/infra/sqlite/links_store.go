package sqlite

import (
	"context"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/domain"
)

// ============================================================
// Linked institutions
// ============================================================

// SaveLinkedItem upserts the institution by name, stores the item and
// creates its accounts in one transaction.
func (s *Store) SaveLinkedItem(ctx context.Context, item *domain.LinkedItem, accounts []domain.Account) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SaveLinkedItem")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var instID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM institutions WHERE name = ?`, item.InstitutionName).Scan(&instID)
	switch {
	case isNoRows(err):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO institutions (name, institution_type, created_at) VALUES (?, 'bank', ?)`,
			item.InstitutionName, s.timestamp())
		if err != nil {
			return nil, fmt.Errorf("insert institution: %w", err)
		}
		if instID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert institution id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup institution: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO linked_items (item_id, institution_id, institution_name, access_token_sealed, is_active, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		item.ItemID, instID, item.InstitutionName, item.AccessTokenSealed, s.timestamp())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &domain.ErrConflict{Message: fmt.Sprintf("item %s is already linked", item.ItemID)}
		}
		return nil, fmt.Errorf("insert linked item: %w", err)
	}
	if item.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert linked item id: %w", err)
	}
	item.InstitutionID = instID
	item.IsActive = true

	created := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		a.InstitutionID = &instID
		a.IsActive = true
		if err := s.insertAccount(ctx, tx, &a); err != nil {
			return nil, err
		}
		created = append(created, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit linked item: %w", err)
	}
	return created, nil
}

func (s *Store) ListActiveLinkedItems(ctx context.Context) ([]domain.LinkedItem, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListActiveLinkedItems")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, institution_id, institution_name, access_token_sealed, is_active
		 FROM linked_items WHERE is_active = 1 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list linked items: %w", err)
	}
	defer rows.Close()

	items := []domain.LinkedItem{}
	for rows.Next() {
		var (
			it     domain.LinkedItem
			active int
		)
		if err := rows.Scan(&it.ID, &it.ItemID, &it.InstitutionID, &it.InstitutionName, &it.AccessTokenSealed, &active); err != nil {
			return nil, fmt.Errorf("scan linked item: %w", err)
		}
		it.IsActive = active != 0
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) FindInstitutionAccount(ctx context.Context, institutionID int64, name string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindInstitutionAccount")
	defer span.End()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE institution_id = ? AND name = ? ORDER BY id ASC LIMIT 1`,
		institutionID, name)
	acct, err := scanAccount(row)
	if isNoRows(err) {
		return nil, nil
	}
	return acct, err
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id int64, balance float64) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateAccountBalance")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET current_balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("account", id)
	}
	return nil
}
