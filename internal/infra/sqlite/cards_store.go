package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/domain"
)

// ============================================================
// Credit Cards
// ============================================================

const cardColumns = `id, account_id, issuer_name, apr, statement_day, due_day, due_date_override, min_payment_due`

func (s *Store) CreateCard(ctx context.Context, req *domain.CardCreate) (*domain.CreditCardDetail, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateCard")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_card_details (account_id, issuer_name, apr, statement_day, due_day, due_date_override, min_payment_due)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.AccountID, req.IssuerName, req.APR, req.StatementDay, req.DueDay, dateArg(req.DueDateOverride), req.MinPaymentDue,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &domain.ErrConflict{Message: fmt.Sprintf("account %d already has card details", req.AccountID)}
		}
		return nil, fmt.Errorf("insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert card id: %w", err)
	}

	return &domain.CreditCardDetail{
		ID:              id,
		AccountID:       req.AccountID,
		IssuerName:      req.IssuerName,
		APR:             req.APR,
		StatementDay:    req.StatementDay,
		DueDay:          req.DueDay,
		DueDateOverride: req.DueDateOverride,
		MinPaymentDue:   req.MinPaymentDue,
	}, nil
}

func (s *Store) ListCards(ctx context.Context) ([]domain.CreditCardDetail, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListCards")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM credit_card_details ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards := []domain.CreditCardDetail{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

func (s *Store) GetCard(ctx context.Context, id int64) (*domain.CreditCardDetail, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetCard")
	defer span.End()

	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM credit_card_details WHERE id = ?`, id)
	card, err := scanCard(row)
	if isNoRows(err) {
		return nil, notFound("card", id)
	}
	return card, err
}

func (s *Store) SetDueDateOverride(ctx context.Context, id int64, override *domain.Date) (*domain.CreditCardDetail, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SetDueDateOverride")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE credit_card_details SET due_date_override = ? WHERE id = ?`, dateArg(override), id)
	if err != nil {
		return nil, fmt.Errorf("update due date override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("card", id)
	}
	return s.GetCard(ctx, id)
}

func scanCard(r rowScanner) (*domain.CreditCardDetail, error) {
	var (
		card     domain.CreditCardDetail
		apr      sql.NullFloat64
		override sql.NullString
	)
	if err := r.Scan(&card.ID, &card.AccountID, &card.IssuerName, &apr, &card.StatementDay, &card.DueDay, &override, &card.MinPaymentDue); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan card: %w", err)
	}
	if apr.Valid {
		v := apr.Float64
		card.APR = &v
	}
	d, err := scanDate(override)
	if err != nil {
		return nil, err
	}
	card.DueDateOverride = d
	return &card, nil
}
