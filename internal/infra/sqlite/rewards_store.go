package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/domain"
)

// ============================================================
// Rewards & Offers
// ============================================================

func (s *Store) CreateRewardRule(ctx context.Context, rule *domain.RewardRule) (*domain.RewardRule, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateRewardRule")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reward_rules (account_id, category, multiplier, point_currency, cap_description, exclusions)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rule.AccountID, rule.Category, rule.Multiplier, rule.PointCurrency, rule.CapDescription, rule.Exclusions)
	if err != nil {
		return nil, fmt.Errorf("insert reward rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert reward rule id: %w", err)
	}
	out := *rule
	out.ID = id
	return &out, nil
}

func (s *Store) CreateOffer(ctx context.Context, offer *domain.Offer) (*domain.Offer, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateOffer")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO offers (account_id, title, merchant, category, bonus_multiplier, valid_until, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		offer.AccountID, offer.Title, offer.Merchant, offer.Category, offer.BonusMultiplier, offer.ValidUntil, offer.Details)
	if err != nil {
		return nil, fmt.Errorf("insert offer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert offer id: %w", err)
	}
	out := *offer
	out.ID = id
	return &out, nil
}

func (s *Store) ListRuleCandidates(ctx context.Context, category string) ([]domain.RuleCandidate, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListRuleCandidates")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.account_id, r.category, r.multiplier, r.point_currency, r.cap_description, r.exclusions,
		        a.id, a.institution_id, a.name, a.account_type, a.currency, a.current_balance, a.is_active, a.created_at
		 FROM reward_rules r
		 JOIN accounts a ON a.id = r.account_id
		 WHERE r.category = ?
		 ORDER BY r.id ASC`, category)
	if err != nil {
		return nil, fmt.Errorf("list rule candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.RuleCandidate
	for rows.Next() {
		var (
			c       domain.RuleCandidate
			instID  sql.NullInt64
			acctTyp string
			active  int
			created string
		)
		if err := rows.Scan(
			&c.Rule.ID, &c.Rule.AccountID, &c.Rule.Category, &c.Rule.Multiplier, &c.Rule.PointCurrency,
			&c.Rule.CapDescription, &c.Rule.Exclusions,
			&c.Account.ID, &instID, &c.Account.Name, &acctTyp, &c.Account.Currency,
			&c.Account.CurrentBalance, &active, &created,
		); err != nil {
			return nil, fmt.Errorf("scan rule candidate: %w", err)
		}
		if instID.Valid {
			v := instID.Int64
			c.Account.InstitutionID = &v
		}
		c.Account.AccountType = domain.AccountType(acctTyp)
		c.Account.IsActive = active != 0
		c.Account.CreatedAt = parseTimestamp(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListOffersByAccount(ctx context.Context, accountID int64) ([]domain.Offer, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListOffersByAccount")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, title, merchant, category, bonus_multiplier, valid_until, details
		 FROM offers WHERE account_id = ? ORDER BY id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := []domain.Offer{}
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Title, &o.Merchant, &o.Category, &o.BonusMultiplier, &o.ValidUntil, &o.Details); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}
