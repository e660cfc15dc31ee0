package service

import (
	"context"
	"sort"
	"time"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var dueTracer = otel.Tracer("service/duedates")

const (
	minDueDay = 1
	maxDueDay = 28
)

// ResolveNextDueDate returns the next payment date for a card.
// An override always wins, even when it is in the past. Otherwise the due
// day is clamped to [1,28] so it exists in every month, and this month's
// date is used unless it has already passed.
func ResolveNextDueDate(dueDay int, override *domain.Date, today time.Time) domain.Date {
	if override != nil {
		return *override
	}

	day := dueDay
	if day < minDueDay {
		day = minDueDay
	}
	if day > maxDueDay {
		day = maxDueDay
	}

	t := domain.NewDate(today)
	y, m, _ := t.Date()
	candidate := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	if !candidate.Before(t.Time) {
		return domain.Date{Time: candidate}
	}
	return domain.Date{Time: time.Date(y, m+1, day, 0, 0, 0, 0, time.UTC)}
}

// DueDateService lists upcoming card payments.
type DueDateService struct {
	accounts port.AccountStore
	cards    port.CardStore
	clock    port.Clock
	logger   *zap.Logger
}

// NewDueDateService creates a new due-date service. A nil clock means time.Now.
func NewDueDateService(accounts port.AccountStore, cards port.CardStore, clock port.Clock, logger *zap.Logger) *DueDateService {
	if clock == nil {
		clock = time.Now
	}
	return &DueDateService{accounts: accounts, cards: cards, clock: clock, logger: logger}
}

// ListUpcoming resolves every card's next due date, sorted by days remaining.
// Cards whose account no longer exists are skipped.
func (s *DueDateService) ListUpcoming(ctx context.Context) ([]domain.DueDateItem, error) {
	ctx, span := dueTracer.Start(ctx, "DueDateService.ListUpcoming")
	defer span.End()

	cards, err := s.cards.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	today := domain.NewDate(s.clock())
	items := make([]domain.DueDateItem, 0, len(cards))
	for _, card := range cards {
		acct, ok := byID[card.AccountID]
		if !ok {
			s.logger.Debug("skipping card without account",
				zap.Int64("card_id", card.ID),
				zap.Int64("account_id", card.AccountID),
			)
			continue
		}
		due := ResolveNextDueDate(card.DueDay, card.DueDateOverride, today.Time)
		items = append(items, domain.DueDateItem{
			CardAccountID: card.AccountID,
			CardName:      acct.Name,
			DueDate:       due,
			MinPaymentDue: card.MinPaymentDue,
			DaysRemaining: today.DaysUntil(due),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DaysRemaining < items[j].DaysRemaining
	})

	span.SetAttributes(attribute.Int("due_dates.count", len(items)))
	return items, nil
}
