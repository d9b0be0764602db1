// Package services – LedgerService
//
// This file implements the LedgerService, the single source of truth for an
// account's spendable balance and progression state. All mutations of
// credits, XP, and badges go through it; the orchestrator and the payment
// webhook boundary never touch the account row directly.
//
// Concurrency contract: the debit check-and-apply is a single conditional
// UPDATE in the repo layer, so two concurrent requests from the same account
// can never both spend the last credit. XP awards run in a transaction that
// re-reads the row, serializing badge evaluation per account.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
	"github.com/gamelore-ai/gamelore-backend/internal/repo"
)

// Payment webhook event types the ledger reacts to.
const (
	EventCreditsPurchased      = "credits_purchased"
	EventSubscriptionActivated = "subscription_activated"
)

// BadgeThreshold ties a badge name to the XP score that unlocks it.
type BadgeThreshold struct {
	XP   int
	Name string
}

// DefaultBadgeThresholds is the stock progression ladder, in ascending order.
var DefaultBadgeThresholds = []BadgeThreshold{
	{XP: 50, Name: "Scribe"},
	{XP: 200, Name: "World Builder"},
}

// LedgerService owns credits, XP, and badge state for accounts.
type LedgerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// StartCredits is the balance granted to a newly seen identity.
	StartCredits int
	// Thresholds is the badge ladder, ascending by XP. Nil selects
	// DefaultBadgeThresholds.
	Thresholds []BadgeThreshold
}

// NewLedgerService constructs a LedgerService with the stock badge ladder.
func NewLedgerService(db *gorm.DB, startCredits int) *LedgerService {
	return &LedgerService{
		DB:           db,
		StartCredits: startCredits,
		Thresholds:   DefaultBadgeThresholds,
	}
}

func (s *LedgerService) thresholds() []BadgeThreshold {
	if s.Thresholds != nil {
		return s.Thresholds
	}
	return DefaultBadgeThresholds
}

// GetOrCreate returns the account for an external identity, creating it with
// the configured starting balance on first sight. Creation races resolve to
// the winning row.
func (s *LedgerService) GetOrCreate(ctx context.Context, id, name string) (*domain.Account, error) {
	a, err := repo.GetAccount(ctx, s.DB, id)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	a, err = repo.CreateAccount(ctx, s.DB, id, name, s.StartCredits)
	if err == nil {
		return a, nil
	}
	// Lost a creation race: another request inserted the row first.
	if existing, gerr := repo.GetAccount(ctx, s.DB, id); gerr == nil {
		return existing, nil
	}
	return nil, err
}

// DebitOneCredit spends one credit of the account. Subscribed accounts are a
// no-op success with debited=false. For everyone else the decrement is
// atomic; an exhausted balance yields ErrInsufficientCredits and debited
// reports whether a credit was actually taken (callers use it to decide
// whether a refund applies later).
func (s *LedgerService) DebitOneCredit(ctx context.Context, accountID string) (debited bool, err error) {
	a, err := repo.GetAccount(ctx, s.DB, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, ErrAccountNotFound
		}
		return false, err
	}
	if a.Subscribed {
		return false, nil
	}
	if err := repo.DebitOneCredit(ctx, s.DB, accountID); err != nil {
		if errors.Is(err, repo.ErrNoCredits) {
			return false, ErrInsufficientCredits
		}
		return false, err
	}
	return true, nil
}

// Refund returns one previously debited credit to the account. It is the
// compensation step for total producer failure and for commit failures; it
// must only be called when DebitOneCredit reported debited=true.
func (s *LedgerService) Refund(ctx context.Context, accountID string) error {
	return repo.AddCredits(ctx, s.DB, accountID, 1)
}

// AwardXP adds amount to the account's XP and unlocks any badge whose
// threshold the new score crosses, in ascending order. Already-held badges
// are never re-awarded, so replaying the same delta is safe. The updated
// account is returned.
func (s *LedgerService) AwardXP(ctx context.Context, accountID string, amount int) (*domain.Account, error) {
	var out *domain.Account
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.awardXPTx(ctx, tx, accountID, amount)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// awardXPTx is AwardXP running on an existing transaction handle; the
// orchestrator uses it so the XP update commits or rolls back together with
// the record append.
func (s *LedgerService) awardXPTx(ctx context.Context, tx *gorm.DB, accountID string, amount int) (*domain.Account, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "AwardXP",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.Int("xp.delta", amount),
		),
	)
	defer span.End()

	a, err := repo.GetAccount(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if amount > 0 {
		a.XP += amount
	}
	for _, th := range s.thresholds() {
		if a.XP >= th.XP {
			a.Badges.Add(th.Name)
		}
	}

	if err := repo.UpdateProgress(ctx, tx, accountID, a.XP, a.Badges); err != nil {
		return nil, err
	}
	return a, nil
}

// ApplyPaymentEvent reacts to an asynchronous payment webhook delivery.
// The event marker insert and the ledger mutation share one transaction, so a
// replayed delivery (same event id) returns ErrDuplicateEvent without
// touching the balance, and a failed mutation leaves no marker behind.
func (s *LedgerService) ApplyPaymentEvent(ctx context.Context, eventID, accountID, eventType string, credits int) error {
	switch eventType {
	case EventCreditsPurchased, EventSubscriptionActivated:
	default:
		return ErrUnknownEventType
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreatePaymentEvent(ctx, tx, eventID, accountID, eventType, credits); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateEvent
			}
			return err
		}
		switch eventType {
		case EventCreditsPurchased:
			if credits <= 0 {
				return ErrInvalidRequest
			}
			if err := repo.AddCredits(ctx, tx, accountID, credits); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
		case EventSubscriptionActivated:
			if err := repo.SetSubscribed(ctx, tx, accountID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
		}
		return nil
	})
}
