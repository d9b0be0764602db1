// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Account
// model: creation, lookup, and the atomic ledger mutations (credit debit,
// credit grant, XP update, subscription flag).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition. Badge evaluation and refund policy live in the
// service layer.
//
// Error semantics:
//   - When an account is not found, functions return ErrNotFound (an alias of
//     gorm.ErrRecordNotFound).
//   - DebitOneCredit returns ErrNoCredits when the conditional decrement
//     matched no row, i.e. the balance was already zero.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrNoCredits is returned by DebitOneCredit when the account balance is
// already zero and the conditional decrement therefore matched no row.
var ErrNoCredits = errors.New("no credits")

// GetAccount fetches an account by id, or ErrNotFound if missing.
func GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account row with the given starting balance.
// Badges default to the empty set and timestamps are set to UTC.
func CreateAccount(ctx context.Context, db *gorm.DB, id, name string, startCredits int) (*domain.Account, error) {
	a := &domain.Account{
		ID:        id,
		Name:      name,
		Credits:   startCredits,
		Badges:    domain.BadgeSet{},
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// DebitOneCredit atomically decrements the balance of an unsubscribed account
// by one, but only while at least one credit remains. The check and the
// decrement are a single conditional UPDATE, so two concurrent debits with one
// credit left can never both succeed.
//
// It returns ErrNoCredits when the balance was already exhausted. Subscription
// handling is the caller's concern; this function assumes the account is not
// subscribed.
func DebitOneCredit(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ? AND subscribed = ? AND credits >= 1", id, false).
		Update("credits", gorm.Expr("credits - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoCredits
	}
	return nil
}

// AddCredits atomically increments an account's balance by n. Returns
// ErrNotFound when the account does not exist.
func AddCredits(ctx context.Context, db *gorm.DB, id string, n int) error {
	res := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		Update("credits", gorm.Expr("credits + ?", n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSubscribed flips an account to the subscribed tier. Returns ErrNotFound
// when the account does not exist. Setting an already-subscribed account is a
// no-op success, which keeps webhook replays harmless.
func SetSubscribed(ctx context.Context, db *gorm.DB, id string) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		Update("subscribed", true).Error
}

// UpdateProgress persists a new XP value and badge set for an account. The
// caller (the ledger service) computes both inside a transaction that also
// re-reads the row, so concurrent awards serialize on the row write.
func UpdateProgress(ctx context.Context, db *gorm.DB, id string, xp int, badges domain.BadgeSet) error {
	res := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"xp": xp, "badges": badges})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
