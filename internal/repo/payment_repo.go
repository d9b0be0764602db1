// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the PaymentEvent
// model used to de-duplicate payment webhook deliveries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
)

// ErrDuplicate indicates a row with the same unique key already exists
// (a replayed webhook event or a reused idempotency key).
var ErrDuplicate = errors.New("duplicate")

// CreatePaymentEvent inserts a processed-event marker keyed by the provider's
// event id. A replayed delivery hits the primary key and returns ErrDuplicate,
// letting the caller skip the ledger mutation.
func CreatePaymentEvent(ctx context.Context, db *gorm.DB, eventID, accountID, eventType string, credits int) error {
	ev := &domain.PaymentEvent{
		ID:        eventID,
		AccountID: accountID,
		Type:      eventType,
		Credits:   credits,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// isUniqueViolation detects unique/primary-key violations across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
