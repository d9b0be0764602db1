// Package services defines the business logic for the account ledger, the
// generation orchestrator, and the record store. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrInsufficientCredits rejects a generation request before any producer
	// is invoked: the account is not subscribed and has no credits left.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidRequest is returned when a generation request is missing
	// required parameters or names an unknown request kind.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrAccountNotFound indicates that the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRecordNotFound indicates that the requested generation record does
	// not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrForbiddenRecord is returned when a caller requests a record owned by
	// a different account. No record data is returned alongside it.
	ErrForbiddenRecord = errors.New("record belongs to another account")

	// ErrDuplicateEvent marks a replayed payment webhook delivery. The ledger
	// was not touched; boundaries should treat it as an idempotent success.
	ErrDuplicateEvent = errors.New("payment event already processed")

	// ErrUnknownEventType is returned for payment webhook events the ledger
	// has no reaction for.
	ErrUnknownEventType = errors.New("unknown payment event type")
)
