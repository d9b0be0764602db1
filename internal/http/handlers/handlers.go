// Handler wiring for the public API.
//
// This file defines the service contracts the HTTP layer consumes, the
// Handlers aggregate that binds them, and small helpers shared by the
// endpoint files. Handlers are transport-thin: they validate input, call
// application services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
	"github.com/gamelore-ai/gamelore-backend/internal/services"
	"github.com/gamelore-ai/gamelore-backend/internal/sysutil"
	"github.com/gamelore-ai/gamelore-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// GenerationService runs the paid generation lifecycle consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GenerationService interface {
	// Generate debits one credit, invokes the requested producers, and
	// commits the resulting record atomically.
	Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error)
}

// LedgerService defines account and credit operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LedgerService interface {
	// GetOrCreate returns the account for id, creating it with the starting
	// credit balance on first sight.
	GetOrCreate(ctx context.Context, id, name string) (*domain.Account, error)
	// ApplyPaymentEvent applies a payment-provider event exactly once.
	ApplyPaymentEvent(ctx context.Context, eventID, accountID, eventType string, credits int) error
}

// RecordService defines read and engagement operations on generation records.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RecordService interface {
	// ListPage returns a page of the owner's records, newest first, and the
	// total count.
	ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.GenerationRecord, int64, error)
	// Get returns a single record owned by ownerID.
	Get(ctx context.Context, ownerID string, id uint) (*domain.GenerationRecord, error)
	// Like increments the record's like counter and returns the new value.
	Like(ctx context.Context, id uint) (int, error)
	// TotalLikes sums like counters across all records.
	TotalLikes(ctx context.Context) (int64, error)
	// Export renders a record as a downloadable file.
	Export(ctx context.Context, ownerID string, id uint, format string) (*services.ExportFile, error)
}

// Notifier posts share announcements to an external webhook.
type Notifier interface {
	// Enabled reports whether a webhook URL is configured.
	Enabled() bool
	// ShareRecord posts a short announcement for the record.
	ShareRecord(ctx context.Context, rec *domain.GenerationRecord) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for generation, accounts, records, and
// payment webhooks. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	genSvc    GenerationService
	ledgerSvc LedgerService
	recSvc    RecordService
	notifier  Notifier
	idemTTL   time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// idemTTL bounds how long a replayed Idempotency-Key keeps returning the
// original response.
func New(genSvc GenerationService, ledgerSvc LedgerService, recSvc RecordService, notifier Notifier, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{genSvc: genSvc, ledgerSvc: ledgerSvc, recSvc: recSvc, notifier: notifier, idemTTL: idemTTL}
}

// accountID extracts the caller's account id from Gin context (set by
// upstream middleware). If absent, it falls back to "X-User-ID" header
// (tests use it), and finally to "demo-user". It never touches c.Request
// if it's nil.
func accountID(c *gin.Context) string {
	var fromCtx string
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			fromCtx = s
		}
	}
	var fromHeader string
	if c != nil && c.Request != nil {
		fromHeader = strings.TrimSpace(c.GetHeader("X-User-ID"))
	}
	return sysutil.FirstNonEmpty(fromCtx, fromHeader, "demo-user")
}

// accountName extracts the caller's display name from the "X-User-Name"
// header, defaulting to "Adventurer" for unnamed identities.
func accountName(c *gin.Context) string {
	var fromHeader string
	if c != nil && c.Request != nil {
		fromHeader = strings.TrimSpace(c.GetHeader("X-User-Name"))
	}
	return sysutil.FirstNonEmpty(fromHeader, "Adventurer")
}

// db returns the underlying GORM handle when the record service is the
// concrete implementation. Used for best-effort ETag pre-checks and
// idempotency bookkeeping; nil means skip those.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.recSvc.(*services.RecordService); ok {
		return svc.DB
	}
	return nil
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// AccountResponse is the public projection of an account's ledger state.
type AccountResponse struct {
	ID         string   `json:"id" example:"user123"`
	Name       string   `json:"name" example:"Adventurer"`
	Credits    int      `json:"credits" example:"9"`
	XP         int      `json:"xp" example:"15"`
	Badges     []string `json:"badges"`
	Subscribed bool     `json:"subscribed"`
}

// newAccountResponse maps a domain account into its public projection.
func newAccountResponse(a *domain.Account) AccountResponse {
	badges := []string(a.Badges)
	if badges == nil {
		badges = []string{}
	}
	return AccountResponse{
		ID:         a.ID,
		Name:       a.Name,
		Credits:    a.Credits,
		XP:         a.XP,
		Badges:     badges,
		Subscribed: a.Subscribed,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
