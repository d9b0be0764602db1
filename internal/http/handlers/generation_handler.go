// Generation HTTP handlers.
//
// This file exposes the paid generation endpoint:
//   - POST /generate  (debit one credit, run producers, commit record)
//
// Clients may send an Idempotency-Key header; a retried request with the same
// key replays the originally committed record without charging again.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
	"github.com/gamelore-ai/gamelore-backend/internal/producer"
	"github.com/gamelore-ai/gamelore-backend/internal/repo"
	"github.com/gamelore-ai/gamelore-backend/internal/services"
)

//
// DTOs
//

// GenerateContentRequest is the JSON payload for starting a generation.
type GenerateContentRequest struct {
	// Kind selects which producers run: text, image, video, or combined.
	Kind string `json:"kind" binding:"required" example:"combined"`
	// AssetType steers prompt framing (item, weapon, npc, location).
	AssetType string `json:"asset_type" example:"weapon"`
	// Genre is the creative setting for the asset.
	Genre string `json:"genre" binding:"required" example:"dark fantasy"`
	// Details describes the asset to generate.
	Details string `json:"details" binding:"required" example:"a cursed greatsword that whispers"`
	// AnimateImage asks the video producer to animate the first generated image.
	AnimateImage bool `json:"animate_image"`
}

// ProducerFailure reports one producer that did not deliver output.
type ProducerFailure struct {
	Producer string `json:"producer" example:"video"`
	Reason   string `json:"reason" example:"no videos matched query"`
	Timeout  bool   `json:"timeout"`
}

// GenerateContentResponse wraps the committed record, per-producer failures,
// and the caller's updated ledger state.
type GenerateContentResponse struct {
	Record   domain.GenerationRecord `json:"record"`
	Failures []ProducerFailure       `json:"failures"`
	Refunded bool                    `json:"refunded"`
	Account  *AccountResponse        `json:"account,omitempty"`
	Replayed bool                    `json:"replayed,omitempty"`
}

func newFailures(fs []*producer.Failure) []ProducerFailure {
	out := make([]ProducerFailure, 0, len(fs))
	for _, f := range fs {
		out = append(out, ProducerFailure{Producer: f.Producer, Reason: f.Reason, Timeout: f.Timeout})
	}
	return out
}

//
// Handlers
//

// Generate godoc
// @ID          generateContent
// @Summary     Generate game lore content
// @Description Debits one credit, runs the requested producers, and commits an immutable generation record. Partial producer failures still commit; total failure refunds the credit.
// @Tags        Generation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Replay key for safe retries"
// @Param       body             body    handlers.GenerateContentRequest  true  "Generation payload"
//
// @Success     201  {object}  handlers.GenerateContentResponse
// @Success     200  {object}  handlers.GenerateContentResponse  "Replayed from Idempotency-Key"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient credits"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /generate [post]
func (h *Handlers) Generate(c *gin.Context) {
	ctx := c.Request.Context()
	uid := accountID(c)

	var req GenerateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Replay path: a previously committed request with the same key returns
	// the original record and charges nothing.
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	db := h.db()
	if idemKey != "" && db != nil {
		if entry, err := repo.GetIdempotency(ctx, db, uid, idemKey, time.Now().UTC()); err == nil {
			if rec, err := repo.GetRecord(ctx, db, entry.RecordID); err == nil {
				resp := GenerateContentResponse{
					Record:   *rec,
					Failures: []ProducerFailure{},
					Replayed: true,
				}
				if acc, err := h.ledgerSvc.GetOrCreate(ctx, uid, accountName(c)); err == nil {
					ar := newAccountResponse(acc)
					resp.Account = &ar
				}
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, resp)
				return
			}
		}
	}

	// Make sure the account exists before charging it.
	if _, err := h.ledgerSvc.GetOrCreate(ctx, uid, accountName(c)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	res, err := h.genSvc.Generate(ctx, services.GenerateRequest{
		AccountID:    uid,
		Kind:         domain.RequestKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		AssetType:    req.AssetType,
		Genre:        req.Genre,
		Details:      req.Details,
		AnimateImage: req.AnimateImage,
	})
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrInsufficientCredits):
		fail(c, http.StatusPaymentRequired, ErrCodeInsufficientCredits, "not enough credits to start a generation")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeGenerateFailed, err.Error())
		return
	}

	if idemKey != "" && db != nil {
		// Best effort; a losing race just means the other entry wins.
		_, _ = repo.CreateIdempotency(ctx, db, uid, idemKey, res.Record.ID, http.StatusCreated, h.idemTTL)
	}

	resp := GenerateContentResponse{
		Record:   *res.Record,
		Failures: newFailures(res.Failures),
		Refunded: res.Refunded,
	}
	if acc, err := h.ledgerSvc.GetOrCreate(ctx, uid, accountName(c)); err == nil {
		ar := newAccountResponse(acc)
		resp.Account = &ar
	}
	ok(c, http.StatusCreated, resp)
}
