// Payment webhook HTTP handler.
//
// This file exposes the inbound payment-provider endpoint:
//   - POST /webhooks/payment
//
// Providers retry deliveries, so the handler must be idempotent: a replayed
// event id returns success without applying the ledger mutation again.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gamelore-ai/gamelore-backend/internal/services"
)

// PaymentEventRequest is the JSON payload delivered by the payment provider.
type PaymentEventRequest struct {
	// ID is the provider's unique event id, used for replay detection.
	ID string `json:"id" binding:"required" example:"evt_01HZXK"`
	// Type is the event type: credits_purchased or subscription_activated.
	Type string `json:"type" binding:"required" example:"credits_purchased"`
	// AccountID names the account the event applies to.
	AccountID string `json:"account_id" binding:"required" example:"user123"`
	// Credits is the purchased amount; required for credits_purchased.
	Credits int `json:"credits" example:"20"`
}

// PaymentEventResponse acknowledges a processed or replayed event.
type PaymentEventResponse struct {
	Status string `json:"status" example:"applied"`
}

// PaymentWebhook godoc
// @ID          paymentWebhook
// @Summary     Receive a payment-provider event
// @Description Applies a credits_purchased or subscription_activated event exactly once. Replayed deliveries are acknowledged without reapplying.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.PaymentEventRequest  true  "Provider event"
//
// @Success     200  {object}  handlers.PaymentEventResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Account not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhooks/payment [post]
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	var req PaymentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	err := h.ledgerSvc.ApplyPaymentEvent(
		c.Request.Context(),
		strings.TrimSpace(req.ID),
		strings.TrimSpace(req.AccountID),
		strings.ToLower(strings.TrimSpace(req.Type)),
		req.Credits,
	)
	switch {
	case errors.Is(err, services.ErrDuplicateEvent):
		// Acknowledge so the provider stops retrying.
		ok(c, http.StatusOK, PaymentEventResponse{Status: "duplicate"})
		return
	case errors.Is(err, services.ErrUnknownEventType):
		fail(c, http.StatusBadRequest, ErrCodeUnknownEvent, "unknown payment event type")
		return
	case errors.Is(err, services.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "credits must be a positive integer")
		return
	case errors.Is(err, services.ErrAccountNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, PaymentEventResponse{Status: "applied"})
}
