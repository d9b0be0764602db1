// Account HTTP handlers.
//
// This file exposes the caller's ledger state and aggregate usage stats:
//   - GET /me     (get-or-create account from identity headers)
//   - GET /stats  (usage dashboard numbers)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamelore-ai/gamelore-backend/internal/repo"
)

// StatsResponse carries aggregate usage numbers for the dashboard.
type StatsResponse struct {
	// TotalLikes sums like counters across all records, all accounts.
	TotalLikes int64 `json:"total_likes" example:"128"`
	// MyRecords counts the caller's own records.
	MyRecords int64 `json:"my_records" example:"7"`
	// Account is the caller's current ledger state.
	Account AccountResponse `json:"account"`
}

// GetMe godoc
// @ID          getMe
// @Summary     Fetch the current account
// @Description Returns the caller's ledger state, creating the account with the starting credit balance on first sight.
// @Tags        Accounts
// @Produce     json
//
// @Param       X-User-ID    header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Name  header  string  false "Display name"           example(Alex)
//
// @Success     200  {object}  handlers.AccountResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	acc, err := h.ledgerSvc.GetOrCreate(c.Request.Context(), accountID(c), accountName(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, newAccountResponse(acc))
}

// GetStats godoc
// @ID          getStats
// @Summary     Fetch usage stats
// @Description Returns community-wide like totals plus the caller's record count and ledger state.
// @Tags        Accounts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.StatsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := accountID(c)

	acc, err := h.ledgerSvc.GetOrCreate(ctx, uid, accountName(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	likes, err := h.recSvc.TotalLikes(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	var mine int64
	if db := h.db(); db != nil {
		if n, err := repo.CountRecords(ctx, db, uid); err == nil {
			mine = n
		}
	}

	ok(c, http.StatusOK, StatsResponse{
		TotalLikes: likes,
		MyRecords:  mine,
		Account:    newAccountResponse(acc),
	})
}
