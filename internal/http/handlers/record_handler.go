// Generation record HTTP handlers.
//
// This file exposes REST endpoints for the append-only record store:
//   - GET  /records              (list, paginated, ETag support)
//   - GET  /records/{id}         (fetch one)
//   - POST /records/{id}/like    (increment like counter)
//   - GET  /records/{id}/export  (download as text or JSON)
//   - POST /records/{id}/share   (announce via outbound webhook)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
	"github.com/gamelore-ai/gamelore-backend/internal/repo"
	"github.com/gamelore-ai/gamelore-backend/internal/services"
)

//
// DTOs
//

// ListRecordsResponse wraps a page of generation records and pagination
// information.
type ListRecordsResponse struct {
	Records    []domain.GenerationRecord `json:"records"`
	Pagination Pagination                `json:"pagination"`
}

// LikeResponse reports the like counter after an increment.
type LikeResponse struct {
	LikeCount int `json:"like_count" example:"4"`
}

// recordID parses the {id} path parameter as a positive integer.
func recordID(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

//
// Handlers
//

// ListRecords godoc
// @ID          listRecords
// @Summary     List generation records (paginated)
// @Description Returns a page of the user's records, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Records
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListRecordsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /records [get]
func (h *Handlers) ListRecords(c *gin.Context) {
	ctx := c.Request.Context()
	uid := accountID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.RecordsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"records:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.recSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListRecordsResponse{
		Records: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetRecord godoc
// @ID          getRecord
// @Summary     Fetch a generation record
// @Description Returns a single record owned by the current user.
// @Tags        Records
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    int     true  "Record ID"              example(42)
//
// @Success     200  {object} domain.GenerationRecord
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Record belongs to another account"
// @Failure     404  {object} handlers.ErrorResponse "Record not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /records/{id} [get]
func (h *Handlers) GetRecord(c *gin.Context) {
	id, okID := recordID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "record id must be a positive integer")
		return
	}

	rec, err := h.recSvc.Get(c.Request.Context(), accountID(c), id)
	switch {
	case errors.Is(err, services.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	case errors.Is(err, services.ErrForbiddenRecord):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "record belongs to another account")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, rec)
}

// LikeRecord godoc
// @ID          likeRecord
// @Summary     Like a generation record
// @Description Increments the record's like counter and returns the new value. Any user may like any record.
// @Tags        Records
// @Produce     json
//
// @Param       id  path  int  true  "Record ID"  example(42)
//
// @Success     200  {object} handlers.LikeResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Record not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /records/{id}/like [post]
func (h *Handlers) LikeRecord(c *gin.Context) {
	id, okID := recordID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "record id must be a positive integer")
		return
	}

	count, err := h.recSvc.Like(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, LikeResponse{LikeCount: count})
}

// ExportRecord godoc
// @ID          exportRecord
// @Summary     Export a generation record
// @Description Downloads the record as a text or JSON file attachment.
// @Tags        Records
// @Produce     plain
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"   example(user123)
// @Param       id         path    int     true  "Record ID"               example(42)
// @Param       format     query   string  false "Export format"           Enums(text, json) default(text)
//
// @Success     200  {string} string "File contents"
// @Header      200  {string} Content-Disposition "Attachment filename"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Record belongs to another account"
// @Failure     404  {object} handlers.ErrorResponse "Record not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /records/{id}/export [get]
func (h *Handlers) ExportRecord(c *gin.Context) {
	id, okID := recordID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "record id must be a positive integer")
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", services.ExportText)))

	file, err := h.recSvc.Export(c.Request.Context(), accountID(c), id, format)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "format must be text or json")
		return
	case errors.Is(err, services.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	case errors.Is(err, services.ErrForbiddenRecord):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "record belongs to another account")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

// ShareRecord godoc
// @ID          shareRecord
// @Summary     Share a generation record
// @Description Posts a short announcement for the record to the configured outbound webhook. Delivery is best effort; a failed post is logged and still answered 204.
// @Tags        Records
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    int     true  "Record ID"              example(42)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Record belongs to another account"
// @Failure     404  {object} handlers.ErrorResponse "Record not found"
// @Failure     503  {object} handlers.ErrorResponse "Sharing not configured"
// @Router      /records/{id}/share [post]
func (h *Handlers) ShareRecord(c *gin.Context) {
	if h.notifier == nil || !h.notifier.Enabled() {
		fail(c, http.StatusServiceUnavailable, ErrCodeShareUnavailable, "sharing is not configured")
		return
	}

	id, okID := recordID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "record id must be a positive integer")
		return
	}

	rec, err := h.recSvc.Get(c.Request.Context(), accountID(c), id)
	switch {
	case errors.Is(err, services.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	case errors.Is(err, services.ErrForbiddenRecord):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "record belongs to another account")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	// Best-effort delivery. The record and ledger are already committed, so a
	// webhook outage must not surface as a request failure.
	if err := h.notifier.ShareRecord(c.Request.Context(), rec); err != nil {
		log.Warn().Err(err).Uint("record_id", rec.ID).Msg("share webhook delivery failed")
	}
	noContent(c)
}
