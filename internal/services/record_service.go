// Package services – RecordService
//
// This file implements the RecordService, the read/like/export surface over
// the append-only generation history. Ownership is enforced here, since the
// repo layer has no notion of a current user: a caller asking for someone
// else's record gets ErrForbiddenRecord before any data leaves the service.
// Liking is deliberately not ownership-gated: any authenticated user may like
// any record, mirroring the public gallery behavior.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
	"github.com/gamelore-ai/gamelore-backend/internal/repo"
)

// Export formats accepted by Export.
const (
	ExportText = "text"
	ExportJSON = "json"
)

// ExportFile is a read-only projection of a record as a downloadable byte
// stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// RecordService provides queries and the single post-creation mutation
// (like counting) over generation records.
type RecordService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewRecordService constructs a RecordService.
func NewRecordService(db *gorm.DB) *RecordService {
	return &RecordService{DB: db}
}

// ListPage returns a page of ownerID's records, newest first, plus the total
// count. It applies defaults for invalid page/pageSize.
func (s *RecordService) ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.GenerationRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountRecords(ctx, s.DB, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.GenerationRecord{}, 0, nil
	}

	items, err := repo.ListRecordsPage(ctx, s.DB, ownerID, offset, pageSize)
	return items, total, err
}

// Get fetches a record, enforcing that it belongs to ownerID. Requests for
// another account's record yield ErrForbiddenRecord with no record data.
func (s *RecordService) Get(ctx context.Context, ownerID string, id uint) (*domain.GenerationRecord, error) {
	rec, err := repo.GetRecord(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrForbiddenRecord
	}
	return rec, nil
}

// Like atomically increments a record's like counter and returns the new
// count. Concurrent likes never lose updates.
func (s *RecordService) Like(ctx context.Context, id uint) (int, error) {
	n, err := repo.IncrementLike(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrRecordNotFound
		}
		return 0, err
	}
	return n, nil
}

// TotalLikes returns the like total across all records (public stat).
func (s *RecordService) TotalLikes(ctx context.Context) (int64, error) {
	return repo.TotalLikes(ctx, s.DB)
}

// Export projects an owned record into a downloadable file. The text format
// streams the stored content bytes exactly as persisted (markdown stripping
// already happened before storage); the json format streams the structured
// record.
func (s *RecordService) Export(ctx context.Context, ownerID string, id uint, format string) (*ExportFile, error) {
	tr := otel.Tracer("services/RecordService")
	ctx, span := tr.Start(ctx, "Export",
		trace.WithAttributes(
			attribute.String("account.id", ownerID),
			attribute.String("export.format", format),
		),
	)
	defer span.End()

	rec, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportText, "":
		return &ExportFile{
			Filename:    fmt.Sprintf("gamelore_%d.txt", rec.ID),
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(rec.Content),
		}, nil
	case ExportJSON:
		body, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("gamelore_%d.json", rec.ID),
			ContentType: "application/json",
			Body:        body,
		}, nil
	}
	return nil, ErrInvalidRequest
}
