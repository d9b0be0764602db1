// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// GenerationRecord model: the append-only history of generation requests.
//
// Records are never updated after creation except for the like counter, which
// is mutated exclusively through IncrementLike's atomic in-place UPDATE.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
)

// AppendRecord inserts a new generation record, assigning its id and creation
// timestamp. The caller must not set ID; ids are allocated by the database in
// strictly increasing creation order.
func AppendRecord(ctx context.Context, db *gorm.DB, rec *domain.GenerationRecord) (*domain.GenerationRecord, error) {
	rec.ID = 0
	rec.CreatedAt = time.Now().UTC()
	if rec.Images == nil {
		rec.Images = domain.ImageList{}
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRecord fetches a record by id, or ErrNotFound if missing.
func GetRecord(ctx context.Context, db *gorm.DB, id uint) (*domain.GenerationRecord, error) {
	var rec domain.GenerationRecord
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountRecords returns the total number of records owned by ownerID.
func CountRecords(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.GenerationRecord{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// ListRecordsPage returns a paginated slice of records for ownerID, newest
// first. The caller computes offset and limit (e.g. (page-1)*pageSize).
func ListRecordsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.GenerationRecord, error) {
	var out []domain.GenerationRecord
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IncrementLike atomically bumps a record's like counter by one and returns
// the new count. The increment happens in the database, so N concurrent
// callers always land at exactly +N. Returns ErrNotFound for unknown ids.
func IncrementLike(ctx context.Context, db *gorm.DB, id uint) (int, error) {
	var newCount int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.GenerationRecord{}).
			Where("id = ?", id).
			Update("like_count", gorm.Expr("like_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		var row struct{ LikeCount int }
		if err := tx.Model(&domain.GenerationRecord{}).
			Select("like_count").
			Where("id = ?", id).
			Scan(&row).Error; err != nil {
			return err
		}
		newCount = row.LikeCount
		return nil
	})
	return newCount, err
}
