// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for the
// public stats endpoint and for conditional responses (ETag generation).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
)

// TotalLikes returns the sum of like counters across all generation records.
// An empty table yields 0.
func TotalLikes(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.GenerationRecord{}).
		Select("COALESCE(SUM(like_count), 0)").
		Scan(&total).Error
	return total, err
}

// RecordsStats returns aggregate metadata for an owner's records: the total
// number of rows and the greatest CreatedAt among them. When the owner has no
// records, count is 0 and maxCreatedAt is nil.
func RecordsStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.GenerationRecord{}).Where("owner_id = ?", ownerID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
