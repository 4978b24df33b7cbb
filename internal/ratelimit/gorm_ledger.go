package ratelimit

import (
	"context"
	"time"

	"github.com/khanghh/mcpauth/model"
	"gorm.io/gorm"
)

// GormLedger keeps rate limit markers in the RateLimitEntry table.
type GormLedger struct {
	db *gorm.DB
}

// RecordHit commits the marker before counting. Concurrent callers on the same
// key therefore always see each other's markers once committed: the count may
// include a racing request but never misses one.
func (l *GormLedger) RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	db := l.db.WithContext(ctx)
	nowMs := at.UnixMilli()
	windowStart := nowMs - window.Milliseconds()

	entry := model.RateLimitEntry{Bucket: key, HitAt: nowMs}
	if err := db.Create(&entry).Error; err != nil {
		return 0, err
	}
	err := db.Where("bucket = ? AND hit_at < ?", key, windowStart).
		Delete(&model.RateLimitEntry{}).Error
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&model.RateLimitEntry{}).
		Where("bucket = ? AND hit_at >= ?", key, windowStart).
		Count(&count).Error
	return count, err
}

// Purge removes markers recorded before the given time regardless of key.
// Markers are otherwise only pruned when their own key is hit again.
func (l *GormLedger) Purge(ctx context.Context, before time.Time) (int64, error) {
	ret := l.db.WithContext(ctx).
		Where("hit_at < ?", before.UnixMilli()).
		Delete(&model.RateLimitEntry{})
	return ret.RowsAffected, ret.Error
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}
