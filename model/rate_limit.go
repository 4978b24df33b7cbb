package model

// RateLimitEntry marks one request under a bucket key (category:type:value).
// HitAt is a unix millisecond timestamp so window comparisons stay numeric.
type RateLimitEntry struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Bucket string `gorm:"size:255;not null;index:idx_rate_limit_bucket_time"`
	HitAt  int64  `gorm:"not null;index:idx_rate_limit_bucket_time"`
}
