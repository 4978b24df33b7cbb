package store

import (
	"context"
	"time"
)

// Storage records timestamped hits under a key and reports how many hits fall
// inside the trailing window ending at the given time.
type Storage interface {
	RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error)
}
