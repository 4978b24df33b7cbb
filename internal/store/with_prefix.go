package store

import (
	"context"
	"time"
)

type prefixedStorage struct {
	underlying Storage
	prefix     string
}

func (p *prefixedStorage) RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	return p.underlying.RecordHit(ctx, p.prefix+key, at, window)
}

func StorageWithPrefix(storage Storage, prefix string) Storage {
	return &prefixedStorage{
		underlying: storage,
		prefix:     prefix,
	}
}
