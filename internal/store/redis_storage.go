package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps one sorted set per key; members are hits scored by their
// unix millisecond timestamp.
type RedisStorage struct {
	rdb redis.UniversalClient
}

func (s *RedisStorage) Conn() redis.UniversalClient {
	return s.rdb
}

// RecordHit adds a hit, prunes hits older than the window and counts the rest in
// one MULTI/EXEC block, so concurrent callers never under-count.
func (s *RedisStorage) RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	nowMs := at.UnixMilli()
	windowStart := nowMs - window.Milliseconds()

	var card *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: uuid.NewString()})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10))
		card = pipe.ZCard(ctx, key)
		pipe.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func NewRedisStorage(db redis.UniversalClient) *RedisStorage {
	return &RedisStorage{
		rdb: db,
	}
}
