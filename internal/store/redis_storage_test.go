package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStorage) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewRedisStorage(rdb)
}

func TestRedisStorageRecordHit(t *testing.T) {
	_, storage := newTestRedis(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		count, err := storage.RecordHit(ctx, "k", now.Add(time.Duration(i)*time.Second), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	// hits recorded at +1s and +2s fall out of a one minute window ending at +63s
	count, err := storage.RecordHit(ctx, "k", now.Add(63*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRedisStorageKeysAreIndependent(t *testing.T) {
	_, storage := newTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	_, err := storage.RecordHit(ctx, "a", now, time.Minute)
	require.NoError(t, err)
	count, err := storage.RecordHit(ctx, "b", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStorageWithPrefix(t *testing.T) {
	mr, storage := newTestRedis(t)
	ctx := context.Background()

	prefixed := StorageWithPrefix(storage, "rl:")
	_, err := prefixed.RecordHit(ctx, "token:ip:1.2.3.4", time.Now(), time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists("rl:token:ip:1.2.3.4"))
	assert.Equal(t, time.Minute, mr.TTL("rl:token:ip:1.2.3.4"))
	assert.False(t, mr.Exists("token:ip:1.2.3.4"))
}
