package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/khanghh/mcpauth/internal/store"
	"github.com/khanghh/mcpauth/internal/testutil"
	"github.com/khanghh/mcpauth/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func ledgers(t *testing.T) map[string]Ledger {
	mr := miniredis.RunT(t)
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { rdb.Close() })
	return map[string]Ledger{
		"gorm":  NewGormLedger(testutil.NewTestDB(t)),
		"redis": store.StorageWithPrefix(store.NewRedisStorage(rdb), "rl:"),
	}
}

func TestLimiterBoundaries(t *testing.T) {
	for name, ledger := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			c := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
			limiter := NewLimiter(ledger, WithNowFunc(c.Now))
			policy := Policy{Category: CategoryAuthorize, Window: time.Hour, Max: 3}
			user := Identity{Type: IdentityUser, Value: "1"}
			ctx := context.Background()

			for i := 1; i <= 3; i++ {
				res, err := limiter.Check(ctx, user, policy)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "request %d", i)
				assert.Equal(t, 3-i, res.Remaining)
				assert.Equal(t, c.now.Add(time.Hour), res.ResetAt)
				c.now = c.now.Add(time.Second)
			}

			for i := 0; i < 2; i++ {
				res, err := limiter.Check(ctx, user, policy)
				require.NoError(t, err)
				assert.False(t, res.Allowed)
				assert.Equal(t, 0, res.Remaining)
				assert.Equal(t, c.now.Add(time.Hour), res.ResetAt)
				assert.Equal(t, 3600, res.RetryAfter(c.now))
			}

			// once the window has slid past every request the caller is allowed again
			c.now = c.now.Add(2 * time.Hour)
			res, err := limiter.Check(ctx, user, policy)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 2, res.Remaining)
		})
	}
}

func TestLimiterIsolation(t *testing.T) {
	for name, ledger := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			limiter := NewLimiter(ledger)
			ctx := context.Background()
			policies := DefaultPolicies()
			authorize := Policy{Category: policies.Authorize.Category, Window: time.Hour, Max: 1}
			token := Policy{Category: policies.Token.Category, Window: time.Hour, Max: 1}

			first, err := limiter.Check(ctx, Identity{Type: IdentityUser, Value: "5"}, authorize)
			require.NoError(t, err)
			require.True(t, first.Allowed)

			// same value, different identity type
			res, err := limiter.Check(ctx, Identity{Type: IdentityIP, Value: "5"}, authorize)
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			// same identity, different category
			res, err = limiter.Check(ctx, Identity{Type: IdentityUser, Value: "5"}, token)
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			// different identity value
			res, err = limiter.Check(ctx, Identity{Type: IdentityUser, Value: "6"}, authorize)
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			res, err = limiter.Check(ctx, Identity{Type: IdentityUser, Value: "5"}, authorize)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
		})
	}
}

func TestLimiterRejectsInvalidInput(t *testing.T) {
	limiter := NewLimiter(NewGormLedger(testutil.NewTestDB(t)))
	ctx := context.Background()

	_, err := limiter.Check(ctx, Identity{Type: IdentityIP, Value: "1.1.1.1"}, Policy{Category: CategoryToken})
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = limiter.Check(ctx, Identity{Type: IdentityIP}, DefaultPolicies().Token)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestKey(t *testing.T) {
	key := Key(Identity{Type: IdentityIP, Value: "10.0.0.1"}, DefaultPolicies().Token)
	assert.Equal(t, "token:ip:10.0.0.1", key)
}

func TestGormLedgerPrunesAndPurges(t *testing.T) {
	db := testutil.NewTestDB(t)
	ledger := NewGormLedger(db)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := ledger.RecordHit(ctx, "tool:token:abc", start.Add(time.Duration(i)*time.Minute), time.Hour)
		require.NoError(t, err)
	}
	_, err := ledger.RecordHit(ctx, "tool:token:other", start, time.Hour)
	require.NoError(t, err)

	count, err := ledger.RecordHit(ctx, "tool:token:abc", start.Add(61*time.Minute+time.Second), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var stored int64
	require.NoError(t, db.Model(&model.RateLimitEntry{}).Where("bucket = ?", "tool:token:abc").Count(&stored).Error)
	assert.Equal(t, int64(2), stored, "entries outside the window are pruned")

	purged, err := ledger.Purge(ctx, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)
}
