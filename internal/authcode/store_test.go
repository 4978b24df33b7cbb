package authcode

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khanghh/mcpauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGrant() Grant {
	return Grant{
		UserID:         7,
		OrganizationID: 42,
		ClientName:     "Test Client",
		RedirectURI:    "https://a.example/cb",
	}
}

func TestStoreCreateConsume(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(WithNowFunc(clock.Now))
	ctx := context.Background()

	code, err := store.Create(ctx, newTestGrant())
	require.NoError(t, err)
	require.NotEmpty(t, code)

	store.mu.Lock()
	_, plainKey := store.entries[code]
	_, hashedKey := store.entries[common.HashToken(code)]
	store.mu.Unlock()
	assert.False(t, plainKey, "code must not be stored in plaintext")
	assert.True(t, hashedKey)

	grant, ok := store.Consume(ctx, code)
	require.True(t, ok)
	assert.Equal(t, uint(7), grant.UserID)
	assert.Equal(t, uint(42), grant.OrganizationID)
	assert.Equal(t, "https://a.example/cb", grant.RedirectURI)
	assert.Equal(t, clock.Now().Add(10*time.Minute), grant.ExpiresAt)

	_, ok = store.Consume(ctx, code)
	assert.False(t, ok, "code must be single use")
	assert.Equal(t, 0, store.Len())
}

func TestStoreConsumeUnknown(t *testing.T) {
	store := NewStore()
	_, ok := store.Consume(context.Background(), "does-not-exist")
	assert.False(t, ok)
	_, ok = store.Consume(context.Background(), "")
	assert.False(t, ok)
}

func TestStoreConsumeExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(WithNowFunc(clock.Now))
	ctx := context.Background()

	code, err := store.Create(ctx, newTestGrant())
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, ok := store.Consume(ctx, code)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStoreConcurrentConsume(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		code, err := store.Create(ctx, newTestGrant())
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			winners atomic.Int32
			start   = make(chan struct{})
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, ok := store.Consume(ctx, code); ok {
					winners.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		require.Equal(t, int32(1), winners.Load())
	}
}

func TestStoreSweepIsBounded(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(WithNowFunc(clock.Now), WithSweepBatchSize(3))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := store.Create(ctx, newTestGrant())
		require.NoError(t, err)
	}
	fresh, err := store.Create(ctx, newTestGrant())
	require.NoError(t, err)

	assert.Equal(t, 0, store.Sweep(), "nothing expired yet")

	clock.Advance(11 * time.Minute)
	store.mu.Lock()
	store.entries[common.HashToken(fresh)] = Grant{ExpiresAt: clock.now.Add(time.Minute)}
	store.mu.Unlock()

	assert.Equal(t, 3, store.Sweep())
	assert.Equal(t, 3, store.Sweep())
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestStoreStartStop(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(WithNowFunc(clock.Now), WithSweepInterval(5*time.Millisecond))
	ctx := context.Background()

	_, err := store.Create(ctx, newTestGrant())
	require.NoError(t, err)
	clock.Advance(time.Hour)

	require.NoError(t, store.Start(ctx))
	assert.ErrorIs(t, store.Start(ctx), ErrStoreStarted)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	store.Stop()
	store.Stop()
}

func TestStoreStopsOnContextCancel(t *testing.T) {
	store := NewStore(WithSweepInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.Start(ctx))

	cancel()
	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not exit after context cancel")
	}
}
