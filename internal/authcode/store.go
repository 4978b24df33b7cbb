// Package authcode holds pending authorization grants between user consent and
// the code exchange. Entries live only in process memory and expire after
// params.AuthorizationCodeTTL.
package authcode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/khanghh/mcpauth/internal/common"
	"github.com/khanghh/mcpauth/params"
)

const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "plain"
)

var (
	ErrStoreStarted = errors.New("code store already started")
)

// Grant is the data bound to a one-time authorization code.
type Grant struct {
	UserID              uint
	OrganizationID      uint
	ClientID            string
	ClientName          string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
}

func (g *Grant) HasChallenge() bool {
	return g.CodeChallenge != ""
}

type Option func(*Store)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) { s.sweepInterval = interval }
}

func WithSweepBatchSize(size int) Option {
	return func(s *Store) { s.sweepBatchSize = size }
}

// Store maps hash(code) to the pending grant. Create, Consume and the sweep may
// run concurrently.
type Store struct {
	mu      sync.Mutex
	entries map[string]Grant

	now            func() time.Time
	ttl            time.Duration
	sweepInterval  time.Duration
	sweepBatchSize int

	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Store) Create(ctx context.Context, grant Grant) (string, error) {
	code, err := common.GenerateToken()
	if err != nil {
		return "", err
	}
	grant.ExpiresAt = s.now().Add(s.ttl)

	s.mu.Lock()
	s.entries[common.HashToken(code)] = grant
	s.mu.Unlock()
	return code, nil
}

// Consume returns the grant bound to code and removes it in the same critical
// section, so a code can be redeemed at most once. Expired entries are removed
// and reported as missing.
func (s *Store) Consume(ctx context.Context, code string) (*Grant, bool) {
	if code == "" {
		return nil, false
	}
	key := common.HashToken(code)

	s.mu.Lock()
	grant, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if !ok || !s.now().Before(grant.ExpiresAt) {
		return nil, false
	}
	return &grant, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes up to sweepBatchSize expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, grant := range s.entries {
		if removed >= s.sweepBatchSize {
			break
		}
		if !now.Before(grant.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Start launches the background eviction loop. It stops when ctx is done or Stop is called.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return ErrStoreStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.sweepLoop(ctx, done)
	return nil
}

// Stop cancels the eviction loop and waits for it to exit. Safe to call more than once.
func (s *Store) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Store) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("Evicted expired authorization codes", "count", n)
			}
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:        make(map[string]Grant),
		now:            time.Now,
		ttl:            params.AuthorizationCodeTTL,
		sweepInterval:  params.CodeStoreSweepInterval,
		sweepBatchSize: params.CodeStoreSweepBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepBatchSize <= 0 {
		s.sweepBatchSize = params.CodeStoreSweepBatchSize
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = params.CodeStoreSweepInterval
	}
	return s
}
