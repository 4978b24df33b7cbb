// Package ratelimit counts requests per identity and category over a sliding
// window. Counters for different categories never share state, even when the
// identity value is the same.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/khanghh/mcpauth/params"
)

const (
	CategoryAuthorize = "authorize"
	CategoryToken     = "token"
	CategoryTool      = "tool"
)

const (
	IdentityUser        = "user"
	IdentityIP          = "ip"
	IdentityAccessToken = "token"
)

var (
	ErrInvalidPolicy   = errors.New("invalid rate limit policy")
	ErrInvalidIdentity = errors.New("invalid rate limit identity")
)

type Identity struct {
	Type  string
	Value string
}

type Policy struct {
	Category string
	Window   time.Duration
	Max      int
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds a denied caller should wait, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Ledger records one request under key at the given time, prunes entries older
// than the window and returns the number of entries left, all atomically.
type Ledger interface {
	RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error)
}

// Policies groups the limits applied at each entry point.
type Policies struct {
	Authorize Policy
	Token     Policy
	Tool      Policy
}

func DefaultPolicies() Policies {
	return Policies{
		Authorize: Policy{Category: CategoryAuthorize, Window: params.AuthorizeRateLimitWindow, Max: params.AuthorizeRateLimitMax},
		Token:     Policy{Category: CategoryToken, Window: params.TokenRateLimitWindow, Max: params.TokenRateLimitMax},
		Tool:      Policy{Category: CategoryTool, Window: params.ToolRateLimitWindow, Max: params.ToolRateLimitMax},
	}
}

type Limiter struct {
	ledger Ledger
	now    func() time.Time
}

type Option func(*Limiter)

func WithNowFunc(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func Key(identity Identity, policy Policy) string {
	return policy.Category + ":" + identity.Type + ":" + identity.Value
}

// Check records the current request and reports whether it fits the policy.
// Denied requests are recorded too, so a client that keeps retrying stays limited.
func (l *Limiter) Check(ctx context.Context, identity Identity, policy Policy) (Result, error) {
	if policy.Category == "" || policy.Window <= 0 || policy.Max <= 0 {
		return Result{}, ErrInvalidPolicy
	}
	if identity.Type == "" || identity.Value == "" {
		return Result{}, ErrInvalidIdentity
	}

	now := l.now()
	count, err := l.ledger.RecordHit(ctx, Key(identity, policy), now, policy.Window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit ledger: %w", err)
	}

	remaining := policy.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(policy.Max),
		Limit:     policy.Max,
		Remaining: remaining,
		ResetAt:   now.Add(policy.Window),
	}, nil
}

func NewLimiter(ledger Ledger, opts ...Option) *Limiter {
	l := &Limiter{
		ledger: ledger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}
