package auth

import (
	"time"

	"github.com/khanghh/mcpauth/internal/audit"
	"github.com/khanghh/mcpauth/internal/ratelimit"
)

type options struct {
	now             func() time.Time
	recorder        audit.Recorder
	authorizePolicy ratelimit.Policy
}

type Option func(*options)

func WithNowFunc(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithAuditRecorder(recorder audit.Recorder) Option {
	return func(o *options) { o.recorder = recorder }
}

// WithAuthorizePolicy overrides the limit applied to code issuance per user.
func WithAuthorizePolicy(policy ratelimit.Policy) Option {
	return func(o *options) { o.authorizePolicy = policy }
}

func newOptions(opts []Option) options {
	o := options{
		now:             time.Now,
		recorder:        audit.Nop,
		authorizePolicy: ratelimit.DefaultPolicies().Authorize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
