// Package tools exposes organization-scoped capabilities to MCP clients. A
// Gateway authenticates the bearer token, applies the per-token rate limit,
// and dispatches to a tool from its Registry.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/khanghh/mcpauth/internal/audit"
	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/common"
	"github.com/khanghh/mcpauth/internal/ratelimit"
)

type TokenValidator interface {
	Validate(ctx context.Context, token string) (auth.Validation, error)
}

type Gateway struct {
	registry  *Registry
	validator TokenValidator
	limiter   *ratelimit.Limiter
	policy    ratelimit.Policy
	validate  *validator.Validate
	recorder  audit.Recorder
	now       func() time.Time
}

type Option func(*Gateway)

func WithToolPolicy(policy ratelimit.Policy) Option {
	return func(g *Gateway) { g.policy = policy }
}

func WithAuditRecorder(recorder audit.Recorder) Option {
	return func(g *Gateway) { g.recorder = recorder }
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// Authenticate resolves a bearer token and charges one request against the
// token's tool budget. Bad tokens yield an unauthorized *auth.OAuthError and
// exhausted budgets a rate_limit_exceeded one; other errors are store failures.
func (g *Gateway) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	validation, err := g.validator.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		slog.Debug("Rejected access token", "reason", validation.Reason, "token", common.NewRedactedToken(token))
		return nil, &auth.OAuthError{Code: auth.ErrCodeUnauthorized, Description: "access token is invalid, expired or revoked"}
	}

	identity := ratelimit.Identity{Type: ratelimit.IdentityAccessToken, Value: common.HashToken(token)}
	result, err := g.limiter.Check(ctx, identity, g.policy)
	if err != nil {
		return nil, fmt.Errorf("check tool rate limit: %w", err)
	}
	if !result.Allowed {
		principal := validation.Principal
		g.recorder.Record(ctx, audit.Event{
			Type:            audit.EventTypeRateLimited,
			UserID:          principal.User.ID,
			OrganizationID:  principal.Organization.ID,
			AuthorizationID: principal.AuthorizationID,
			Reason:          ratelimit.CategoryTool,
		})
		return nil, &auth.OAuthError{
			Code:        auth.ErrCodeRateLimitExceeded,
			Description: "too many tool calls for this access token",
			RateLimit:   &result,
		}
	}
	return validation.Principal, nil
}

// Invoke decodes rawArgs into the tool's argument type, validates them and
// runs the tool. Input and lookup failures come back as error results.
func (g *Gateway) Invoke(ctx context.Context, principal *auth.Principal, name string, rawArgs map[string]any) (*Result, error) {
	if principal == nil || principal.Organization == nil || principal.User == nil {
		return ErrorResult(ErrorKindUnauthorized, "no authenticated principal"), nil
	}
	tool, ok := g.registry.Lookup(name)
	if !ok {
		return ErrorResult(ErrorKindNotFound, "unknown tool %q", name), nil
	}

	args := tool.NewArgs()
	if rawArgs == nil {
		rawArgs = map[string]any{}
	}
	if err := decodeArgs(rawArgs, args); err != nil {
		return ErrorResult(ErrorKindBadInput, "%v", err), nil
	}
	if err := g.validate.StructCtx(ctx, args); err != nil {
		return ErrorResult(ErrorKindBadInput, "%s", describeValidation(err)), nil
	}

	start := g.now()
	result, err := tool.Handler(ctx, args, principal)
	if err != nil {
		slog.Error("Tool failed", "tool", name, "authorizationID", principal.AuthorizationID, "error", err)
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	slog.Debug("Tool invoked", "tool", name, "authorizationID", principal.AuthorizationID,
		"isError", result.IsError, "elapsed", g.now().Sub(start))
	return result, nil
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

func NewGateway(registry *Registry, tokenValidator TokenValidator, limiter *ratelimit.Limiter, opts ...Option) *Gateway {
	g := &Gateway{
		registry:  registry,
		validator: tokenValidator,
		limiter:   limiter,
		policy:    ratelimit.DefaultPolicies().Tool,
		validate:  newValidator(),
		recorder:  audit.Nop,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
