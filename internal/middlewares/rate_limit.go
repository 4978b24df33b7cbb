package middlewares

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/ratelimit"
)

type IdentityFunc func(ctx *fiber.Ctx) ratelimit.Identity

// ByIP identifies the caller by its source address.
func ByIP(ctx *fiber.Ctx) ratelimit.Identity {
	return ratelimit.Identity{Type: ratelimit.IdentityIP, Value: ctx.IP()}
}

// RateLimit charges one request per call against policy and rejects the
// request with rate_limit_exceeded once the window is exhausted.
func RateLimit(limiter *ratelimit.Limiter, policy ratelimit.Policy, identify IdentityFunc) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		result, err := limiter.Check(ctx.UserContext(), identify(ctx), policy)
		if err != nil {
			return err
		}
		if !result.Allowed {
			return &auth.OAuthError{
				Code:        auth.ErrCodeRateLimitExceeded,
				Description: "too many requests, try again later",
				RateLimit:   &result,
			}
		}
		ctx.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		ctx.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		return ctx.Next()
	}
}
