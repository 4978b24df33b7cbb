package middlewares

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/params"
)

// NewErrorHandler renders every error as an OAuth style JSON body. now is the
// clock used for Retry-After on rate limit denials.
func NewErrorHandler(now func() time.Time) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		if oauthErr, ok := auth.AsOAuthError(err); ok {
			return renderOAuthError(ctx, oauthErr, now())
		}

		code := fiber.StatusInternalServerError
		message := ""
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}
		switch code {
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnsupportedMediaType:
			return ctx.Status(code).JSON(auth.ErrorResponse{Error: auth.ErrCodeInvalidRequest, ErrorDescription: message})
		case fiber.StatusUnauthorized:
			return ctx.Status(code).JSON(auth.ErrorResponse{Error: auth.ErrCodeUnauthorized, ErrorDescription: message})
		case fiber.StatusForbidden:
			return ctx.Status(code).JSON(auth.ErrorResponse{Error: auth.ErrCodeAccessDenied, ErrorDescription: message})
		case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
			return ctx.Status(fiber.StatusNotFound).JSON(auth.ErrorResponse{Error: auth.ErrCodeNotFound})
		default:
			slog.Error("unhandled error", "path", ctx.Path(), "code", code, "error", err)
			return ctx.Status(fiber.StatusInternalServerError).JSON(auth.ErrorResponse{Error: auth.ErrCodeServerError})
		}
	}
}

func renderOAuthError(ctx *fiber.Ctx, oauthErr *auth.OAuthError, now time.Time) error {
	for key, val := range oauthErr.Headers(now) {
		ctx.Set(key, val)
	}
	if oauthErr.Code == auth.ErrCodeUnauthorized {
		ctx.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="`+params.MCPServerName+`", error="invalid_token"`)
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.Status(oauthErr.StatusCode()).JSON(oauthErr.Response(now))
}
