package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/tools"
)

const principalContextKey = "principal"

// BearerAuth authenticates the request's access token through the tool
// gateway and stores the resolved principal on the context.
func BearerAuth(gateway *tools.Gateway) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := tools.BearerToken(ctx.Get(fiber.HeaderAuthorization))
		if token == "" {
			return &auth.OAuthError{Code: auth.ErrCodeUnauthorized, Description: "bearer token required"}
		}
		principal, err := gateway.Authenticate(ctx.UserContext(), token)
		if err != nil {
			return err
		}
		ctx.Locals(principalContextKey, principal)
		ctx.SetUserContext(tools.ContextWithPrincipal(ctx.UserContext(), principal))
		return ctx.Next()
	}
}

func GetPrincipal(ctx *fiber.Ctx) *auth.Principal {
	principal, _ := ctx.Locals(principalContextKey).(*auth.Principal)
	return principal
}
