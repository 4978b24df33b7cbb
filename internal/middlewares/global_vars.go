package middlewares

import "github.com/gofiber/fiber/v2"

// InjectGlobalVars exposes site-wide values (site name, base URL) as locals
// so rendered views can reach them through PassLocalsToViews.
func InjectGlobalVars(vars fiber.Map) fiber.Handler {
	globals := make(fiber.Map, len(vars))
	for key, val := range vars {
		globals[key] = val
	}
	return func(ctx *fiber.Ctx) error {
		for key, val := range globals {
			ctx.Locals(key, val)
		}
		return ctx.Next()
	}
}
