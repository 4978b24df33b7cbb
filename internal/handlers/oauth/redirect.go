package oauth

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// redirect sends the user agent to location with the given key/value pairs
// merged into its query. Empty string values are skipped.
func redirect(ctx *fiber.Ctx, location string, values ...any) error {
	u, err := url.Parse(location)
	if err != nil {
		return err
	}

	query := u.Query()
	for i := 0; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			slog.Error("invalid query parameter", "key", i)
			continue
		}
		if v := values[i+1]; v != nil {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			query.Set(key, fmt.Sprint(v))
		}
	}

	u.RawQuery = query.Encode()
	return ctx.Redirect(u.String(), fiber.StatusFound)
}
