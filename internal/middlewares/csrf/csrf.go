package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/gob"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/internal/middlewares/sessions"
	"github.com/khanghh/mcpauth/params"
)

const (
	CSRFTokenSessionKey = "_csrf"
	CSRFTokenFormField  = "_csrf"
)

type CSRF struct {
	Token     string
	ExpiresAt time.Time
}

func init() {
	gob.Register(CSRF{})
}

// Get returns the session's CSRF token, minting a new one when it is missing
// or expired.
func Get(session *sessions.Session) CSRF {
	csrf, ok := session.Get(CSRFTokenSessionKey).(CSRF)
	if !ok || time.Now().After(csrf.ExpiresAt) {
		csrf = generateCSRF()
		session.Set(CSRFTokenSessionKey, csrf)
	}
	return csrf
}

func Verify(ctx *fiber.Ctx) bool {
	token := ctx.Get("X-CSRF-Token")
	if token == "" && ctx.Method() == fiber.MethodPost {
		token = ctx.FormValue(CSRFTokenFormField)
	}
	if token == "" {
		return false
	}

	csrf, ok := sessions.Get(ctx).Get(CSRFTokenSessionKey).(CSRF)
	if !ok || time.Now().After(csrf.ExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(csrf.Token), []byte(token)) == 1
}

func randomToken() string {
	const tokenLength = 32
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate CSRF token: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func generateCSRF() CSRF {
	return CSRF{
		Token:     randomToken(),
		ExpiresAt: time.Now().Add(params.CSRFTokenExpiration),
	}
}
