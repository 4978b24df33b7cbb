package auth

import (
	"errors"
	"fmt"

	"github.com/khanghh/mcpauth/internal/ratelimit"
)

const (
	ErrCodeInvalidGrant      = "invalid_grant"
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeAccessDenied      = "access_denied"
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeNotFound          = "not_found"
	ErrCodeServerError       = "server_error"
	ErrCodeUnsupportedGrant  = "unsupported_grant_type"
)

// OAuthError is a protocol level failure that is reported to the client as
// {error, error_description}. Descriptions never contain credentials.
type OAuthError struct {
	Code        string
	Description string
	RateLimit   *ratelimit.Result
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *OAuthError) Is(target error) bool {
	t, ok := target.(*OAuthError)
	return ok && t.Code == e.Code
}

func newOAuthError(code, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description}
}

// Code-only values for errors.Is comparisons.
var (
	ErrInvalidGrant      = &OAuthError{Code: ErrCodeInvalidGrant}
	ErrInvalidRequest    = &OAuthError{Code: ErrCodeInvalidRequest}
	ErrAccessDenied      = &OAuthError{Code: ErrCodeAccessDenied}
	ErrRateLimitExceeded = &OAuthError{Code: ErrCodeRateLimitExceeded}
	ErrNotFound          = &OAuthError{Code: ErrCodeNotFound}
)

// AsOAuthError reports whether err carries an OAuth error code.
func AsOAuthError(err error) (*OAuthError, bool) {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr, true
	}
	return nil, false
}
