package auth

import (
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse is the JSON body of every OAuth error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RetryAfter       int    `json:"retry_after,omitempty"`
}

// StatusCode maps an error code to its HTTP status.
func (e *OAuthError) StatusCode() int {
	switch e.Code {
	case ErrCodeInvalidGrant, ErrCodeInvalidRequest, ErrCodeUnsupportedGrant:
		return http.StatusBadRequest
	case ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (e *OAuthError) Response(now time.Time) ErrorResponse {
	resp := ErrorResponse{Error: e.Code, ErrorDescription: e.Description}
	if e.RateLimit != nil {
		resp.RetryAfter = e.RateLimit.RetryAfter(now)
	}
	return resp
}

// Headers returns the extra response headers for the error: Retry-After and
// X-RateLimit-Reset on rate limit denials.
func (e *OAuthError) Headers(now time.Time) map[string]string {
	if e.RateLimit == nil {
		return nil
	}
	return map[string]string{
		"Retry-After":           strconv.Itoa(e.RateLimit.RetryAfter(now)),
		"X-RateLimit-Limit":     strconv.Itoa(e.RateLimit.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(e.RateLimit.Remaining),
		"X-RateLimit-Reset":     e.RateLimit.ResetAt.UTC().Format(time.RFC3339),
	}
}
