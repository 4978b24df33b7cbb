package common

import "log/slog"

const redacted = "[REDACTED]"

// Redact replaces a secret with a fingerprint that is safe to log and still lets
// two log lines about the same credential be correlated.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redacted + ":" + HashToken(secret)[:8]
}

// RedactedToken wraps a credential so that it cannot leak through fmt, slog or
// JSON encoding by accident.
type RedactedToken struct {
	value string
}

func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the wrapped credential. Never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

func (t RedactedToken) String() string {
	return redacted
}

func (t RedactedToken) GoString() string {
	return "common.RedactedToken{" + redacted + "}"
}

func (t RedactedToken) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
