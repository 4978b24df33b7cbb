package common

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/khanghh/mcpauth/params"
)

// GenerateToken returns params.TokenBytes of crypto/rand output encoded as
// unpadded base64url text.
func GenerateToken() (string, error) {
	raw := make([]byte, params.TokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the hex encoded SHA-256 digest of token. Only this value is
// ever persisted or used as a lookup key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// S256Challenge derives a PKCE S256 code challenge from a code verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
