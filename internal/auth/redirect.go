package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/khanghh/mcpauth/internal/authcode"
	"github.com/khanghh/mcpauth/internal/common"
	"github.com/khanghh/mcpauth/params"
)

var (
	errRedirectURIRequired = errors.New("redirect_uri is required")
	errRedirectURIInvalid  = errors.New("redirect_uri must be an absolute URI without fragment")
)

var blockedRedirectSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"vbscript":   true,
	"file":       true,
}

// NormalizeRedirectURI lowercases the scheme and host and strips a single
// trailing slash from a non-root path. Two redirect URIs are equal when their
// normalized forms are equal.
func NormalizeRedirectURI(rawURI string) (string, error) {
	if rawURI == "" {
		return "", errRedirectURIRequired
	}
	u, err := url.Parse(rawURI)
	if err != nil || u.Scheme == "" || u.Fragment != "" || u.Opaque != "" {
		return "", errRedirectURIInvalid
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if blockedRedirectSchemes[u.Scheme] {
		return "", errRedirectURIInvalid
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return "", errRedirectURIInvalid
	}
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}
	return u.String(), nil
}

func sameRedirectURI(stored, presented string) bool {
	a, err := NormalizeRedirectURI(stored)
	if err != nil {
		return false
	}
	b, err := NormalizeRedirectURI(presented)
	if err != nil {
		return false
	}
	return a == b
}

// ValidateClientIdentity bounds the client-supplied identifiers to what an
// Authorization row can hold.
func ValidateClientIdentity(clientID, clientName string) error {
	if utf8.RuneCountInString(clientID) > params.MaxClientFieldLength {
		return fmt.Errorf("client_id must be at most %d characters", params.MaxClientFieldLength)
	}
	if utf8.RuneCountInString(clientName) > params.MaxClientFieldLength {
		return fmt.Errorf("client_name must be at most %d characters", params.MaxClientFieldLength)
	}
	return nil
}

// ValidateCodeChallenge checks a PKCE challenge and returns the effective
// method, "plain" when a challenge is given without one.
func ValidateCodeChallenge(challenge, method string) (string, error) {
	if challenge == "" {
		if method != "" {
			return "", errors.New("code_challenge_method given without code_challenge")
		}
		return "", nil
	}
	if method == "" {
		method = authcode.ChallengeMethodPlain
	}
	switch method {
	case authcode.ChallengeMethodS256:
		if len(challenge) != 43 {
			return "", errors.New("S256 code_challenge must be 43 characters")
		}
	case authcode.ChallengeMethodPlain:
		if len(challenge) > 128 {
			return "", errors.New("code_challenge is too long")
		}
	default:
		return "", errors.New("unsupported code_challenge_method")
	}
	return method, nil
}

// verifyPKCE checks the presented verifier against the challenge stored with
// the grant. A grant without a challenge accepts any verifier.
func verifyPKCE(grant *authcode.Grant, verifier string) bool {
	if !grant.HasChallenge() {
		return true
	}
	if verifier == "" {
		return false
	}
	expected := verifier
	if grant.CodeChallengeMethod == authcode.ChallengeMethodS256 {
		expected = common.S256Challenge(verifier)
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(grant.CodeChallenge)) == 1
}
