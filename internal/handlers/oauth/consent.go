package oauth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrConsentInvalid = errors.New("consent request is invalid or expired")

// ConsentClaims carry a validated authorization request from the consent page
// to the consent submission, so the form cannot alter what the user saw.
type ConsentClaims struct {
	ClientID            string `json:"client_id,omitempty"`
	ClientName          string `json:"client_name,omitempty"`
	RedirectURI         string `json:"redirect_uri"`
	State               string `json:"state,omitempty"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	jwt.RegisteredClaims
}

// ConsentSigner signs pending authorization requests with the master key and
// binds them to the user who was shown the consent page.
type ConsentSigner struct {
	masterKey []byte
	expiresIn time.Duration
	now       func() time.Time
}

func (s *ConsentSigner) Sign(userID uint, claims ConsentClaims) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.masterKey)
}

func (s *ConsentSigner) Verify(tokenStr string, userID uint) (*ConsentClaims, error) {
	var claims ConsentClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.masterKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(strconv.FormatUint(uint64(userID), 10)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrConsentInvalid
	}
	return &claims, nil
}

func NewConsentSigner(masterKey string, expiresIn time.Duration, now func() time.Time) *ConsentSigner {
	if now == nil {
		now = time.Now
	}
	return &ConsentSigner{
		masterKey: []byte(masterKey),
		expiresIn: expiresIn,
		now:       now,
	}
}
