package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khanghh/mcpauth/internal/common"
	"github.com/khanghh/mcpauth/internal/users"
	"github.com/khanghh/mcpauth/model"
	"github.com/khanghh/mcpauth/params"
	"gorm.io/gorm"
)

// Reasons a token fails validation. They are for logs only; clients see a
// single "unauthorized" outcome.
const (
	ReasonMissing       = "missing"
	ReasonNotFound      = "not_found"
	ReasonExpired       = "expired"
	ReasonRevoked       = "revoked"
	ReasonPrincipalGone = "principal_gone"
)

// Principal is the user and organization an access token acts for.
type Principal struct {
	User            *model.User
	Organization    *model.Organization
	AuthorizationID uint
}

type Validation struct {
	Valid     bool
	Principal *Principal
	Reason    string
}

func invalid(reason string) Validation {
	return Validation{Reason: reason}
}

type PrincipalDirectory interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	GetOrganizationByID(ctx context.Context, orgID uint) (*model.Organization, error)
}

// AccessValidator resolves a presented bearer token to a Principal.
type AccessValidator struct {
	authRepo  AuthorizationRepository
	directory PrincipalDirectory
	options
}

// Validate never fails for a bad token; it returns a Validation with Valid
// false. Only store failures are returned as errors.
func (v *AccessValidator) Validate(ctx context.Context, token string) (Validation, error) {
	if token == "" {
		return invalid(ReasonMissing), nil
	}
	accessToken, err := v.authRepo.FindAccessToken(ctx, common.HashToken(token))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid(ReasonNotFound), nil
	}
	if err != nil {
		return Validation{}, fmt.Errorf("find access token: %w", err)
	}

	now := v.now()
	if !now.Before(accessToken.ExpiresAt) {
		return invalid(ReasonExpired), nil
	}
	authz := accessToken.Authorization
	if authz == nil || !authz.Active {
		return invalid(ReasonRevoked), nil
	}

	user, err := v.directory.GetUserByID(ctx, authz.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		return invalid(ReasonPrincipalGone), nil
	}
	if err != nil {
		return Validation{}, fmt.Errorf("resolve user: %w", err)
	}
	org, err := v.directory.GetOrganizationByID(ctx, authz.OrganizationID)
	if errors.Is(err, users.ErrOrganizationNotFound) {
		return invalid(ReasonPrincipalGone), nil
	}
	if err != nil {
		return Validation{}, fmt.Errorf("resolve organization: %w", err)
	}

	if now.Sub(authz.LastUsedAt) >= params.LastUsedTouchInterval {
		if err := v.authRepo.TouchAuthorization(ctx, authz.ID, now); err != nil {
			slog.Warn("Failed to update authorization last use", "authorizationID", authz.ID, "error", err)
		}
	}

	return Validation{
		Valid: true,
		Principal: &Principal{
			User:            user,
			Organization:    org,
			AuthorizationID: authz.ID,
		},
	}, nil
}

func NewAccessValidator(authRepo AuthorizationRepository, directory PrincipalDirectory, opts ...Option) *AccessValidator {
	return &AccessValidator{
		authRepo:  authRepo,
		directory: directory,
		options:   newOptions(opts),
	}
}
