package oauth

import (
	"context"

	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/model"
)

type GrantService interface {
	IssueCode(ctx context.Context, req auth.CodeRequest) (string, error)
	Exchange(ctx context.Context, req auth.ExchangeRequest) (*auth.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string, ip string) (*auth.TokenResponse, error)
	ListAuthorizations(ctx context.Context, userID uint) ([]model.Authorization, error)
	RevokeForUser(ctx context.Context, userID uint, authzID uint) error
}

type UserService interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	GetOrganizations(ctx context.Context, userID uint) ([]model.Organization, error)
}
