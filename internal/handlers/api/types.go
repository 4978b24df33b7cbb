package api

import (
	"context"

	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/tools"
)

type ToolGateway interface {
	Registry() *tools.Registry
	Invoke(ctx context.Context, principal *auth.Principal, name string, rawArgs map[string]any) (*tools.Result, error)
}

type MembershipRevoker interface {
	RevokeMembership(ctx context.Context, userID uint, orgID uint) (int, error)
}
