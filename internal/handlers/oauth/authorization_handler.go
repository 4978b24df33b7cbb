package oauth

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/internal/middlewares/csrf"
	"github.com/khanghh/mcpauth/internal/middlewares/sessions"
)

type authorizationView struct {
	ID             uint      `json:"id,string"`
	ClientID       string    `json:"client_id"`
	ClientName     string    `json:"client_name"`
	OrganizationID uint      `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastUsedAt     time.Time `json:"last_used_at"`
}

type authorizationList struct {
	CSRFToken      string              `json:"csrf_token"`
	Authorizations []authorizationView `json:"authorizations"`
}

// GetAuthorizations lists the logged in user's connected clients. The CSRF
// token in the response is required to revoke one of them.
func (h *OAuthHandler) GetAuthorizations(ctx *fiber.Ctx) error {
	session := sessions.Get(ctx)
	if !session.IsLoggedIn() {
		return fiber.NewError(fiber.StatusUnauthorized, "login required")
	}
	authzs, err := h.grantService.ListAuthorizations(ctx.UserContext(), session.UserID)
	if err != nil {
		return err
	}

	resp := authorizationList{
		CSRFToken:      csrf.Get(session).Token,
		Authorizations: make([]authorizationView, 0, len(authzs)),
	}
	for _, authz := range authzs {
		resp.Authorizations = append(resp.Authorizations, authorizationView{
			ID:             authz.ID,
			ClientID:       authz.ClientID,
			ClientName:     authz.ClientName,
			OrganizationID: authz.OrganizationID,
			CreatedAt:      authz.CreatedAt,
			LastUsedAt:     authz.LastUsedAt,
		})
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.JSON(resp)
}

func (h *OAuthHandler) PostRevokeAuthorization(ctx *fiber.Ctx) error {
	session := sessions.Get(ctx)
	if !session.IsLoggedIn() {
		return fiber.NewError(fiber.StatusUnauthorized, "login required")
	}
	if !csrf.Verify(ctx) {
		return fiber.NewError(fiber.StatusForbidden, "invalid csrf token")
	}
	authzID, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	if err != nil || authzID == 0 {
		return invalidRequest("invalid authorization id")
	}
	if err := h.grantService.RevokeForUser(ctx.UserContext(), session.UserID, uint(authzID)); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
