package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const internalKeyHeader = "X-Internal-Key"

// MembershipHandler receives membership changes from the surrounding
// application over an internal, shared-key authenticated hook.
type MembershipHandler struct {
	revoker         MembershipRevoker
	internalKeyHash []byte
}

// RequireInternalKey rejects requests whose X-Internal-Key does not match the
// configured bcrypt hash. An empty hash disables the hook entirely.
func (h *MembershipHandler) RequireInternalKey(ctx *fiber.Ctx) error {
	key := ctx.Get(internalKeyHeader)
	if len(h.internalKeyHash) == 0 || key == "" {
		return fiber.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(h.internalKeyHash, []byte(key)); err != nil {
		slog.Warn("Rejected internal hook call", "ip", ctx.IP())
		return fiber.ErrUnauthorized
	}
	return ctx.Next()
}

// PostRevokeMembership revokes every active authorization the user holds in
// the organization they were removed from.
func (h *MembershipHandler) PostRevokeMembership(ctx *fiber.Ctx) error {
	var req RevokeMembershipRequest
	if err := ctx.BodyParser(&req); err != nil || req.UserID == 0 || req.OrganizationID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "user_id and organization_id are required"),
		)
	}

	revoked, err := h.revoker.RevokeMembership(ctx.UserContext(), req.UserID, req.OrganizationID)
	if err != nil {
		return err
	}
	slog.Info("Membership revoked", "userID", req.UserID, "orgID", req.OrganizationID, "revoked", revoked)
	return ctx.JSON(NewDataResponse(RevokeMembershipResponse{Revoked: revoked}))
}

func NewMembershipHandler(revoker MembershipRevoker, internalKeyHash string) *MembershipHandler {
	return &MembershipHandler{
		revoker:         revoker,
		internalKeyHash: []byte(internalKeyHash),
	}
}
