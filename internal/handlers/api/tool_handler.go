package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/internal/middlewares"
)

// ToolHandler serves the tool gateway over plain JSON for clients that do
// not speak MCP. Routes are expected behind middlewares.BearerAuth.
type ToolHandler struct {
	gateway ToolGateway
}

func (h *ToolHandler) GetTools(ctx *fiber.Ctx) error {
	defs := h.gateway.Registry().Definitions()
	infos := make([]ToolInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return ctx.JSON(NewDataResponse(infos))
}

func (h *ToolHandler) PostInvokeTool(ctx *fiber.Ctx) error {
	principal := middlewares.GetPrincipal(ctx)
	if principal == nil {
		return fiber.ErrUnauthorized
	}

	var args map[string]any
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&args); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(
				NewErrorResponse(fiber.StatusBadRequest, "arguments must be a JSON object"),
			)
		}
	}

	result, err := h.gateway.Invoke(ctx.UserContext(), principal, ctx.Params("name"), args)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(result))
}

func NewToolHandler(gateway ToolGateway) *ToolHandler {
	return &ToolHandler{gateway: gateway}
}
