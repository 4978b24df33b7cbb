package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	ErrDuplicateTool = errors.New("tool already registered")
	ErrInvalidTool   = errors.New("invalid tool")
)

// Handler runs a tool for principal. args is the value returned by the tool's
// NewArgs, already decoded and validated. Handlers must scope every read to
// principal.Organization. A returned error means the backing store failed.
type Handler func(ctx context.Context, args any, principal *auth.Principal) (*Result, error)

type Tool struct {
	Definition mcp.Tool
	NewArgs    func() any
	Handler    Handler
}

// Registry holds the tools served by a Gateway. Register every tool before the
// registry is handed to a Gateway; it is not safe for concurrent registration.
type Registry struct {
	tools map[string]Tool
	order []string
}

func (r *Registry) Register(tool Tool) error {
	name := tool.Definition.Name
	if name == "" || tool.Handler == nil || tool.NewArgs == nil {
		return fmt.Errorf("%w: %q", ErrInvalidTool, name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Definitions() []mcp.Tool {
	defs := make([]mcp.Tool, 0, len(r.order))
	for _, tool := range r.Tools() {
		defs = append(defs, tool.Definition)
	}
	return defs
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}
