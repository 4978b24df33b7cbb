package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/params"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type principalCtxKey struct{}

func ContextWithPrincipal(ctx context.Context, principal *auth.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, principal)
}

func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey{}).(*auth.Principal)
	return principal, ok && principal != nil
}

// NewMCPServer registers every gateway tool on an MCP server. Tool calls read
// the principal that the bearer middleware stored on the request context.
func NewMCPServer(gateway *Gateway) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		params.MCPServerName,
		params.MCPServerVersion,
		server.WithToolCapabilities(false),
	)
	for _, tool := range gateway.Registry().Tools() {
		name := tool.Definition.Name
		mcpServer.AddTool(tool.Definition, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			principal, ok := PrincipalFromContext(ctx)
			if !ok {
				return ErrorResult(ErrorKindUnauthorized, "no authenticated principal").ToMCP(), nil
			}
			result, err := gateway.Invoke(ctx, principal, name, request.GetArguments())
			if err != nil {
				return nil, err
			}
			return result.ToMCP(), nil
		})
	}
	return mcpServer
}

// NewMCPHandler serves the MCP streamable HTTP transport behind bearer token
// authentication. resourceMetadataURL is advertised in WWW-Authenticate.
func NewMCPHandler(gateway *Gateway, resourceMetadataURL string) http.Handler {
	streamable := server.NewStreamableHTTPServer(
		NewMCPServer(gateway),
		server.WithEndpointPath(params.MCPEndpointPath),
		server.WithStateLess(true),
	)
	return &bearerMiddleware{
		gateway:             gateway,
		next:                streamable,
		resourceMetadataURL: resourceMetadataURL,
		now:                 gateway.now,
	}
}

type bearerMiddleware struct {
	gateway             *Gateway
	next                http.Handler
	resourceMetadataURL string
	now                 func() time.Time
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, params.TokenTypeBearer) {
		return ""
	}
	return strings.TrimSpace(token)
}

func (m *bearerMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		m.challenge(w, "", "bearer token required")
		return
	}
	principal, err := m.gateway.Authenticate(r.Context(), token)
	if err != nil {
		var oauthErr *auth.OAuthError
		if !errors.As(err, &oauthErr) {
			slog.Error("Failed to authenticate MCP request", "error", err)
			m.writeError(w, http.StatusInternalServerError, auth.ErrorResponse{Error: auth.ErrCodeServerError})
			return
		}
		if oauthErr.Code == auth.ErrCodeUnauthorized {
			m.challenge(w, "invalid_token", oauthErr.Description)
			return
		}
		now := m.now()
		for k, v := range oauthErr.Headers(now) {
			w.Header().Set(k, v)
		}
		m.writeError(w, oauthErr.StatusCode(), oauthErr.Response(now))
		return
	}
	m.next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
}

func (m *bearerMiddleware) challenge(w http.ResponseWriter, errCode string, description string) {
	challenge := `Bearer realm="` + params.MCPServerName + `"`
	if errCode != "" {
		challenge += `, error="` + errCode + `"`
	}
	if m.resourceMetadataURL != "" {
		challenge += `, resource_metadata="` + m.resourceMetadataURL + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	m.writeError(w, http.StatusUnauthorized, auth.ErrorResponse{Error: auth.ErrCodeUnauthorized, ErrorDescription: description})
}

func (m *bearerMiddleware) writeError(w http.ResponseWriter, status int, body auth.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
