package oauth

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/params"
)

// ServerMetadata is the RFC 8414 authorization server metadata document.
type ServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// ResourceMetadata is the RFC 9728 protected resource metadata document MCP
// clients fetch to discover the authorization server.
type ResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

type MetadataHandler struct {
	server   ServerMetadata
	resource ResourceMetadata
}

func (h *MetadataHandler) GetServerMetadata(ctx *fiber.Ctx) error {
	return ctx.JSON(h.server)
}

func (h *MetadataHandler) GetResourceMetadata(ctx *fiber.Ctx) error {
	return ctx.JSON(h.resource)
}

func NewMetadataHandler(baseURL string) (*MetadataHandler, error) {
	authorizeURL, err := url.JoinPath(baseURL, "oauth", "authorize")
	if err != nil {
		return nil, err
	}
	tokenURL, _ := url.JoinPath(baseURL, "oauth", "token")
	resourceURL, _ := url.JoinPath(baseURL, params.MCPEndpointPath)
	return &MetadataHandler{
		server: ServerMetadata{
			Issuer:                            baseURL,
			AuthorizationEndpoint:             authorizeURL,
			TokenEndpoint:                     tokenURL,
			ResponseTypesSupported:            []string{responseTypeCode},
			GrantTypesSupported:               []string{grantTypeAuthorizationCode, grantTypeRefreshToken},
			CodeChallengeMethodsSupported:     []string{"S256", "plain"},
			TokenEndpointAuthMethodsSupported: []string{"none"},
		},
		resource: ResourceMetadata{
			Resource:               resourceURL,
			AuthorizationServers:   []string{baseURL},
			BearerMethodsSupported: []string{"header"},
		},
	}, nil
}
