package params

import "time"

const (
	ServerBodyLimit         = 1048576 // 1 MiB
	ServerIdleTimeout       = 30 * time.Second
	ServerReadTimeout       = 10 * time.Second
	ServerWriteTimeout      = 10 * time.Second
	HealthCheckServerAddr   = ":3001"          // health check server address
	TokenBytes              = 32               // random bytes per generated credential (256 bits)
	AuthorizationCodeTTL    = 10 * time.Minute // authorization code lifetime
	AccessTokenTTL          = 1 * time.Hour    // access token lifetime
	RefreshTokenTTL         = 30 * 24 * time.Hour
	CodeStoreSweepInterval  = 60 * time.Second // how often expired codes are evicted
	CodeStoreSweepBatchSize = 500              // max codes evicted per sweep pass
	ConsentRequestTTL       = 10 * time.Minute // lifetime of a signed pending authorization request
	CSRFTokenExpiration     = 1 * time.Hour
	RateLimitKeyPrefix      = "rl:"
	TokenTypeBearer         = "Bearer"
	MCPServerName           = "mcpauth"
	MCPServerVersion        = "1.0.0"
	MCPEndpointPath         = "/mcp"
)

// Default rate limit policies.
const (
	AuthorizeRateLimitMax    = 10
	AuthorizeRateLimitWindow = 1 * time.Hour
	TokenRateLimitMax        = 20
	TokenRateLimitWindow     = 1 * time.Hour
	ToolRateLimitMax         = 1000
	ToolRateLimitWindow      = 1 * time.Hour
)

const (
	RecentNotesLimit  = 10
	SearchUsersLimit  = 25
	NotePreviewLength = 280
)

const (
	DefaultClientName     = "MCP Client"
	MaxClientFieldLength  = 128             // characters allowed in client_id and client_name
	RevocationConcurrency = 4               // parallel transactions during cascading revocation
	LastUsedTouchInterval = 1 * time.Minute // minimum gap between lastUsedAt writes on validation
)
