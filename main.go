package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/gofiber/template/html/v2"
	"github.com/khanghh/mcpauth/internal/audit"
	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/authcode"
	"github.com/khanghh/mcpauth/internal/common"
	"github.com/khanghh/mcpauth/internal/config"
	"github.com/khanghh/mcpauth/internal/handlers/api"
	"github.com/khanghh/mcpauth/internal/handlers/oauth"
	"github.com/khanghh/mcpauth/internal/middlewares"
	"github.com/khanghh/mcpauth/internal/middlewares/sessions"
	"github.com/khanghh/mcpauth/internal/notes"
	"github.com/khanghh/mcpauth/internal/ratelimit"
	"github.com/khanghh/mcpauth/internal/store"
	"github.com/khanghh/mcpauth/internal/tools"
	"github.com/khanghh/mcpauth/internal/users"
	"github.com/khanghh/mcpauth/model"
	"github.com/khanghh/mcpauth/params"
	"github.com/khanghh/mcpauth/templates"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "mcpauth - authorization server for MCP tool clients"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Replicas only serve the application's own tables; grant and token
	// reads must see writes made a moment earlier.
	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}, model.AppModels...)
		if err := db.Use(resolver); err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to access database pool", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
	}

	if err := model.AutoMigrate(db, false); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	return db
}

func mustInitHtmlEngine(templateDir string) *html.Engine {
	if templateDir != "" {
		return html.NewFileSystem(http.Dir(templateDir), ".html")
	}
	return html.NewFileSystem(http.FS(templates.FS), ".html")
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

// purgeRateLimits periodically drops ledger markers older than the longest
// window. It returns when ctx is done.
func purgeRateLimits(ctx context.Context, ledger *ratelimit.GormLedger, interval, maxWindow time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := ledger.Purge(ctx, time.Now().Add(-maxWindow))
			if err != nil {
				slog.Warn("Rate limit purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("Purged rate limit markers", "count", n)
			}
		}
	}
}

func maxWindow(policies ratelimit.Policies) time.Duration {
	window := policies.Authorize.Window
	for _, p := range []ratelimit.Policy{policies.Token, policies.Tool} {
		if p.Window > window {
			window = p.Window
		}
	}
	return window
}

func setupRoutes(
	router fiber.Router,
	cfg *config.Config,
	sessionStorage fiber.Storage,
	limiter *ratelimit.Limiter,
	policies ratelimit.Policies,
	oauthHandler *oauth.OAuthHandler,
	metadataHandler *oauth.MetadataHandler,
	gateway *tools.Gateway,
	toolHandler *api.ToolHandler,
	membershipHandler *api.MembershipHandler,
	mcpHandler http.Handler) {

	router.Get("/.well-known/oauth-authorization-server", metadataHandler.GetServerMetadata)
	router.Get("/.well-known/oauth-protected-resource", metadataHandler.GetResourceMetadata)
	router.Post("/oauth/token", middlewares.RateLimit(limiter, policies.Token, middlewares.ByIP), oauthHandler.PostToken)
	router.All(params.MCPEndpointPath, adaptor.HTTPHandler(mcpHandler))
	router.Post("/internal/memberships/revoke", membershipHandler.RequireInternalKey, membershipHandler.PostRevokeMembership)

	apiRouter := router.Group("/api", middlewares.BearerAuth(gateway))
	apiRouter.Get("/tools", toolHandler.GetTools)
	apiRouter.Post("/tools/:name", toolHandler.PostInvokeTool)

	sessionRouter := router.Group("/oauth", sessions.New(sessions.Config{
		Storage:        sessionStorage,
		SessionMaxAge:  cfg.Session.SessionMaxAge,
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHttpOnly: cfg.Session.CookieHttpOnly,
		CookieName:     cfg.Session.CookieName,
	}))
	sessionRouter.Get("/authorize", oauthHandler.GetAuthorize)
	sessionRouter.Post("/authorize", oauthHandler.PostAuthorize)
	sessionRouter.Get("/authorizations", oauthHandler.GetAuthorizations)
	sessionRouter.Post("/authorizations/:id/revoke", oauthHandler.PostRevokeAuthorization)
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	globalVars := fiber.Map{
		"siteName": config.SiteName,
		"baseURL":  config.BaseURL,
	}

	db := mustInitDatabase(config.MySQL)
	var (
		sessionStorage fiber.Storage
		redisStorage   *redis.Storage
	)
	if config.Redis.URL != "" {
		redisStorage = mustInitRedisStorage(config.Redis)
		sessionStorage = redisStorage
	} else {
		slog.Warn("redis.url is not set, sessions are kept in memory")
		sessionStorage = memory.New()
	}

	appCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(appCtx)

	policies := config.RateLimit.Policies()
	var ledger ratelimit.Ledger
	if config.RateLimit.UsesRedis() {
		ledger = store.StorageWithPrefix(store.NewRedisStorage(redisStorage.Conn()), params.RateLimitKeyPrefix)
	} else {
		gormLedger := ratelimit.NewGormLedger(db)
		ledger = gormLedger
		g.Go(func() error {
			return purgeRateLimits(gctx, gormLedger, config.RateLimit.PurgeInterval, maxWindow(policies))
		})
	}

	codeStore := authcode.NewStore(
		authcode.WithSweepInterval(config.CodeStore.SweepInterval),
		authcode.WithSweepBatchSize(config.CodeStore.SweepBatchSize),
	)
	if err := codeStore.Start(gctx); err != nil {
		return err
	}
	defer codeStore.Stop()

	auditRecorder := audit.NewSlogRecorder(slog.Default())
	limiter := ratelimit.NewLimiter(ledger)

	// repositories
	var (
		userRepo = users.NewUserRepository(db)
		noteRepo = notes.NewNoteRepository(db)
		authRepo = auth.NewAuthorizationRepository(db)
	)

	// services
	var (
		userService = users.NewUserService(userRepo)
		noteService = notes.NewNoteService(noteRepo)
		grants      = auth.NewGrantService(authRepo, codeStore, limiter, userService,
			auth.WithAuditRecorder(auditRecorder),
			auth.WithAuthorizePolicy(policies.Authorize),
		)
		validator = auth.NewAccessValidator(authRepo, userService)
	)

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, userService, noteService); err != nil {
		return err
	}
	gateway := tools.NewGateway(registry, validator, limiter,
		tools.WithToolPolicy(policies.Tool),
		tools.WithAuditRecorder(auditRecorder),
	)

	metadataHandler, err := oauth.NewMetadataHandler(config.BaseURL)
	if err != nil {
		return err
	}
	resourceMetadataURL, _ := url.JoinPath(config.BaseURL, ".well-known", "oauth-protected-resource")
	signer := oauth.NewConsentSigner(config.MasterKey, params.ConsentRequestTTL, time.Now)

	router := fiber.New(fiber.Config{
		Prefork:           false,
		CaseSensitive:     true,
		BodyLimit:         params.ServerBodyLimit,
		IdleTimeout:       params.ServerIdleTimeout,
		ReadTimeout:       params.ServerReadTimeout,
		WriteTimeout:      params.ServerWriteTimeout,
		Views:             mustInitHtmlEngine(config.TemplateDir),
		PassLocalsToViews: true,
		ErrorHandler:      middlewares.NewErrorHandler(time.Now),
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(config.AllowOrigins, ", "),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Mcp-Session-Id, Mcp-Protocol-Version",
		ExposeHeaders: "WWW-Authenticate, Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset",
	}))
	router.Use(middlewares.InjectGlobalVars(globalVars))

	setupRoutes(
		router,
		config,
		sessionStorage,
		limiter,
		policies,
		oauth.NewOAuthHandler(grants, userService, signer, auditRecorder, config.LoginURL),
		metadataHandler,
		gateway,
		api.NewToolHandler(gateway),
		api.NewMembershipHandler(grants, config.InternalKeyHash),
		tools.NewMCPHandler(gateway, resourceMetadataURL),
	)

	g.Go(func() error {
		var rdb goredis.UniversalClient
		if redisStorage != nil {
			rdb = redisStorage.Conn()
		}
		return common.StartHealthCheckServer(gctx, params.HealthCheckServerAddr, rdb, db)
	})
	g.Go(func() error {
		<-gctx.Done()
		return router.ShutdownWithTimeout(5 * time.Second)
	})
	g.Go(func() error {
		slog.Info("Starting authorization server", "addr", config.ListenAddr, "version", params.VersionWithCommit(gitCommit, gitDate))
		return router.Listen(config.ListenAddr)
	})
	return g.Wait()
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
