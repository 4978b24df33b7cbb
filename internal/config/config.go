package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/khanghh/mcpauth/internal/ratelimit"
	"github.com/khanghh/mcpauth/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr   = ":3000"
	DefaultSiteName     = "Notes"
	DefaultCookieName   = "session_id"
	DefaultCookieMaxAge = 7 * 24 * time.Hour
	DefaultPurgeEvery   = 10 * time.Minute
)

const (
	RateLimitBackendDatabase = "database"
	RateLimitBackendRedis    = "redis"
)

type MySQLConfig struct {
	Dsn             string        `mapstructure:"dsn"`
	Replicas        []string      `mapstructure:"replicas"`
	TablePrefix     string        `mapstructure:"tablePrefix"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type SessionConfig struct {
	SessionMaxAge  time.Duration `mapstructure:"sessionMaxAge"`
	CookieName     string        `mapstructure:"cookieName"`
	CookieHttpOnly bool          `mapstructure:"cookieHttpOnly"`
	CookieSecure   bool          `mapstructure:"cookieSecure"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type RateLimitPolicyConfig struct {
	Window time.Duration `mapstructure:"window"`
	Max    int           `mapstructure:"max"`
}

type RateLimitConfig struct {
	Backend       string                `mapstructure:"backend"`
	PurgeInterval time.Duration         `mapstructure:"purgeInterval"`
	Authorize     RateLimitPolicyConfig `mapstructure:"authorize"`
	Token         RateLimitPolicyConfig `mapstructure:"token"`
	Tool          RateLimitPolicyConfig `mapstructure:"tool"`
}

// Policies returns the configured limits, falling back to the defaults for
// any category left unset.
func (c RateLimitConfig) Policies() ratelimit.Policies {
	policies := ratelimit.DefaultPolicies()
	apply := func(p *ratelimit.Policy, cfg RateLimitPolicyConfig) {
		if cfg.Window > 0 {
			p.Window = cfg.Window
		}
		if cfg.Max > 0 {
			p.Max = cfg.Max
		}
	}
	apply(&policies.Authorize, c.Authorize)
	apply(&policies.Token, c.Token)
	apply(&policies.Tool, c.Tool)
	return policies
}

func (c RateLimitConfig) UsesRedis() bool {
	return c.Backend == RateLimitBackendRedis
}

type CodeStoreConfig struct {
	SweepInterval  time.Duration `mapstructure:"sweepInterval"`
	SweepBatchSize int           `mapstructure:"sweepBatchSize"`
}

type Config struct {
	Debug           bool            `mapstructure:"debug"`
	SiteName        string          `mapstructure:"siteName"`
	BaseURL         string          `mapstructure:"baseURL"`
	LoginURL        string          `mapstructure:"loginURL"`
	MasterKey       string          `mapstructure:"masterKey"`
	InternalKeyHash string          `mapstructure:"internalKeyHash"`
	ListenAddr      string          `mapstructure:"listenAddr"`
	TemplateDir     string          `mapstructure:"templateDir"`
	AllowOrigins    []string        `mapstructure:"allowOrigins"`
	Redis           RedisConfig     `mapstructure:"redis"`
	Session         SessionConfig   `mapstructure:"session"`
	MySQL           MySQLConfig     `mapstructure:"mysql"`
	RateLimit       RateLimitConfig `mapstructure:"rateLimit"`
	CodeStore       CodeStoreConfig `mapstructure:"codeStore"`
}

func (c *Config) Sanitize() error {
	if c.MasterKey == "" {
		return errors.New("masterKey is required")
	}
	if c.BaseURL == "" {
		return errors.New("baseURL is required")
	}
	if c.MySQL.Dsn == "" {
		return errors.New("mysql.dsn is required")
	}
	dsn, err := normalizeDSN(c.MySQL.Dsn)
	if err != nil {
		return fmt.Errorf("invalid mysql.dsn: %w", err)
	}
	c.MySQL.Dsn = dsn
	for i, replica := range c.MySQL.Replicas {
		if c.MySQL.Replicas[i], err = normalizeDSN(replica); err != nil {
			return fmt.Errorf("invalid mysql.replicas[%d]: %w", i, err)
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.SiteName == "" {
		c.SiteName = DefaultSiteName
	}
	if c.Session.SessionMaxAge == 0 {
		c.Session.SessionMaxAge = DefaultCookieMaxAge
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}

	switch c.RateLimit.Backend {
	case "":
		c.RateLimit.Backend = RateLimitBackendDatabase
	case RateLimitBackendDatabase:
	case RateLimitBackendRedis:
		if c.Redis.URL == "" {
			return errors.New("rateLimit.backend redis requires redis.url")
		}
	default:
		return fmt.Errorf("unsupported rateLimit.backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.PurgeInterval == 0 {
		c.RateLimit.PurgeInterval = DefaultPurgeEvery
	}

	if c.CodeStore.SweepInterval == 0 {
		c.CodeStore.SweepInterval = params.CodeStoreSweepInterval
	}
	if c.CodeStore.SweepBatchSize == 0 {
		c.CodeStore.SweepBatchSize = params.CodeStoreSweepBatchSize
	}
	return nil
}

// normalizeDSN forces parseTime so DATETIME columns scan into time.Time.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
