// Package config loads portalguard settings with Viper: defaults in code,
// an optional YAML file, and PORTAL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"portalguard/memory"
	"portalguard/rbac"
)

// EnvPrefix prefixes every environment override, e.g. PORTAL_IDENTITY_BASE_URL.
const EnvPrefix = "PORTAL"

// Store backends
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the complete portalguard configuration.
type Config struct {
	LogLevel string          `mapstructure:"log_level"`
	Identity IdentityConfig  `mapstructure:"identity"`
	Store    StoreConfig     `mapstructure:"store"`
	Session  SessionConfig   `mapstructure:"session"`
	Guard    GuardConfig     `mapstructure:"guard"`
	Registry rbac.Definition `mapstructure:"registry"`
	Dev      DevConfig       `mapstructure:"dev"`
}

// IdentityConfig points at the identity REST API.
type IdentityConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects where the session is persisted.
type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SessionConfig tunes the session lifecycle.
type SessionConfig struct {
	// RefreshLead refreshes this long before the access token expires; 0 disables
	RefreshLead time.Duration `mapstructure:"refresh_lead"`
}

// GuardConfig configures the route guard redirects.
type GuardConfig struct {
	LoginPath        string `mapstructure:"login_path"`
	UnauthorizedPath string `mapstructure:"unauthorized_path"`
}

// DevConfig configures the development identity server.
type DevConfig struct {
	Listen        string `mapstructure:"listen"`
	memory.Config `mapstructure:",squash"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".portal"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	if len(cfg.Registry.Roles) == 0 {
		cfg.Registry = rbac.DefaultDefinition()
	}
	if len(cfg.Dev.Users) == 0 {
		cfg.Dev.Users = memory.DemoUsers()
	}
	return &cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dev := memory.DefaultConfig()

	v.SetDefault("log_level", "info")

	v.SetDefault("identity.base_url", "http://localhost:8080")
	v.SetDefault("identity.timeout", 10*time.Second)

	v.SetDefault("store.backend", StoreFile)
	v.SetDefault("store.path", filepath.Join(home, ".portal", "session.json"))
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "portal:session")
	v.SetDefault("store.redis.ttl", 0)

	v.SetDefault("session.refresh_lead", time.Minute)

	v.SetDefault("guard.login_path", "/login")
	v.SetDefault("guard.unauthorized_path", "/unauthorized")

	v.SetDefault("dev.listen", "127.0.0.1:8080")
	v.SetDefault("dev.bcrypt_cost", dev.BCryptCost)
	v.SetDefault("dev.revocation_size", dev.RevocationSize)
	v.SetDefault("dev.jwt.secret_key", dev.JWT.SecretKey)
	v.SetDefault("dev.jwt.algorithm", string(dev.JWT.Algorithm))
	v.SetDefault("dev.jwt.issuer", dev.JWT.Issuer)
	v.SetDefault("dev.jwt.audience", dev.JWT.Audience)
	v.SetDefault("dev.jwt.access_token_expiry", dev.JWT.AccessTokenExpiry)
	v.SetDefault("dev.jwt.refresh_token_expiry", dev.JWT.RefreshTokenExpiry)
	v.SetDefault("dev.jwt.clock_skew", dev.JWT.ClockSkew)
}

// Validate checks the sections the client side needs. The dev section is
// validated by memory.NewService when the server starts.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Identity.BaseURL == "" {
		return errors.New("identity.base_url is required")
	}
	if c.Identity.Timeout <= 0 {
		return errors.New("identity.timeout must be positive")
	}

	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the file backend")
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
		if c.Store.Redis.TTL < 0 {
			return errors.New("store.redis.ttl must not be negative")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	if c.Session.RefreshLead < 0 {
		return errors.New("session.refresh_lead must not be negative")
	}
	if !strings.HasPrefix(c.Guard.LoginPath, "/") || !strings.HasPrefix(c.Guard.UnauthorizedPath, "/") {
		return errors.New("guard paths must be absolute")
	}
	if _, err := rbac.NewRegistry(c.Registry); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return l, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
