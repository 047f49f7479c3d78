package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,     default=8096"`
	Env      string `env:"ENV,      default=development"`
	BaseURL  string `env:"BASE_URL, default=http://localhost:8096"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Session SessionConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	OIDC    OIDCConfig
	Media   MediaConfig
	Vault   VaultConfig
	Sweep   SweepConfig
	Pairing PairingConfig
	Notify  NotifyConfig
}

type SessionConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TTL       time.Duration `env:"SESSION_TTL, default=24h"`
}

type MongoConfig struct {
	URI         string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database    string `env:"MONGO_DB,  default=jellyconnect"`
	MaxPoolSize uint64 `env:"MONGO_MAX_POOL_SIZE, default=50"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type OIDCConfig struct {
	IssuerURL    string `env:"OIDC_ISSUER_URL"`
	ClientID     string `env:"OIDC_CLIENT_ID"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string `env:"OIDC_REDIRECT_URL"`
	// GroupClaims lists the ID-token claim names probed in order for the
	// user's group memberships; the first claim present wins. Multi-value
	// defaults live in Load, not the tag.
	GroupClaims []string `env:"OIDC_GROUP_CLAIMS"`
	Scopes      []string `env:"OIDC_SCOPES"`
}

type MediaConfig struct {
	URL     string        `env:"MEDIA_URL, default=http://localhost:8097"`
	Token   string        `env:"MEDIA_API_TOKEN"`
	Timeout time.Duration `env:"MEDIA_TIMEOUT, default=15s"`
}

type VaultConfig struct {
	Secret string `env:"VAULT_SECRET"`
}

type SweepConfig struct {
	// Schedule is a cron expression; the sweep runs hourly unless overridden.
	Schedule       string `env:"SWEEP_SCHEDULE, default=0 * * * *"`
	WarnWindowDays int    `env:"SWEEP_WARN_WINDOW_DAYS, default=7"`
}

type PairingConfig struct {
	// AllowUnattributed enables the last-resort approval that cannot
	// attribute the pairing to the requesting user.
	AllowUnattributed bool `env:"PAIRING_ALLOW_UNATTRIBUTED, default=true"`
}

type NotifyConfig struct {
	Workers int `env:"NOTIFY_WORKERS, default=4"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(cfg.OIDC.GroupClaims) == 0 {
		cfg.OIDC.GroupClaims = []string{"groups", "roles"}
	}
	if len(cfg.OIDC.Scopes) == 0 {
		cfg.OIDC.Scopes = []string{"openid", "profile", "email", "groups"}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Session.JWTSecret == "":
		return fmt.Errorf("config: JWT_SECRET is required")
	case c.Vault.Secret == "":
		return fmt.Errorf("config: VAULT_SECRET is required")
	case c.OIDC.IssuerURL == "":
		return fmt.Errorf("config: OIDC_ISSUER_URL is required")
	case c.OIDC.ClientID == "":
		return fmt.Errorf("config: OIDC_CLIENT_ID is required")
	case c.Media.Token == "":
		return fmt.Errorf("config: MEDIA_API_TOKEN is required")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
