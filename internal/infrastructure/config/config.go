package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

const envProduction = "production"

type Config struct {
	Port       string        `env:"PORT,        default=8080"`
	Env        string        `env:"ENV,         default=development"`
	LogLevel   string        `env:"LOG_LEVEL,   default=info"`
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL, default=168h"`
	// PublicURL is the externally reachable origin used to build the auth
	// callback link.
	PublicURL string `env:"PUBLIC_URL, default=http://localhost:8080"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Identity IdentityConfig
	Pending  PendingConfig
	AI       AIConfig
	Usage    UsageConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=codepilot"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type IdentityConfig struct {
	URL     string `env:"IDENTITY_URL"`
	AnonKey string `env:"IDENTITY_ANON_KEY"`
}

type PendingConfig struct {
	// KeyHex is the hex-encoded 32-byte sealing key.
	KeyHex string        `env:"PENDING_SIGNUP_KEY"`
	TTL    time.Duration `env:"PENDING_SIGNUP_TTL, default=1h"`

	Key []byte
}

type AIConfig struct {
	DefaultProvider string        `env:"AI_DEFAULT_PROVIDER, default=gemini"`
	Timeout         time.Duration `env:"AI_TIMEOUT,          default=60s"`
	CatalogFile     string        `env:"AI_CATALOG_FILE"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL, default=https://api.openai.com/v1"`
}

type UsageConfig struct {
	Workers       int    `env:"USAGE_WORKERS,  default=4"`
	StatsSchedule string `env:"STATS_SCHEDULE, default=@every 5m"`
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, envProduction)
}

// CallbackURL is the absolute URL of the auth callback route.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/auth/callback"
}

// Load reads configuration from environment variables using go-envconfig.
// Outside production a .env file in the working directory is read first;
// variables already set in the environment take precedence.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	if v, _ := lookuper.Lookup("ENV"); !strings.EqualFold(v, envProduction) {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Pending.KeyHex != "" {
		key, err := hex.DecodeString(cfg.Pending.KeyHex)
		if err != nil {
			return nil, fmt.Errorf("config: PENDING_SIGNUP_KEY: %w", err)
		}
		cfg.Pending.Key = key
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with. Production
// additionally requires real secrets instead of development fallbacks.
func (c *Config) Validate() error {
	var errs []error
	if !domain.AIProvider(c.AI.DefaultProvider).Valid() {
		errs = append(errs, fmt.Errorf("AI_DEFAULT_PROVIDER %q is not a known provider", c.AI.DefaultProvider))
	}
	if c.Pending.Key != nil && len(c.Pending.Key) != 32 {
		errs = append(errs, errors.New("PENDING_SIGNUP_KEY must decode to 32 bytes"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.IsProduction() {
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if c.Identity.URL == "" {
			errs = append(errs, errors.New("IDENTITY_URL is required in production"))
		}
		if c.Pending.Key == nil {
			errs = append(errs, errors.New("PENDING_SIGNUP_KEY is required in production"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
