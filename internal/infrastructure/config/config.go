package config

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	RegistrationInviteOnly = "invite_only"
	RegistrationOpen       = "open"

	emailKeySize     = 32
	minSessionSecret = 32
	minBcryptCost    = 12
)

// Config is built once at process start and never mutated afterwards.
type Config struct {
	Port          string `env:"PORT,            default=8080"`
	Env           string `env:"ENV,             default=development"`
	LogLevel      string `env:"LOG_LEVEL,       default=info"`
	LogPretty     bool   `env:"LOG_PRETTY,      default=false"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL, default=http://localhost:8080"`
	StoreDriver   string `env:"STORE_DRIVER,    default=mongo"`

	Security SecurityConfig
	Auth     AuthConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Mail     MailConfig
	Google   GoogleConfig
	Notify   NotifyConfig
}

type SecurityConfig struct {
	// EmailEncryptionKey is base64 of exactly 32 bytes (AES-256-GCM).
	EmailEncryptionKey string `env:"EMAIL_ENCRYPTION_KEY"`
	SessionSecret      string `env:"SESSION_SECRET"`
	BcryptCost         int    `env:"BCRYPT_COST,      default=12"`
	HashConcurrency    int    `env:"HASH_CONCURRENCY, default=0"`
}

type AuthConfig struct {
	RegistrationMode            string        `env:"REGISTRATION_MODE,              default=invite_only"`
	SessionMaxAge               time.Duration `env:"SESSION_MAX_AGE,                default=720h"`
	InvitationDefaultExpiryDays int           `env:"INVITATION_DEFAULT_EXPIRY_DAYS, default=7"`
	ResetTokenTTL               time.Duration `env:"RESET_TOKEN_TTL,                default=1h"`
	LoginMaxFailures            int64         `env:"LOGIN_MAX_FAILURES,             default=5"`
	LoginLockout                time.Duration `env:"LOGIN_LOCKOUT,                  default=15m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=console_identity"`
}

type PostgresConfig struct {
	URL string `env:"DATABASE_URL"`
}

// RedisConfig enables login throttling when Addr is set.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// MailConfig enables email delivery when From is set.
type MailConfig struct {
	From   string `env:"SES_FROM_EMAIL"`
	Region string `env:"AWS_REGION, default=ap-northeast-2"`
}

// GoogleConfig enables Google sign-in when both values are set.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

type NotifyConfig struct {
	Workers   int `env:"NOTIFY_WORKERS,    default=2"`
	QueueSize int `env:"NOTIFY_QUEUE_SIZE, default=256"`
}

// Load reads configuration from the process environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom is Load with an explicit source, for tests and tooling.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every configuration fault at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.EmailKey(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Security.SessionSecret) < minSessionSecret {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecret))
	}
	if c.Security.BcryptCost < minBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least %d", minBcryptCost))
	}

	switch c.StoreDriver {
	case StoreMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
	case StorePostgres:
		if strings.TrimSpace(c.Postgres.URL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StorePostgres, c.StoreDriver))
	}

	switch c.Auth.RegistrationMode {
	case RegistrationInviteOnly, RegistrationOpen:
	default:
		errs = append(errs, fmt.Errorf("REGISTRATION_MODE must be %q or %q", RegistrationInviteOnly, RegistrationOpen))
	}

	if c.Auth.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if c.Auth.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_TTL must be positive"))
	}
	if c.Auth.InvitationDefaultExpiryDays <= 0 {
		errs = append(errs, errors.New("INVITATION_DEFAULT_EXPIRY_DAYS must be positive"))
	}
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// EmailKey decodes the email encryption key.
func (c *Config) EmailKey() ([]byte, error) {
	if c.Security.EmailEncryptionKey == "" {
		return nil, errors.New("EMAIL_ENCRYPTION_KEY is not set")
	}
	key, err := base64.StdEncoding.DecodeString(c.Security.EmailEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("EMAIL_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != emailKeySize {
		return nil, fmt.Errorf("EMAIL_ENCRYPTION_KEY must decode to %d bytes, got %d", emailKeySize, len(key))
	}
	return key, nil
}

func (c *Config) MailEnabled() bool     { return c.Mail.From != "" }
func (c *Config) GoogleEnabled() bool   { return c.Google.ClientID != "" && c.Google.ClientSecret != "" }
func (c *Config) ThrottleEnabled() bool { return c.Redis.Addr != "" }
func (c *Config) InviteOnly() bool      { return c.Auth.RegistrationMode == RegistrationInviteOnly }
