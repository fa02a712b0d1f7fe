package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	goSession "github.com/MrEthical07/goSession"
)

// Config is the daemon configuration, loaded from the environment and an
// optional .env file.
type Config struct {
	HTTPAddr string `mapstructure:"SESSIOND_HTTP_ADDR"`
	// Env is "development" or "production". Production refuses ephemeral
	// keys and the dev issue endpoint.
	Env      string `mapstructure:"SESSIOND_ENV"`
	LogLevel string `mapstructure:"SESSIOND_LOG_LEVEL"`

	// Store selects the session repository: memory, miniredis, redis or
	// postgres.
	Store       string `mapstructure:"SESSIOND_STORE"`
	RedisAddr   string `mapstructure:"SESSIOND_REDIS_ADDR"`
	RedisPrefix string `mapstructure:"SESSIOND_REDIS_PREFIX"`
	DatabaseURL string `mapstructure:"SESSIOND_DATABASE_URL"`

	// SigningMethod is ed25519 or hs256. Keys are base64: a 32-byte seed for
	// ed25519, the raw secret for hs256.
	SigningMethod string        `mapstructure:"SESSIOND_SIGNING_METHOD"`
	AccessKey     string        `mapstructure:"SESSIOND_ACCESS_KEY"`
	RefreshKey    string        `mapstructure:"SESSIOND_REFRESH_KEY"`
	DigestKey     string        `mapstructure:"SESSIOND_DIGEST_KEY"`
	Issuer        string        `mapstructure:"SESSIOND_ISSUER"`
	Audience      string        `mapstructure:"SESSIOND_AUDIENCE"`
	AccessTTL     time.Duration `mapstructure:"SESSIOND_ACCESS_TTL"`
	RefreshTTL    time.Duration `mapstructure:"SESSIOND_REFRESH_TTL"`
	Leeway        time.Duration `mapstructure:"SESSIOND_LEEWAY"`

	LogoutMismatchIsError bool `mapstructure:"SESSIOND_LOGOUT_MISMATCH_IS_ERROR"`
	RefreshThrottle       bool `mapstructure:"SESSIOND_REFRESH_THROTTLE"`
	ReplayTracking        bool `mapstructure:"SESSIOND_REPLAY_TRACKING"`

	// Audit is none, log or nats.
	Audit       string `mapstructure:"SESSIOND_AUDIT"`
	NATSURL     string `mapstructure:"SESSIOND_NATS_URL"`
	NATSSubject string `mapstructure:"SESSIOND_NATS_SUBJECT"`

	// DevIssue mounts POST /v1/sessions, which mints sessions for any user
	// ID without a login step.
	DevIssue bool `mapstructure:"SESSIOND_DEV_ISSUE"`
}

var configDefaults = map[string]any{
	"SESSIOND_HTTP_ADDR":                ":8080",
	"SESSIOND_ENV":                      "development",
	"SESSIOND_LOG_LEVEL":                "info",
	"SESSIOND_STORE":                    "memory",
	"SESSIOND_REDIS_ADDR":               "localhost:6379",
	"SESSIOND_REDIS_PREFIX":             "gs",
	"SESSIOND_DATABASE_URL":             "",
	"SESSIOND_SIGNING_METHOD":           "ed25519",
	"SESSIOND_ACCESS_KEY":               "",
	"SESSIOND_REFRESH_KEY":              "",
	"SESSIOND_DIGEST_KEY":               "",
	"SESSIOND_ISSUER":                   "sessiond",
	"SESSIOND_AUDIENCE":                 "",
	"SESSIOND_ACCESS_TTL":               "5m",
	"SESSIOND_REFRESH_TTL":              "168h",
	"SESSIOND_LEEWAY":                   "0s",
	"SESSIOND_LOGOUT_MISMATCH_IS_ERROR": false,
	"SESSIOND_REFRESH_THROTTLE":         false,
	"SESSIOND_REPLAY_TRACKING":          false,
	"SESSIOND_AUDIT":                    "log",
	"SESSIOND_NATS_URL":                 "",
	"SESSIOND_NATS_SUBJECT":             "gosession.audit",
	"SESSIOND_DEV_ISSUE":                false,
}

// Load reads .env (if present) and the environment. Env vars override .env.
func Load() (*Config, error) {
	return loadFile(".env")
}

func loadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) production() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: SESSIOND_HTTP_ADDR must be set")
	}

	switch c.Store {
	case "memory", "miniredis", "redis":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: SESSIOND_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown SESSIOND_STORE %q", c.Store)
	}

	switch c.Audit {
	case "none", "log":
	case "nats":
		if c.NATSURL == "" {
			return errors.New("config: SESSIOND_NATS_URL is required for nats audit")
		}
	default:
		return fmt.Errorf("config: unknown SESSIOND_AUDIT %q", c.Audit)
	}

	if c.production() {
		if c.DevIssue {
			return errors.New("config: SESSIOND_DEV_ISSUE must not be true when SESSIOND_ENV=production")
		}
		if c.AccessKey == "" || c.RefreshKey == "" || c.DigestKey == "" {
			return errors.New("config: production requires SESSIOND_ACCESS_KEY, SESSIOND_REFRESH_KEY and SESSIOND_DIGEST_KEY")
		}
		if c.Store == "memory" || c.Store == "miniredis" {
			return errors.New("config: production requires a redis or postgres store")
		}
	}
	return nil
}

// engineConfig converts the daemon settings into an engine Config. Missing
// keys are generated when ephemeral is allowed; the second return reports
// whether that happened.
func (c *Config) engineConfig() (goSession.Config, bool, error) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.SigningMethod = c.SigningMethod
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.JWT.Leeway = c.Leeway
	cfg.JWT.Issuer = c.Issuer
	cfg.JWT.Audience = c.Audience
	cfg.Session.RedisPrefix = c.RedisPrefix
	cfg.Security.ProductionMode = c.production()
	cfg.Security.LogoutMismatchIsError = c.LogoutMismatchIsError
	cfg.Security.EnableRefreshThrottle = c.RefreshThrottle
	cfg.Security.EnableReplayTracking = c.ReplayTracking
	cfg.Audit.Enabled = c.Audit != "none"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	ephemeral := false
	var err error
	cfg.JWT.AccessPrivateKey, cfg.JWT.AccessPublicKey, err = c.signingKey(c.AccessKey, &ephemeral)
	if err != nil {
		return goSession.Config{}, false, fmt.Errorf("config: SESSIOND_ACCESS_KEY: %w", err)
	}
	cfg.JWT.RefreshPrivateKey, cfg.JWT.RefreshPublicKey, err = c.signingKey(c.RefreshKey, &ephemeral)
	if err != nil {
		return goSession.Config{}, false, fmt.Errorf("config: SESSIOND_REFRESH_KEY: %w", err)
	}
	if c.DigestKey != "" {
		cfg.Session.DigestKey, err = base64.StdEncoding.DecodeString(c.DigestKey)
		if err != nil {
			return goSession.Config{}, false, fmt.Errorf("config: SESSIOND_DIGEST_KEY: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return goSession.Config{}, false, fmt.Errorf("config: %w", err)
	}
	return cfg, ephemeral, nil
}

func (c *Config) signingKey(encoded string, ephemeral *bool) (priv, pub []byte, err error) {
	if encoded == "" {
		if c.production() {
			return nil, nil, errors.New("required in production")
		}
		*ephemeral = true
		return generateKey(c.SigningMethod)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, err
	}
	switch c.SigningMethod {
	case "hs256":
		return raw, nil, nil
	case "ed25519":
		if len(raw) != ed25519.SeedSize {
			return nil, nil, fmt.Errorf("ed25519 seed must be %d bytes", ed25519.SeedSize)
		}
		key := ed25519.NewKeyFromSeed(raw)
		return key, key.Public().(ed25519.PublicKey), nil
	default:
		return nil, nil, fmt.Errorf("unsupported signing method %q", c.SigningMethod)
	}
}

func generateKey(method string) (priv, pub []byte, err error) {
	switch method {
	case "hs256":
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, nil, err
		}
		return secret, nil, nil
	case "ed25519":
		pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		return privKey, pubKey, nil
	default:
		return nil, nil, fmt.Errorf("unsupported signing method %q", method)
	}
}
