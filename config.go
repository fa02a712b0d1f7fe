package goSession

import (
	"errors"
	"strings"
	"time"
)

// Config holds every engine setting. Build takes a copy; later mutation of
// the caller's value has no effect.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures both token classes. Access and refresh tokens are
// always signed with distinct keys.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional

	AccessPrivateKey  []byte
	AccessPublicKey   []byte
	RefreshPrivateKey []byte
	RefreshPublicKey  []byte

	// Optional kid headers and verify-only key sets for out-of-band rotation.
	AccessKeyID       string
	RefreshKeyID      string
	AccessVerifyKeys  map[string][]byte
	RefreshVerifyKeys map[string][]byte

	Issuer   string
	Audience string
	Leeway   time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures credential record storage.
type SessionConfig struct {
	// RedisPrefix namespaces keys when the engine builds its own Redis store
	// and refresh throttle.
	RedisPrefix string
	// DigestKey keys the HMAC over refresh secrets. When empty a key is
	// derived from RefreshPrivateKey with HKDF.
	DigestKey []byte
	// RetainRevoked keeps revoked and expired Redis records around for audit
	// before the key TTL removes them.
	RetainRevoked time.Duration
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds policy switches.
type SecurityConfig struct {
	ProductionMode bool
	// LogoutMismatchIsError makes Logout and RevokeSession return
	// ErrSessionNotFound when nothing matched. Off by default, which makes
	// a non-matching logout a silent no-op.
	LogoutMismatchIsError   bool
	EnableRefreshThrottle   bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
	EnableReplayTracking    bool
	ReplayWindow            time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Key material must still
// be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			RedisPrefix:   "gs",
			RetainRevoked: 7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode:          false,
			LogoutMismatchIsError:   false,
			EnableRefreshThrottle:   false,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
			EnableReplayTracking:    false,
			ReplayWindow:            24 * time.Hour,
		},
	}
}

// HighSecurityConfig tightens TTLs and turns on every detection feature.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.Security.ProductionMode = true
	cfg.Security.EnableRefreshThrottle = true
	cfg.Security.MaxRefreshAttempts = 10
	cfg.Security.EnableReplayTracking = true
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessPrivateKey = cloneBytes(cfg.JWT.AccessPrivateKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshPrivateKey = cloneBytes(cfg.JWT.RefreshPrivateKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	out.JWT.AccessVerifyKeys = cloneKeyMap(cfg.JWT.AccessVerifyKeys)
	out.JWT.RefreshVerifyKeys = cloneKeyMap(cfg.JWT.RefreshVerifyKeys)
	out.Session.DigestKey = cloneBytes(cfg.Session.DigestKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneKeyMap(m map[string][]byte) map[string][]byte {
	if m == nil {
		return nil
	}
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = cloneBytes(v)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. Key parsing
// happens in Build.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.AccessPrivateKey) == 0 || len(c.JWT.RefreshPrivateKey) == 0 {
			return errors.New("ed25519 requires access and refresh PrivateKey")
		}
		if len(c.JWT.AccessPublicKey) == 0 || len(c.JWT.RefreshPublicKey) == 0 {
			return errors.New("ed25519 requires access and refresh PublicKey")
		}
	case "hs256":
		if len(c.JWT.AccessPrivateKey) == 0 || len(c.JWT.RefreshPrivateKey) == 0 {
			return errors.New("hs256 requires access and refresh PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Session
	if len(c.Session.DigestKey) > 0 && len(c.Session.DigestKey) < 32 {
		return errors.New("Session DigestKey must be >= 32 bytes")
	}
	if c.Session.RetainRevoked < 0 {
		return errors.New("Session RetainRevoked must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Security
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("MaxRefreshAttempts must be > 0 when refresh throttle is enabled")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("RefreshCooldownDuration must be > 0 when refresh throttle is enabled")
		}
	}
	if c.Security.EnableReplayTracking && c.Security.ReplayWindow <= 0 {
		return errors.New("ReplayWindow must be > 0 when replay tracking is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.SigningMethod == "hs256" &&
			(len(c.JWT.AccessPrivateKey) < 32 || len(c.JWT.RefreshPrivateKey) < 32) {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if len(c.Session.DigestKey) == 0 {
			return errors.New("ProductionMode requires an explicit Session DigestKey")
		}
	}

	return nil
}
