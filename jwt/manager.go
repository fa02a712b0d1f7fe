package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm for one token class.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// TokenClass discriminates access tokens from refresh tokens. It is carried
// in the signed "cls" claim.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

// Valid reports whether c is a known class.
func (c TokenClass) Valid() bool {
	return c == ClassAccess || c == ClassRefresh
}

// KeyConfig holds key material for a single token class.
//
// For Ed25519 a PublicKey (or VerifyKeys) is required to verify and a
// PrivateKey is required to issue; keys may be raw bytes or PEM. For HS256
// PrivateKey is the shared secret. VerifyKeys, when set, is indexed by the
// "kid" header and lets previously issued tokens verify after an
// out-of-band key rotation.
type KeyConfig struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Config configures a [Manager].
type Config struct {
	Access   KeyConfig
	Refresh  KeyConfig
	Issuer   string
	Audience string
	Leeway   time.Duration
	// Now overrides the time source. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the signed payload for both token classes.
//
// Access tokens may carry Role and App and never carry Secret. Refresh tokens
// always carry Secret (base64url secret material) and never carry App.
type Claims struct {
	Class  TokenClass        `json:"cls"`
	Role   string            `json:"role,omitempty"`
	App    map[string]string `json:"app,omitempty"`
	Secret string            `json:"sec,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) checkShape() error {
	switch c.Class {
	case ClassAccess:
		if c.Secret != "" {
			return fmt.Errorf("%w: access token carries refresh secret", ErrMalformed)
		}
	case ClassRefresh:
		if c.Secret == "" {
			return fmt.Errorf("%w: refresh token missing secret", ErrMalformed)
		}
		if len(c.App) > 0 {
			return fmt.Errorf("%w: refresh token carries application claims", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownClass, c.Class)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return nil
}

type keySet struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	keyID      string
	verifyKeys map[string]any
}

// Manager signs and verifies tokens. It is immutable after construction and
// safe for concurrent use.
type Manager struct {
	config  Config
	access  *keySet
	refresh *keySet
	parser  *jwt.Parser
}

// NewManager validates key material for both classes and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	access, err := newKeySet(cfg.Access)
	if err != nil {
		return nil, fmt.Errorf("access keys: %w", err)
	}
	refresh, err := newKeySet(cfg.Refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh keys: %w", err)
	}
	if len(cfg.Access.PrivateKey) > 0 && bytes.Equal(cfg.Access.PrivateKey, cfg.Refresh.PrivateKey) {
		return nil, errors.New("access and refresh classes must use distinct keys")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{access.method.Alg(), refresh.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{
		config:  cfg,
		access:  access,
		refresh: refresh,
		parser:  jwt.NewParser(options...),
	}, nil
}

func newKeySet(cfg KeyConfig) (*keySet, error) {
	ks := &keySet{keyID: strings.TrimSpace(cfg.KeyID)}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		ks.method = jwt.SigningMethodHS256
		ks.signKey = cfg.PrivateKey
		ks.verifyKey = cfg.PrivateKey
	case MethodEd25519, "":
		ks.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			ks.signKey = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			ks.verifyKey = pub
		}
		if ks.verifyKey == nil && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	if len(cfg.VerifyKeys) > 0 {
		ks.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			key, err := verifyKeyFromBytes(cfg.SigningMethod, raw)
			if err != nil {
				return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			ks.verifyKeys[kid] = key
		}
		if ks.keyID != "" {
			if _, ok := ks.verifyKeys[ks.keyID]; !ok {
				return nil, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}

	return ks, nil
}

func (m *Manager) keys(class TokenClass) *keySet {
	switch class {
	case ClassAccess:
		return m.access
	case ClassRefresh:
		return m.refresh
	default:
		return nil
	}
}

// Issue signs claims with the key set of claims.Class. IssuedAt and ExpiresAt
// are set from the manager clock; Issuer and Audience from config.
func (m *Manager) Issue(claims Claims, ttl time.Duration) (string, error) {
	ks := m.keys(claims.Class)
	if ks == nil {
		return "", ErrUnknownClass
	}
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	if ks.signKey == nil {
		return "", ErrNoSigningKey
	}
	if err := claims.checkShape(); err != nil {
		return "", err
	}

	now := m.config.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.Issuer = m.config.Issuer
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(ks.method, claims)
	if ks.keyID != "" {
		token.Header["kid"] = ks.keyID
	}
	return token.SignedString(ks.signKey)
}

// Verify parses tokenStr, checks signature, validity window and class shape,
// and asserts the token belongs to the expected class.
//
// Errors wrap exactly one of [ErrMalformed], [ErrSignatureInvalid],
// [ErrExpired] or [ErrTokenTypeMismatch].
func (m *Manager) Verify(tokenStr string, expected TokenClass) (*Claims, error) {
	if m.keys(expected) == nil {
		return nil, ErrUnknownClass
	}

	var peek Claims
	if _, _, err := m.parser.ParseUnverified(tokenStr, &peek); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ks := m.keys(peek.Class)
	if ks == nil {
		return nil, fmt.Errorf("%w: unknown class %q", ErrMalformed, peek.Class)
	}

	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return ks.resolveVerifyKey(t)
	})

	// Signature is checked before claims, so a claims-validation failure
	// still proves the class claim is authentic. Expiry wins over class.
	signed := err == nil || errors.Is(err, jwt.ErrTokenInvalidClaims)
	if signed && claims.Class != expected && !errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenTypeMismatch
	}
	if err != nil {
		return nil, classify(err)
	}
	if err := claims.checkShape(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (ks *keySet) resolveVerifyKey(t *jwt.Token) (any, error) {
	if t.Method.Alg() != ks.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(ks.verifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := ks.verifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}
	if ks.keyID != "" && kid != ks.keyID {
		return nil, errors.New("unknown kid")
	}
	if ks.verifyKey == nil {
		return nil, errors.New("no verify key")
	}
	return ks.verifyKey, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
