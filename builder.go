package goSession

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	digestKeyInfo = "goSession/refresh-digest/v1"
	tracerName    = "github.com/MrEthical07/goSession"
)

// Builder assembles an [Engine]. A Builder can be used for one Build only.
type Builder struct {
	config Config
	repo   session.Repository
	redis  redis.UniversalClient

	auditSink      AuditSink
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	claimsResolver ClaimsResolver
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRepository sets the credential record store. It takes precedence over
// the store WithRedis would build.
func (b *Builder) WithRepository(repo session.Repository) *Builder {
	b.repo = repo
	return b
}

// WithRedis provides the Redis client used for the refresh throttle and,
// when no repository is set, for a [session.RedisStore].
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

func (b *Builder) WithClaimsResolver(resolver ClaimsResolver) *Builder {
	b.claimsResolver = resolver
	return b
}

// WithClock overrides the time source for token timestamps and record
// expiry. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, parses key material and wires the
// engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- REPOSITORY --------
	repo := b.repo
	if repo == nil {
		if b.redis == nil {
			return nil, errors.New("session repository or redis client required")
		}
		repo = session.NewRedisStore(
			b.redis,
			session.WithPrefix(cfg.Session.RedisPrefix),
			session.WithRetention(cfg.Session.RetainRevoked),
			session.WithClock(now),
		)
	}

	var tracker session.ReplayTracker
	if cfg.Security.EnableReplayTracking {
		t, ok := repo.(session.ReplayTracker)
		if !ok {
			return nil, errors.New("EnableReplayTracking requires a repository that tracks replays")
		}
		tracker = t
	}

	var limiter *rate.Limiter
	if cfg.Security.EnableRefreshThrottle {
		if b.redis == nil {
			return nil, errors.New("EnableRefreshThrottle requires redis client")
		}
		limiter = rate.New(b.redis, rate.Config{
			Prefix:                  cfg.Session.RedisPrefix,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
	}

	// -------- TOKEN CODEC --------
	method := jwt.MethodEd25519
	if cfg.JWT.SigningMethod == "hs256" {
		method = jwt.MethodHS256
	}
	jm, err := jwt.NewManager(jwt.Config{
		Access: jwt.KeyConfig{
			SigningMethod: method,
			PrivateKey:    cloneBytes(cfg.JWT.AccessPrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.AccessPublicKey),
			KeyID:         cfg.JWT.AccessKeyID,
			VerifyKeys:    cloneKeyMap(cfg.JWT.AccessVerifyKeys),
		},
		Refresh: jwt.KeyConfig{
			SigningMethod: method,
			PrivateKey:    cloneBytes(cfg.JWT.RefreshPrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.RefreshPublicKey),
			KeyID:         cfg.JWT.RefreshKeyID,
			VerifyKeys:    cloneKeyMap(cfg.JWT.RefreshVerifyKeys),
		},
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	// -------- DIGEST --------
	digestKey := cfg.Session.DigestKey
	if len(digestKey) == 0 {
		digestKey, err = internal.DeriveDigestKey(cfg.JWT.RefreshPrivateKey, digestKeyInfo)
		if err != nil {
			return nil, err
		}
	}
	digester, err := internal.NewDigester(digestKey)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:         cloneConfig(cfg),
		repo:           repo,
		jwtManager:     jm,
		digester:       digester,
		rateLimiter:    limiter,
		replayTracker:  tracker,
		audit:          internalaudit.NewDispatcher(internalaudit.Config(cfg.Audit), b.auditSink, auditEventRefreshReuseDetected),
		metrics:        NewMetrics(cfg.Metrics),
		logger:         logger,
		tracer:         tp.Tracer(tracerName),
		claimsResolver: b.claimsResolver,
		now:            now,
	}
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
