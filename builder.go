package authcore

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/cache"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

// Builder assembles an [Engine]. Every collaborator is injected here; the
// engine reaches nothing through package state.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	cache  cache.Cache
	logger *slog.Logger
	now    func() time.Time

	credentials  CredentialStore
	applications ApplicationStore
	auditStore   audit.Store

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects a Redis-backed session cache. It is ignored when
// WithCache is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache injects a session cache implementation directly.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token stamps, rate windows and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

func (b *Builder) WithApplicationStore(store ApplicationStore) *Builder {
	b.applications = store
	return b
}

// WithAuditStore enables audit reads and sets the store the dispatcher writes to.
func (b *Builder) WithAuditStore(store audit.Store) *Builder {
	b.auditStore = store
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

// Build validates the configuration and wires the engine. A Builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := b.cache
	if c == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or cache required")
		}
		c = cache.NewRedis(b.redis, cfg.Cache.OperationTimeout)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		now:          now,
		metrics:      NewMetrics(cfg.Metrics),
		credentials:  b.credentials,
		applications: b.applications,
		failOpenWarn: xrate.Sometimes{First: 1, Interval: 30 * time.Second},
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    true,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// -------- SESSION STORE --------
	// Revocation markers outlive every access token of the revoked session.
	store, err := session.NewStore(c, session.Options{
		Prefix:        cfg.Cache.Prefix,
		RevocationTTL: cfg.JWT.AccessTTL + cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.sessionStore = store

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		limiter, err := rate.New(c, rate.Config{
			Limit:      cfg.RateLimit.Limit,
			Window:     cfg.RateLimit.Window,
			Now:        now,
			Logger:     logger,
			OnFailOpen: func() { engine.metricInc(MetricRateLimiterFailOpen) },
		})
		if err != nil {
			return nil, err
		}
		engine.rateLimiter = limiter
	}

	// -------- AUDIT --------
	if b.auditStore != nil {
		pipeline, err := audit.NewPipeline(b.auditStore, audit.Options{
			Dispatcher: audit.DispatcherConfig{
				Enabled:      cfg.Audit.Enabled,
				BufferSize:   cfg.Audit.BufferSize,
				DropIfFull:   cfg.Audit.DropIfFull,
				WriteTimeout: cfg.Audit.WriteTimeout,
				OnWritten:    func() { engine.metricInc(MetricAuditRecorded) },
				OnDropped:    func() { engine.metricInc(MetricAuditDropped) },
				OnFailed:     func(error) { engine.metricInc(MetricAuditWriteFailed) },
			},
			Limits: cfg.Audit.limits(),
			Logger: logger,
			Now:    now,
		})
		if err != nil {
			return nil, err
		}
		engine.audit = pipeline
	} else if cfg.Audit.Enabled {
		logger.Warn("audit enabled without a store; events will be discarded")
	}

	engine.flows = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}
