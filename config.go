package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/cache"
	"github.com/MrEthical07/authcore/jwt"
)

// Config is the complete engine configuration. Build one with
// [DefaultConfig] and override fields; it is copied by the Builder and never
// mutated afterwards.
type Config struct {
	JWT       JWTConfig
	Cache     CacheConfig
	Policy    PolicyConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing and lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// KeyID is stamped into the kid header. VerifyKeys lets tokens signed by
	// retired keys keep verifying until they expire.
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig configures the shared session cache.
type CacheConfig struct {
	// Prefix namespaces session, blacklist and revocation keys.
	Prefix string
	// OperationTimeout bounds every cache call made on the request path.
	OperationTimeout time.Duration
}

/*
====================================
POLICY CONFIG
====================================
*/

// PolicyConfig selects behavior when a dependency is unavailable.
type PolicyConfig struct {
	// RevocationCheckFailOpen admits a token whose signature and expiry verify
	// when the revocation lookup cannot reach the cache. When false such
	// tokens are rejected with ErrRevocationUnavailable.
	RevocationCheckFailOpen bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the fixed-window limiter used by Allow and Login.
type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// WriteTimeout bounds each asynchronous store write.
	WriteTimeout time.Duration

	DefaultPageSize int
	MaxPageSize     int
	MaxExportRows   int
	TopK            int
	MaxWindowDays   int
}

func (c AuditConfig) limits() audit.Limits {
	return audit.Limits{
		DefaultPageSize: c.DefaultPageSize,
		MaxPageSize:     c.MaxPageSize,
		MaxExportRows:   c.MaxExportRows,
		TopK:            c.TopK,
		MaxWindowDays:   c.MaxWindowDays,
	}
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a production-ready baseline. Signing keys must still
// be supplied.
func DefaultConfig() Config {
	limits := audit.DefaultLimits()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodEd25519),
		},
		Cache: CacheConfig{
			Prefix:           "ac",
			OperationTimeout: cache.DefaultOperationTimeout,
		},
		Policy: PolicyConfig{
			RevocationCheckFailOpen: true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   100,
			Window:  time.Minute,
		},
		Audit: AuditConfig{
			Enabled:         true,
			BufferSize:      1024,
			DropIfFull:      true,
			WriteTimeout:    2 * time.Second,
			DefaultPageSize: limits.DefaultPageSize,
			MaxPageSize:     limits.MaxPageSize,
			MaxExportRows:   limits.MaxExportRows,
			TopK:            limits.TopK,
			MaxWindowDays:   limits.MaxWindowDays,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}

	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodEd25519:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Cache
	if c.Cache.Prefix == "" {
		return errors.New("Cache Prefix must not be empty")
	}
	if c.Cache.OperationTimeout <= 0 {
		return errors.New("Cache OperationTimeout must be > 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return errors.New("RateLimit Limit must be > 0")
		}
		if c.RateLimit.Window < time.Second {
			return errors.New("RateLimit Window must be >= 1s")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0")
		}
		if c.Audit.WriteTimeout <= 0 {
			return errors.New("Audit WriteTimeout must be > 0")
		}
	}
	if c.Audit.DefaultPageSize <= 0 || c.Audit.MaxPageSize <= 0 || c.Audit.DefaultPageSize > c.Audit.MaxPageSize {
		return errors.New("Audit page sizes must satisfy 0 < DefaultPageSize <= MaxPageSize")
	}
	if c.Audit.MaxExportRows <= 0 {
		return errors.New("Audit MaxExportRows must be > 0")
	}
	if c.Audit.TopK <= 0 {
		return errors.New("Audit TopK must be > 0")
	}
	if c.Audit.MaxWindowDays <= 0 {
		return errors.New("Audit MaxWindowDays must be > 0")
	}

	return nil
}
