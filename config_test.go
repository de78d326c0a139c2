package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without signing keys must not validate")
	}

	cfg = testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "jwt leeway valid",
			mutate:    func(c *Config) { c.JWT.Leeway = 45 * time.Second },
			wantValid: true,
		},
		{
			name:      "jwt leeway invalid",
			mutate:    func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
			wantValid: false,
		},
		{
			name:      "jwt signing invalid",
			mutate:    func(c *Config) { c.JWT.SigningMethod = "rs256" },
			wantValid: false,
		},
		{
			name:      "hs256 short key",
			mutate:    func(c *Config) { c.JWT.PrivateKey = []byte("short") },
			wantValid: false,
		},
		{
			name:      "refresh shorter than access",
			mutate:    func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL },
			wantValid: false,
		},
		{
			name:      "empty cache prefix",
			mutate:    func(c *Config) { c.Cache.Prefix = "" },
			wantValid: false,
		},
		{
			name:      "zero cache timeout",
			mutate:    func(c *Config) { c.Cache.OperationTimeout = 0 },
			wantValid: false,
		},
		{
			name:      "rate window below one second",
			mutate:    func(c *Config) { c.RateLimit.Window = 500 * time.Millisecond },
			wantValid: false,
		},
		{
			name: "rate limiter disabled ignores limits",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Limit = 0
			},
			wantValid: true,
		},
		{
			name:      "audit page sizes inverted",
			mutate:    func(c *Config) { c.Audit.DefaultPageSize = c.Audit.MaxPageSize + 1 },
			wantValid: false,
		},
		{
			name:      "audit zero buffer",
			mutate:    func(c *Config) { c.Audit.BufferSize = 0 },
			wantValid: false,
		},
		{
			name:      "audit export rows",
			mutate:    func(c *Config) { c.Audit.MaxExportRows = 0 },
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.VerifyKeys = map[string][]byte{"k1": []byte("abc")}

	out := cloneConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	cfg.JWT.VerifyKeys["k1"][0] = 'X'

	if out.JWT.PrivateKey[0] == 'X' || out.JWT.VerifyKeys["k1"][0] == 'X' {
		t.Fatal("cloneConfig must not share key material")
	}
}
