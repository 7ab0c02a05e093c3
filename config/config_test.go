package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.BatchSize != DefaultBatchSize {
		t.Fatalf("expected default batch size %d, got %d", DefaultBatchSize, cfg.BatchSize)
	}
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("expected default max attempts %d, got %d", DefaultMaxAttempts, cfg.MaxAttempts)
	}
	if len(cfg.IdentityPool) == 0 {
		t.Fatal("expected a non-empty default identity pool")
	}
	if len(cfg.TransientIndicators) == 0 {
		t.Fatal("expected default transient indicators")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("IDENTITY_POOL", "a, b ,c")
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("RETRY_BASE_DELAY", "2s")
	t.Setenv("TRANSIENT_INDICATORS", "429,slow down")

	cfg := FromEnv()
	if len(cfg.IdentityPool) != 3 || cfg.IdentityPool[1] != "b" {
		t.Fatalf("identity pool not parsed: %v", cfg.IdentityPool)
	}
	if cfg.BatchSize != 5 {
		t.Fatalf("expected batch size 5, got %d", cfg.BatchSize)
	}
	if cfg.BaseDelay != 2*time.Second {
		t.Fatalf("expected base delay 2s, got %s", cfg.BaseDelay)
	}
	if len(cfg.TransientIndicators) != 2 || cfg.TransientIndicators[1] != "slow down" {
		t.Fatalf("transient indicators not parsed: %v", cfg.TransientIndicators)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*OrchestratorConfig)
	}{
		{"empty identity pool", func(c *OrchestratorConfig) { c.IdentityPool = nil }},
		{"zero batch size", func(c *OrchestratorConfig) { c.BatchSize = 0 }},
		{"excessive retries", func(c *OrchestratorConfig) { c.MaxAttempts = 100 }},
		{"bad tone", func(c *OrchestratorConfig) { c.Options.Tone = "sarcastic" }},
		{"bad language", func(c *OrchestratorConfig) { c.Options.Language = "not a tag" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := FromEnv()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
