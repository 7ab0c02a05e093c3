package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"campaignbot/types"

	"github.com/go-playground/validator/v10"
)

// OrchestratorConfig carries every knob the orchestrator needs. It is
// built once in main and passed into constructors explicitly; nothing
// reads the environment after startup.
type OrchestratorConfig struct {
	// IdentityPool is the set of rotating identities load is spread over.
	IdentityPool []string `validate:"required,min=1,dive,required"`

	// BatchSize is the concurrency bound K within a batch.
	BatchSize int `validate:"required,min=1,max=64"`

	// MaxAttempts is the retry ceiling for transient failures.
	MaxAttempts int `validate:"required,min=1,max=10"`

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration `validate:"required,min=1ms"`

	// SettleDelay debounces provider-side bursts between content types
	// and between campaigns.
	SettleDelay time.Duration `validate:"min=0"`

	// IdleInterval is the sleep before re-fetching a drained backlog.
	IdleInterval time.Duration `validate:"required,min=1s"`

	// UnitTimeout bounds a single generation call. Zero means no
	// per-unit timeout beyond the retry ceiling.
	UnitTimeout time.Duration `validate:"min=0"`

	// TransientIndicators classify provider errors as retryable.
	TransientIndicators []string `validate:"required,min=1"`

	// SingleCampaignID restricts the run to one campaign and disables
	// the auto-restart loop. Empty means process the full backlog.
	SingleCampaignID string

	// Options is the typed generation preference block sent with every
	// unit.
	Options types.ContentOptions

	// StatePath is the checkpoint file location.
	StatePath string `validate:"required"`
}

var validate = validator.New()

// Validate checks the config and the embedded content options against
// their declared constraints.
func (c OrchestratorConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if err := validate.Struct(c.Options); err != nil {
		return fmt.Errorf("invalid content options: %w", err)
	}
	return nil
}

// FromEnv builds an OrchestratorConfig from environment variables,
// falling back to the package defaults. Flags in main may override
// individual fields afterwards; Validate must be called on the final
// value.
func FromEnv() OrchestratorConfig {
	cfg := OrchestratorConfig{
		IdentityPool:        splitList(os.Getenv("IDENTITY_POOL"), DefaultIdentityPool),
		BatchSize:           envInt("BATCH_SIZE", DefaultBatchSize),
		MaxAttempts:         envInt("MAX_RETRY_ATTEMPTS", DefaultMaxAttempts),
		BaseDelay:           envDuration("RETRY_BASE_DELAY", DefaultBaseDelay),
		SettleDelay:         envDuration("SETTLE_DELAY", DefaultSettleDelay),
		IdleInterval:        envDuration("IDLE_INTERVAL", DefaultIdleInterval),
		UnitTimeout:         envDuration("UNIT_TIMEOUT", 0),
		TransientIndicators: splitList(os.Getenv("TRANSIENT_INDICATORS"), DefaultTransientIndicators),
		StatePath:           GetEnvOrDefault("STATE_PATH", DefaultStatePath),
		Options: types.ContentOptions{
			Tone:      GetEnvOrDefault("CONTENT_TONE", "playful"),
			Language:  GetEnvOrDefault("CONTENT_LANGUAGE", "en"),
			MaxLength: envInt("CONTENT_MAX_LENGTH", 2000),
			Hashtags:  strings.EqualFold(os.Getenv("CONTENT_HASHTAGS"), "true"),
		},
	}
	return cfg
}

// GetEnvOrDefault returns the env value for key, or def when unset.
func GetEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(raw string, def []string) []string {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
