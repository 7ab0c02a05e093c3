package config

import "time"

// Batch Processing Constants
const (
	// DefaultBatchSize limits the number of generation units running simultaneously
	DefaultBatchSize = 3

	// DefaultSettleDelay is the wait time between content types and between campaigns
	DefaultSettleDelay = 30 * time.Second

	// DefaultIdleInterval is the sleep before re-fetching a drained campaign backlog
	DefaultIdleInterval = 15 * time.Minute
)

// Retry Constants
const (
	// DefaultMaxAttempts is the retry ceiling for transient provider failures
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff delay; subsequent delays double
	DefaultBaseDelay = 20 * time.Second
)

// State Constants
const (
	// DefaultStatePath is where the checkpoint file lives
	DefaultStatePath = "state/checkpoint.json"

	// PersistedWindow is how recent a content record must be for the
	// persisted verification check to accept it
	PersistedWindow = 10 * time.Minute
)

// DefaultTransientIndicators are the error-text fragments that mark a
// provider failure as transient (rate-limit shaped). Matching is
// case-insensitive substring.
var DefaultTransientIndicators = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"429",
	"quota",
	"capacity",
	"overloaded",
	"try again later",
}

// DefaultIdentityPool is the fallback rotating identity pool when none
// is configured via IDENTITY_POOL.
var DefaultIdentityPool = []string{
	"poster-alpha",
	"poster-bravo",
	"poster-charlie",
	"poster-delta",
}
