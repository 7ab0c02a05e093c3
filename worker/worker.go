package worker

import (
	"context"

	"campaignbot/types"
)

// Worker is the opaque boundary into the generation pipeline for one
// unit of work. It is always invoked through the retry policy, never
// directly, and is treated as at-least-once: a retried call may have
// partially succeeded upstream before the error was observed, which
// is why verification exists downstream rather than trusting the
// return value alone.
type Worker interface {
	Generate(ctx context.Context, campaign types.Campaign, contentType, identity string) (*types.GenerationResult, error)
}
