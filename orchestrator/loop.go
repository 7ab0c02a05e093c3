package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"campaignbot/campaign"
	"campaignbot/config"
	"campaignbot/identity"
	"campaignbot/retry"
	"campaignbot/scheduler"
	"campaignbot/state"
	"campaignbot/statestore"
	"campaignbot/types"
	"campaignbot/verify"
	"campaignbot/worker"
)

// EventSink receives one event per completed unit. The Kafka producer
// satisfies it; publishing failures are logged and ignored.
type EventSink interface {
	PublishOutcome(outcome types.UnitOutcome) error
}

// Deps bundles the collaborators the loop composes. Source, Store,
// Rotator, Worker, Verifier and RunState are required; Events is
// optional.
type Deps struct {
	Source   campaign.Source
	Store    *statestore.Store
	Rotator  *identity.Rotator
	Worker   worker.Worker
	Verifier *verify.Pipeline
	RunState *state.Manager
	Events   EventSink
}

// Loop is the top-level driver: it walks the campaign backlog, drives
// generation units through batching, retry and verification, and
// checkpoints after every unit. It has no natural termination: it
// runs until an operator interrupt or the retry-exhaustion halt.
type Loop struct {
	cfg  config.OrchestratorConfig
	deps Deps

	halt    *retry.Halt
	policy  *retry.Policy
	batcher *scheduler.Batcher

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a Loop from its config and collaborators.
func New(cfg config.OrchestratorConfig, deps Deps) *Loop {
	halt := &retry.Halt{}
	return &Loop{
		cfg:     cfg,
		deps:    deps,
		halt:    halt,
		policy:  retry.New(cfg.MaxAttempts, cfg.BaseDelay, cfg.TransientIndicators, halt),
		batcher: &scheduler.Batcher{Size: cfg.BatchSize, Halt: halt},
	}
}

// Halt exposes the halt flag for the control API.
func (l *Loop) Halt() *retry.Halt {
	return l.halt
}

// Run executes the indefinite control loop. It returns when the
// context is canceled (operator interrupt), when the halt flag stops
// scheduling, or, in single-campaign mode, when that campaign is
// done. A final statistics summary is always printed on the way out.
func (l *Loop) Run(ctx context.Context) error {
	log.Println("=== Campaign Content Orchestrator ===")
	l.deps.RunState.SetState(state.StateRunning)
	defer l.finish(ctx)

	for {
		if l.stopped(ctx) {
			return l.exitErr(ctx)
		}

		backlog, err := l.deps.Source.Fetch(ctx)
		if err != nil {
			log.Printf("⚠️  Failed to fetch campaign backlog: %v", err)
			l.deps.RunState.AddLog(fmt.Sprintf("Backlog fetch failed: %v", err))
			if err := l.doSleep(ctx, l.cfg.IdleInterval); err != nil {
				return l.exitErr(ctx)
			}
			continue
		}

		queue := campaign.Pending(backlog, l.deps.Store.Checkpoint(), l.cfg.SingleCampaignID)
		log.Printf("Backlog: %d campaign(s), %d pending", len(backlog), len(queue))

		for _, c := range queue {
			if l.stopped(ctx) {
				return l.exitErr(ctx)
			}
			l.processCampaign(ctx, c)
			if err := l.doSleep(ctx, l.cfg.SettleDelay); err != nil {
				return l.exitErr(ctx)
			}
		}

		if l.cfg.SingleCampaignID != "" {
			// Single-campaign control: no auto-restart.
			log.Printf("Single-campaign run for %s complete", l.cfg.SingleCampaignID)
			return nil
		}

		// Backlog drained. Sleep, re-fetch, start over from the top.
		log.Printf("Backlog drained, sleeping %s before re-fetch", l.cfg.IdleInterval)
		l.deps.RunState.AddLog("Backlog drained, idling")
		if err := l.doSleep(ctx, l.cfg.IdleInterval); err != nil {
			return l.exitErr(ctx)
		}
	}
}

// processCampaign drives every content type of one campaign to
// completion or abandonment, then marks the campaign complete. A halt
// mid-campaign leaves it current so the next run resumes it.
func (l *Loop) processCampaign(ctx context.Context, c types.Campaign) {
	log.Printf("📣 Campaign %s (%s)", c.ID, c.Title)
	l.deps.RunState.AddLog(fmt.Sprintf("Processing campaign %s (%s)", c.ID, c.Title))

	if err := l.deps.Store.StartCampaign(c); err != nil {
		log.Printf("⚠️  Failed to checkpoint campaign start: %v", err)
	}

	contentTypes := make([]string, 0, len(c.Targets))
	for t := range c.Targets {
		contentTypes = append(contentTypes, t)
	}
	sort.Strings(contentTypes)

	for _, contentType := range contentTypes {
		if l.stopped(ctx) {
			return
		}
		l.processContentType(ctx, c, contentType, c.Targets[contentType])
		if err := l.doSleep(ctx, l.cfg.SettleDelay); err != nil {
			return
		}
	}

	if l.stopped(ctx) {
		// Halt or interrupt: do not mark the campaign complete.
		return
	}

	if err := l.deps.Store.MarkCampaignComplete(c.ID); err != nil {
		log.Printf("⚠️  Failed to checkpoint campaign completion: %v", err)
	}
	log.Printf("✅ Campaign %s complete", c.ID)
}

// processContentType schedules the remaining units for one
// (campaign, content type) pair and marks the type done once every
// unit has either succeeded or been abandoned.
func (l *Loop) processContentType(ctx context.Context, c types.Campaign, contentType string, target int) {
	cp := l.deps.Store.Checkpoint()
	if cp.CurrentCampaignID == c.ID && cp.TypeCompleted(contentType) {
		log.Printf("  ⏭️  %s already completed, skipping", contentType)
		return
	}

	done := 0
	if cp.CurrentCampaignID == c.ID {
		done = cp.TypeCount(contentType)
	}
	remaining := target - done
	if remaining <= 0 {
		if err := l.deps.Store.MarkTypeCompleted(contentType); err != nil {
			log.Printf("⚠️  Failed to checkpoint type completion: %v", err)
		}
		return
	}

	log.Printf("  ▶️  %s: %d/%d generated, scheduling %d unit(s)", contentType, done, target, remaining)

	units := make([]types.GenerationUnit, 0, remaining)
	for i := 0; i < remaining; i++ {
		units = append(units, types.GenerationUnit{
			Campaign:    c,
			ContentType: contentType,
			Sequence:    done + i,
			Identity:    l.deps.Rotator.Next(),
		})
	}

	outcomes := l.batcher.Run(ctx, units, l.execUnit)

	if len(outcomes) < len(units) {
		// Halt or interrupt stopped scheduling mid-type; leave the
		// type open so a resume picks up the unscheduled units.
		return
	}

	if err := l.deps.Store.MarkTypeCompleted(contentType); err != nil {
		log.Printf("⚠️  Failed to checkpoint type completion: %v", err)
	}
}

// execUnit runs one generation unit end to end: owner resolution,
// retry-wrapped generation, verification, checkpointing, event
// publish. Every failure mode is converted into the outcome; nothing
// escapes to the batch.
func (l *Loop) execUnit(ctx context.Context, unit types.GenerationUnit) types.UnitOutcome {
	owner := l.deps.Rotator.ResolveOwner(ctx, unit.Identity)
	operation := fmt.Sprintf("%s/%s#%d", unit.Campaign.ID, unit.ContentType, unit.Sequence)

	var result *types.GenerationResult
	res := l.policy.Do(ctx, operation, func(ctx context.Context) error {
		gctx := ctx
		if l.cfg.UnitTimeout > 0 {
			var cancel context.CancelFunc
			gctx, cancel = context.WithTimeout(ctx, l.cfg.UnitTimeout)
			defer cancel()
		}
		r, err := l.deps.Worker.Generate(gctx, unit.Campaign, unit.ContentType, unit.Identity)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	success := res.State == retry.StateSucceeded
	class := types.ClassGenerated
	if success {
		class = l.deps.Verifier.Verify(ctx, unit, result)
	}

	outcome := types.UnitOutcome{
		Unit:        unit,
		OwnerID:     owner.ID,
		Result:      result,
		Class:       class,
		ClassName:   class.String(),
		Success:     success,
		Retries:     res.Retries,
		Recovered:   res.Recovered,
		RateLimited: res.TransientFailures > 0,
	}
	if res.Err != nil {
		outcome.Error = res.Err.Error()
	}

	delta := types.Stats{
		RateLimitsHit:    res.TransientFailures,
		RetriesAttempted: res.Retries,
	}
	if res.Recovered {
		delta.RetriesSuccessful = 1
	}
	if err := l.deps.Store.RecordUnit(unit.Campaign, unit.ContentType, success, delta); err != nil {
		log.Printf("⚠️  Failed to checkpoint unit outcome: %v", err)
	}

	if success {
		log.Printf("  ✅ %s via %s (owner %s): %s", operation, unit.Identity, owner.ID, class)
	} else {
		log.Printf("  ❌ %s via %s: %v", operation, unit.Identity, res.Err)
	}

	if l.deps.Events != nil {
		if err := l.deps.Events.PublishOutcome(outcome); err != nil {
			log.Printf("⚠️  Failed to publish outcome event: %v", err)
		}
	}
	return outcome
}

// stopped reports whether the loop must stop scheduling new work.
func (l *Loop) stopped(ctx context.Context) bool {
	return ctx.Err() != nil || l.halt.Raised()
}

func (l *Loop) exitErr(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// finish flushes the checkpoint and prints the final statistics
// summary on every exit path.
func (l *Loop) finish(ctx context.Context) {
	if l.halt.Raised() {
		log.Printf("🛑 Halted: %s", l.halt.Reason())
		l.deps.RunState.AddLog("Halted: " + l.halt.Reason())
		l.deps.RunState.SetState(state.StateHalted)
	} else {
		l.deps.RunState.SetState(state.StateStopped)
	}

	if err := l.deps.Store.Save(); err != nil {
		log.Printf("⚠️  Final checkpoint flush failed: %v", err)
	}

	cp := l.deps.Store.Checkpoint()
	log.Println("\n=== Run Summary ===")
	log.Printf("Campaigns Processed: %d", cp.Stats.CampaignsProcessed)
	log.Printf("Content Generated:   %d", cp.Stats.ContentGenerated)
	log.Printf("Errors:              %d", cp.Stats.Errors)
	log.Printf("Rate Limits Hit:     %d", cp.Stats.RateLimitsHit)
	log.Printf("Retries Attempted:   %d", cp.Stats.RetriesAttempted)
	log.Printf("Retries Successful:  %d", cp.Stats.RetriesSuccessful)
	log.Println("===================")
}

// doSleep sleeps unless the context is canceled first. A zero
// duration returns immediately.
func (l *Loop) doSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if l.sleep != nil {
		return l.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
