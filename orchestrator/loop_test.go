package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campaignbot/campaign"
	"campaignbot/config"
	"campaignbot/content"
	"campaignbot/identity"
	"campaignbot/state"
	"campaignbot/statestore"
	"campaignbot/types"
	"campaignbot/verify"
)

// fakeWorker scripts per-unit behavior: the first failures entries for
// a key are returned as errors before generation succeeds.
type fakeWorker struct {
	mu       sync.Mutex
	failures map[string][]error
	calls    map[string]int
	store    content.Store
}

func newFakeWorker(store content.Store) *fakeWorker {
	return &fakeWorker{
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		store:    store,
	}
}

func (w *fakeWorker) failWith(campaignID, contentType string, errs ...error) {
	key := campaignID + "/" + contentType
	w.failures[key] = append(w.failures[key], errs...)
}

func (w *fakeWorker) callCount(campaignID, contentType string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[campaignID+"/"+contentType]
}

func (w *fakeWorker) Generate(ctx context.Context, c types.Campaign, contentType, identity string) (*types.GenerationResult, error) {
	key := c.ID + "/" + contentType

	w.mu.Lock()
	w.calls[key]++
	var err error
	if pending := w.failures[key]; len(pending) > 0 {
		err = pending[0]
		w.failures[key] = pending[1:]
	}
	w.mu.Unlock()

	if err != nil {
		return nil, err
	}

	contentID := fmt.Sprintf("content-%s-%d", key, w.callCount(c.ID, contentType))
	if w.store != nil {
		record := content.Record{
			ContentID:   contentID,
			CampaignID:  c.ID,
			ContentType: contentType,
			Identity:    identity,
		}
		if err := w.store.Put(ctx, record); err != nil {
			return nil, err
		}
	}
	return &types.GenerationResult{ContentID: contentID}, nil
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []types.UnitOutcome
}

func (s *recordingSink) PublishOutcome(outcome types.UnitOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func testConfig(singleID string) config.OrchestratorConfig {
	return config.OrchestratorConfig{
		IdentityPool:        []string{"poster-alpha", "poster-beta"},
		BatchSize:           2,
		MaxAttempts:         3,
		BaseDelay:           time.Millisecond,
		TransientIndicators: config.DefaultTransientIndicators,
		SingleCampaignID:    singleID,
	}
}

func newTestLoop(t *testing.T, cfg config.OrchestratorConfig, source campaign.Source, worker *fakeWorker, contentStore content.Store) (*Loop, *statestore.Store, *recordingSink) {
	t.Helper()

	store, err := statestore.New(filepath.Join(t.TempDir(), "checkpoint.json"))
	if err != nil {
		t.Fatalf("failed to create state store: %v", err)
	}

	sink := &recordingSink{}
	loop := New(cfg, Deps{
		Source:   source,
		Store:    store,
		Rotator:  identity.NewRotator(cfg.IdentityPool, identity.NewMemoryOwnerStore()),
		Worker:   worker,
		Verifier: &verify.Pipeline{Store: contentStore},
		RunState: state.NewManager(),
		Events:   sink,
	})
	return loop, store, sink
}

func TestLoopRecoversFromRateLimitsAndCompletesCampaign(t *testing.T) {
	c := types.Campaign{
		ID:      "camp-1",
		Title:   "Spring Launch",
		Targets: map[string]int{"shitpost": 1},
	}
	contentStore := content.NewMemoryStore()
	worker := newFakeWorker(contentStore)
	worker.failWith(c.ID, "shitpost",
		errors.New("429 too many requests"),
		errors.New("rate limit exceeded"))

	loop, store, sink := newTestLoop(t, testConfig(c.ID),
		&campaign.StaticSource{Campaigns: []types.Campaign{c}}, worker, contentStore)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	cp := store.Checkpoint()
	if !cp.CampaignCompleted(c.ID) {
		t.Fatal("expected campaign completed after recovery")
	}
	if cp.CurrentCampaignID != "" {
		t.Fatalf("completed campaign left current: %q", cp.CurrentCampaignID)
	}
	if cp.Stats.CampaignsProcessed != 1 || cp.Stats.ContentGenerated != 1 {
		t.Fatalf("unexpected run stats: %+v", cp.Stats)
	}
	if cp.Stats.RateLimitsHit != 2 {
		t.Fatalf("expected rate_limits_hit=2, got %d", cp.Stats.RateLimitsHit)
	}
	if cp.Stats.RetriesAttempted != 2 {
		t.Fatalf("expected retries_attempted=2, got %d", cp.Stats.RetriesAttempted)
	}
	if cp.Stats.RetriesSuccessful != 1 {
		t.Fatalf("expected retries_successful=1, got %d", cp.Stats.RetriesSuccessful)
	}
	if cp.Stats.Errors != 0 {
		t.Fatalf("a recovered unit is not an error, got errors=%d", cp.Stats.Errors)
	}

	if got := worker.callCount(c.ID, "shitpost"); got != 3 {
		t.Fatalf("expected 3 generation attempts, got %d", got)
	}
	if loop.Halt().Raised() {
		t.Fatal("halt must not be raised on recovery")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.outcomes) != 1 {
		t.Fatalf("expected 1 published outcome, got %d", len(sink.outcomes))
	}
	out := sink.outcomes[0]
	if !out.Success || !out.Recovered || !out.RateLimited || out.Retries != 2 {
		t.Fatalf("unexpected outcome event: %+v", out)
	}
}

func TestLoopHaltsWhenRetriesExhaust(t *testing.T) {
	c := types.Campaign{
		ID:      "camp-1",
		Title:   "Spring Launch",
		Targets: map[string]int{"shitpost": 1, "promo": 1},
	}
	contentStore := content.NewMemoryStore()
	worker := newFakeWorker(contentStore)
	worker.failWith(c.ID, "promo",
		errors.New("429"), errors.New("429"), errors.New("429"), errors.New("429"))

	loop, store, _ := newTestLoop(t, testConfig(c.ID),
		&campaign.StaticSource{Campaigns: []types.Campaign{c}}, worker, contentStore)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !loop.Halt().Raised() {
		t.Fatal("expected halt after retry exhaustion")
	}
	// Ceiling of 3 means exactly 3 attempts, never a fourth.
	if got := worker.callCount(c.ID, "promo"); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}

	cp := store.Checkpoint()
	if cp.CampaignCompleted(c.ID) {
		t.Fatal("halted campaign must not be marked complete")
	}
	if cp.CurrentCampaignID != c.ID {
		t.Fatalf("halted campaign must stay current for resume, got %q", cp.CurrentCampaignID)
	}
	if cp.Stats.Errors != 1 {
		t.Fatalf("expected errors=1 for the abandoned unit, got %d", cp.Stats.Errors)
	}
	if cp.Stats.RateLimitsHit != 3 {
		t.Fatalf("expected rate_limits_hit=3, got %d", cp.Stats.RateLimitsHit)
	}
}

func TestLoopAbandonsPermanentFailureAndContinues(t *testing.T) {
	c := types.Campaign{
		ID:      "camp-1",
		Title:   "Spring Launch",
		Targets: map[string]int{"shitpost": 2},
	}
	contentStore := content.NewMemoryStore()
	worker := newFakeWorker(contentStore)
	worker.failWith(c.ID, "shitpost", errors.New("invalid prompt"))

	loop, store, _ := newTestLoop(t, testConfig(c.ID),
		&campaign.StaticSource{Campaigns: []types.Campaign{c}}, worker, contentStore)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if loop.Halt().Raised() {
		t.Fatal("permanent failure must not halt the run")
	}

	cp := store.Checkpoint()
	if !cp.CampaignCompleted(c.ID) {
		t.Fatal("expected campaign completed with the bad unit abandoned")
	}
	if cp.Stats.Errors != 1 || cp.Stats.ContentGenerated != 1 {
		t.Fatalf("expected 1 error and 1 success, got %+v", cp.Stats)
	}
	// One failed attempt plus one successful unit, no retries of the
	// permanent failure.
	if got := worker.callCount(c.ID, "shitpost"); got != 2 {
		t.Fatalf("expected 2 generation calls, got %d", got)
	}
}

func TestLoopResumesFromCheckpoint(t *testing.T) {
	c := types.Campaign{
		ID:      "camp-1",
		Title:   "Spring Launch",
		Targets: map[string]int{"shitpost": 3, "promo": 1},
	}

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	seed, err := statestore.New(path)
	if err != nil {
		t.Fatalf("failed to create state store: %v", err)
	}
	// Simulate a previous run that finished promo and 2 of 3 shitposts
	// before crashing.
	if err := seed.StartCampaign(c); err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := seed.UpdateProgress(c, "shitpost", true); err != nil {
			t.Fatalf("failed to seed progress: %v", err)
		}
	}
	if err := seed.MarkTypeCompleted("promo"); err != nil {
		t.Fatalf("failed to seed completed type: %v", err)
	}

	store, err := statestore.New(path)
	if err != nil {
		t.Fatalf("failed to reopen state store: %v", err)
	}
	contentStore := content.NewMemoryStore()
	worker := newFakeWorker(contentStore)
	cfg := testConfig(c.ID)

	sink := &recordingSink{}
	loop := New(cfg, Deps{
		Source:   &campaign.StaticSource{Campaigns: []types.Campaign{c}},
		Store:    store,
		Rotator:  identity.NewRotator(cfg.IdentityPool, identity.NewMemoryOwnerStore()),
		Worker:   worker,
		Verifier: &verify.Pipeline{Store: contentStore},
		RunState: state.NewManager(),
		Events:   sink,
	})

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Completed work must not repeat: only the missing shitpost runs.
	if got := worker.callCount(c.ID, "promo"); got != 0 {
		t.Fatalf("completed type was re-generated %d time(s)", got)
	}
	if got := worker.callCount(c.ID, "shitpost"); got != 1 {
		t.Fatalf("expected 1 remaining shitpost unit, got %d calls", got)
	}

	cp := store.Checkpoint()
	if !cp.CampaignCompleted(c.ID) {
		t.Fatal("expected campaign completed after resume")
	}
}

func TestLoopSkipsCompletedCampaigns(t *testing.T) {
	done := types.Campaign{ID: "camp-done", Targets: map[string]int{"shitpost": 1}}
	pending := types.Campaign{ID: "camp-new", Targets: map[string]int{"shitpost": 1}}

	contentStore := content.NewMemoryStore()
	worker := newFakeWorker(contentStore)
	cfg := testConfig("")
	cfg.SettleDelay = time.Hour
	cfg.IdleInterval = time.Hour
	loop, store, _ := newTestLoop(t, cfg,
		&campaign.StaticSource{Campaigns: []types.Campaign{done, pending}}, worker, contentStore)
	if err := store.MarkCampaignComplete(done.ID); err != nil {
		t.Fatalf("failed to seed completed campaign: %v", err)
	}

	// Cancel once the pending campaign has been processed so the
	// indefinite loop exits.
	ctx, cancel := context.WithCancel(context.Background())
	loop.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("run failed: %v", err)
	}

	if got := worker.callCount(done.ID, "shitpost"); got != 0 {
		t.Fatalf("completed campaign was re-processed %d time(s)", got)
	}
	if got := worker.callCount(pending.ID, "shitpost"); got != 1 {
		t.Fatalf("expected pending campaign processed once, got %d calls", got)
	}
}

func TestLoopInterruptFlushesCheckpoint(t *testing.T) {
	c := types.Campaign{
		ID:      "camp-1",
		Title:   "Spring Launch",
		Targets: map[string]int{"promo": 1, "shitpost": 1},
	}

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store, err := statestore.New(path)
	if err != nil {
		t.Fatalf("failed to create state store: %v", err)
	}

	// The interrupt arrives while the first unit is in flight; that
	// unit finishes, then no further work is scheduled.
	ctx, cancel := context.WithCancel(context.Background())
	contentStore := content.NewMemoryStore()
	worker := newFakeWorker(contentStore)
	cfg := testConfig(c.ID)

	loop := New(cfg, Deps{
		Source:   &campaign.StaticSource{Campaigns: []types.Campaign{c}},
		Store:    store,
		Rotator:  identity.NewRotator(cfg.IdentityPool, identity.NewMemoryOwnerStore()),
		Worker:   &cancelingWorker{inner: worker, cancel: cancel},
		Verifier: &verify.Pipeline{Store: contentStore},
		RunState: state.NewManager(),
		Events:   &recordingSink{},
	})

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("run failed: %v", err)
	}

	// The checkpoint on disk must be valid and carry the finished
	// unit, with the campaign left open for resume.
	reopened, err := statestore.New(path)
	if err != nil {
		t.Fatalf("failed to reopen checkpoint: %v", err)
	}
	cp := reopened.Checkpoint()
	if cp.Stats.ContentGenerated != 1 {
		t.Fatalf("in-flight unit must be recorded, got %+v", cp.Stats)
	}
	if cp.CampaignCompleted(c.ID) {
		t.Fatal("interrupted campaign must not be marked complete")
	}
	if cp.CurrentCampaignID != c.ID {
		t.Fatalf("interrupted campaign must stay current, got %q", cp.CurrentCampaignID)
	}
	if got := worker.callCount(c.ID, "shitpost"); got != 0 {
		t.Fatalf("no new unit may start after the interrupt, got %d calls", got)
	}
}

// cancelingWorker simulates an operator interrupt landing while its
// first unit is in flight.
type cancelingWorker struct {
	inner  *fakeWorker
	cancel context.CancelFunc
	once   sync.Once
}

func (w *cancelingWorker) Generate(ctx context.Context, c types.Campaign, contentType, identity string) (*types.GenerationResult, error) {
	w.once.Do(w.cancel)
	return w.inner.Generate(ctx, c, contentType, identity)
}

func TestLoopSingleCampaignModeEndsWithoutRestart(t *testing.T) {
	target := types.Campaign{ID: "camp-2", Targets: map[string]int{"shitpost": 1}}
	other := types.Campaign{ID: "camp-1", Targets: map[string]int{"shitpost": 1}}

	contentStore := content.NewMemoryStore()
	worker := newFakeWorker(contentStore)
	loop, store, _ := newTestLoop(t, testConfig(target.ID),
		&campaign.StaticSource{Campaigns: []types.Campaign{other, target}}, worker, contentStore)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("single-campaign run did not terminate")
	}

	if got := worker.callCount(other.ID, "shitpost"); got != 0 {
		t.Fatalf("out-of-scope campaign was processed %d time(s)", got)
	}
	cp := store.Checkpoint()
	if !cp.CampaignCompleted(target.ID) {
		t.Fatal("expected target campaign completed")
	}
}
