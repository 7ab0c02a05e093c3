package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"campaignbot/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store, err := New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store, path
}

func testCampaign() types.Campaign {
	return types.Campaign{
		ID:    "camp-1",
		Title: "Spring Launch",
		Targets: map[string]int{
			"shitpost": 2,
			"promo":    1,
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, path := newTestStore(t)
	campaign := testCampaign()

	if err := store.StartCampaign(campaign); err != nil {
		t.Fatalf("failed to start campaign: %v", err)
	}
	if err := store.RecordUnit(campaign, "shitpost", true, types.Stats{RetriesAttempted: 2, RateLimitsHit: 2, RetriesSuccessful: 1}); err != nil {
		t.Fatalf("failed to record unit: %v", err)
	}
	if err := store.MarkTypeCompleted("promo"); err != nil {
		t.Fatalf("failed to mark type completed: %v", err)
	}

	// A second store over the same file must see identical state.
	reopened, err := New(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	cp := reopened.Checkpoint()

	if cp.CurrentCampaignID != "camp-1" {
		t.Fatalf("expected current campaign camp-1, got %q", cp.CurrentCampaignID)
	}
	if got := cp.TypeCount("shitpost"); got != 1 {
		t.Fatalf("expected 1 shitpost generated, got %d", got)
	}
	if !cp.TypeCompleted("promo") {
		t.Fatal("expected promo to be completed after reload")
	}
	if cp.Stats.ContentGenerated != 1 {
		t.Fatalf("expected content_generated=1, got %d", cp.Stats.ContentGenerated)
	}
	if cp.Stats.RetriesAttempted != 2 || cp.Stats.RateLimitsHit != 2 || cp.Stats.RetriesSuccessful != 1 {
		t.Fatalf("retry counters did not survive reload: %+v", cp.Stats)
	}
}

func TestStoreCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	store, err := New(path)
	if err != nil {
		t.Fatalf("corrupt checkpoint must not be fatal: %v", err)
	}

	cp := store.Checkpoint()
	if cp.Version != types.CheckpointVersion {
		t.Fatalf("expected fresh checkpoint version %d, got %d", types.CheckpointVersion, cp.Version)
	}
	if cp.CurrentCampaignID != "" || len(cp.CompletedCampaignIDs) != 0 {
		t.Fatalf("expected empty default state, got %+v", cp)
	}
}

func TestStoreIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	payload := `{"version": 1, "current_campaign_id": "camp-9", "future_field": {"nested": true}, "completed_campaign_ids": ["camp-1"]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("failed to write checkpoint: %v", err)
	}

	store, err := New(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	cp := store.Checkpoint()
	if cp.CurrentCampaignID != "camp-9" {
		t.Fatalf("expected camp-9, got %q", cp.CurrentCampaignID)
	}
	if !cp.CampaignCompleted("camp-1") {
		t.Fatal("expected camp-1 to remain completed")
	}
}

func TestCampaignNeverCurrentAndCompleted(t *testing.T) {
	store, _ := newTestStore(t)
	campaign := testCampaign()

	if err := store.StartCampaign(campaign); err != nil {
		t.Fatalf("failed to start campaign: %v", err)
	}
	if err := store.MarkCampaignComplete(campaign.ID); err != nil {
		t.Fatalf("failed to complete campaign: %v", err)
	}

	cp := store.Checkpoint()
	if cp.CurrentCampaignID == campaign.ID {
		t.Fatal("completed campaign must not remain current")
	}
	if !cp.CampaignCompleted(campaign.ID) {
		t.Fatal("expected campaign in completed set")
	}
	if cp.Stats.CampaignsProcessed != 1 {
		t.Fatalf("expected campaigns_processed=1, got %d", cp.Stats.CampaignsProcessed)
	}
	if len(cp.Progress.ContentTypesCompleted) != 0 || cp.Progress.GenerationCount != 0 {
		t.Fatalf("expected progress cleared on completion, got %+v", cp.Progress)
	}

	// Restarting the same campaign pulls it back out of the completed set.
	if err := store.StartCampaign(campaign); err != nil {
		t.Fatalf("failed to restart campaign: %v", err)
	}
	cp = store.Checkpoint()
	if cp.CampaignCompleted(campaign.ID) {
		t.Fatal("restarted campaign must leave the completed set")
	}
	if cp.CurrentCampaignID != campaign.ID {
		t.Fatalf("expected restarted campaign current, got %q", cp.CurrentCampaignID)
	}
}

func TestEveryMutationPersistsSynchronously(t *testing.T) {
	store, path := newTestStore(t)
	campaign := testCampaign()

	readDisk := func() types.Checkpoint {
		t.Helper()
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read checkpoint file: %v", err)
		}
		var cp types.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			t.Fatalf("failed to parse checkpoint file: %v", err)
		}
		return cp
	}

	if err := store.StartCampaign(campaign); err != nil {
		t.Fatalf("failed to start campaign: %v", err)
	}
	if got := readDisk().CurrentCampaignID; got != campaign.ID {
		t.Fatalf("campaign start not on disk, got %q", got)
	}

	if err := store.UpdateProgress(campaign, "shitpost", false); err != nil {
		t.Fatalf("failed to record failure: %v", err)
	}
	if got := readDisk().Stats.Errors; got != 1 {
		t.Fatalf("expected errors=1 on disk, got %d", got)
	}
}

func TestClearResetsToDefault(t *testing.T) {
	store, _ := newTestStore(t)
	campaign := testCampaign()

	if err := store.StartCampaign(campaign); err != nil {
		t.Fatalf("failed to start campaign: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	cp := store.Checkpoint()
	if cp.CurrentCampaignID != "" || cp.Stats.ContentGenerated != 0 {
		t.Fatalf("expected default state after clear, got %+v", cp)
	}
}
