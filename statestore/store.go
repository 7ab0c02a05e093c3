package statestore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"campaignbot/types"

	"github.com/gofrs/flock"
)

// Store persists the orchestrator checkpoint to a JSON file with
// crash-safe semantics: every save writes a temp file in the same
// directory and renames it over the old one, and the whole write is
// guarded by an OS advisory lock so a second orchestrator instance
// cannot interleave with us.
//
// Every mutating call persists synchronously. Resumability depends on
// this: a crash can lose at most the unit that was in flight.
type Store struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
	cp *types.Checkpoint
}

// New creates a Store rooted at path, creating parent directories as
// needed, and loads the last checkpoint (or a fresh default).
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	s.cp = s.load()
	return s, nil
}

// load reads the checkpoint from disk. Corruption is always resolved
// as "start fresh" with a warning, never as a fatal error.
func (s *Store) load() *types.Checkpoint {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️  Checkpoint unreadable (%v), starting fresh", err)
		}
		return types.NewCheckpoint()
	}

	cp := types.NewCheckpoint()
	if err := json.Unmarshal(data, cp); err != nil {
		log.Printf("⚠️  Checkpoint corrupt (%v), starting fresh", err)
		return types.NewCheckpoint()
	}
	normalize(cp)
	return cp
}

func normalize(cp *types.Checkpoint) {
	if cp.Version == 0 {
		cp.Version = types.CheckpointVersion
	}
	if cp.CompletedCampaignIDs == nil {
		cp.CompletedCampaignIDs = []string{}
	}
	if cp.Progress.ContentTypesCompleted == nil {
		cp.Progress.ContentTypesCompleted = []string{}
	}
	if cp.Progress.ContentTypesRemaining == nil {
		cp.Progress.ContentTypesRemaining = []string{}
	}
	if cp.Progress.TypeCounts == nil {
		cp.Progress.TypeCounts = map[string]int{}
	}
}

// Checkpoint returns a deep copy of the current state for read-only
// consumers (the control API, the loop's resume filter).
func (s *Store) Checkpoint() types.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := *s.cp
	snapshot.CompletedCampaignIDs = append([]string{}, s.cp.CompletedCampaignIDs...)
	snapshot.Progress.ContentTypesCompleted = append([]string{}, s.cp.Progress.ContentTypesCompleted...)
	snapshot.Progress.ContentTypesRemaining = append([]string{}, s.cp.Progress.ContentTypesRemaining...)
	snapshot.Progress.TypeCounts = make(map[string]int, len(s.cp.Progress.TypeCounts))
	for k, v := range s.cp.Progress.TypeCounts {
		snapshot.Progress.TypeCounts[k] = v
	}
	return snapshot
}

// Save persists the current checkpoint atomically under the advisory
// lock.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save persists without taking mu; callers must hold it.
func (s *Store) save() error {
	s.cp.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(s.cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	defer s.lock.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Update applies fn to the in-memory checkpoint and persists
// immediately.
func (s *Store) Update(fn func(*types.Checkpoint)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cp)
	return s.save()
}

// StartCampaign records the campaign the loop is about to work on.
func (s *Store) StartCampaign(campaign types.Campaign) error {
	return s.Update(func(cp *types.Checkpoint) {
		cp.SetCurrent(campaign)
	})
}

// UpdateProgress records the outcome of one generation unit: bumps the
// per-type and campaign counters on success, error counters otherwise,
// then persists.
func (s *Store) UpdateProgress(campaign types.Campaign, contentType string, success bool) error {
	return s.RecordUnit(campaign, contentType, success, types.Stats{})
}

// RecordUnit is UpdateProgress plus a retry-counter delta folded in
// under the same persist, so one unit costs one write.
func (s *Store) RecordUnit(campaign types.Campaign, contentType string, success bool, delta types.Stats) error {
	return s.Update(func(cp *types.Checkpoint) {
		cp.SetCurrent(campaign)
		if success {
			if cp.Progress.TypeCounts == nil {
				cp.Progress.TypeCounts = map[string]int{}
			}
			cp.Progress.TypeCounts[contentType]++
			cp.Progress.GenerationCount++
			cp.Progress.LastContentGenerated = contentType
			cp.Stats.ContentGenerated++
		} else {
			cp.Stats.Errors++
		}
		cp.Stats.RateLimitsHit += delta.RateLimitsHit
		cp.Stats.RetriesAttempted += delta.RetriesAttempted
		cp.Stats.RetriesSuccessful += delta.RetriesSuccessful
	})
}

// MarkTypeCompleted moves a content type to the completed set for the
// current campaign and persists.
func (s *Store) MarkTypeCompleted(contentType string) error {
	return s.Update(func(cp *types.Checkpoint) {
		cp.MarkTypeCompleted(contentType)
	})
}

// MarkCampaignComplete moves the campaign from current to completed,
// clears campaign progress, bumps campaigns_processed and persists.
func (s *Store) MarkCampaignComplete(id string) error {
	return s.Update(func(cp *types.Checkpoint) {
		cp.CompleteCampaign(id)
	})
}

// AddStats folds counter deltas from the loop into the checkpoint and
// persists.
func (s *Store) AddStats(delta types.Stats) error {
	return s.Update(func(cp *types.Checkpoint) {
		cp.Stats.CampaignsProcessed += delta.CampaignsProcessed
		cp.Stats.ContentGenerated += delta.ContentGenerated
		cp.Stats.Errors += delta.Errors
		cp.Stats.RateLimitsHit += delta.RateLimitsHit
		cp.Stats.RetriesAttempted += delta.RetriesAttempted
		cp.Stats.RetriesSuccessful += delta.RetriesSuccessful
	})
}

// Clear resets the checkpoint to its default empty state and persists
// ("clear state" operator control).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = types.NewCheckpoint()
	return s.save()
}
