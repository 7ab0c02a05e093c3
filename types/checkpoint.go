package types

import (
	"sort"
	"time"
)

// CheckpointVersion is bumped when the on-disk layout changes in a way
// an operator hand-editing the file should know about. Unknown fields
// are ignored on load, so older binaries tolerate newer files.
const CheckpointVersion = 1

// CampaignProgress tracks how far through the current campaign we are.
type CampaignProgress struct {
	ContentTypesCompleted []string       `json:"content_types_completed"`
	ContentTypesRemaining []string       `json:"content_types_remaining"`
	LastContentGenerated  string         `json:"last_content_generated,omitempty"`
	GenerationCount       int            `json:"generation_count"`
	TypeCounts            map[string]int `json:"content_type_counts,omitempty"`
}

// Stats holds the monotonic run counters folded into the checkpoint on
// every mutation.
type Stats struct {
	CampaignsProcessed int `json:"campaigns_processed"`
	ContentGenerated   int `json:"content_generated"`
	Errors             int `json:"errors"`
	RateLimitsHit      int `json:"rate_limits_hit"`
	RetriesAttempted   int `json:"retries_attempted"`
	RetriesSuccessful  int `json:"retries_successful"`
}

// Checkpoint is the durable record of orchestrator progress. It is
// persisted after every state-affecting event so a crash loses at most
// one in-flight unit, never a completed one. The file is plain JSON at
// a fixed location so an operator can inspect and hand-edit it.
//
// Invariant: a campaign id never appears both as CurrentCampaignID and
// in CompletedCampaignIDs.
type Checkpoint struct {
	Version              int              `json:"version"`
	CurrentCampaignID    string           `json:"current_campaign_id,omitempty"`
	CurrentCampaignTitle string           `json:"current_campaign_title,omitempty"`
	CompletedCampaignIDs []string         `json:"completed_campaign_ids"`
	Progress             CampaignProgress `json:"current_campaign_progress"`
	Stats                Stats            `json:"overall_stats"`
	LastUpdated          time.Time        `json:"last_updated"`
}

// NewCheckpoint returns the fresh default state used on first run and
// whenever the stored record is unreadable.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Version:              CheckpointVersion,
		CompletedCampaignIDs: []string{},
		Progress: CampaignProgress{
			ContentTypesCompleted: []string{},
			ContentTypesRemaining: []string{},
			TypeCounts:            map[string]int{},
		},
	}
}

// CampaignCompleted reports whether the given campaign id has already
// been fully processed.
func (c *Checkpoint) CampaignCompleted(id string) bool {
	for _, done := range c.CompletedCampaignIDs {
		if done == id {
			return true
		}
	}
	return false
}

// TypeCompleted reports whether the given content type is done for the
// current campaign.
func (c *Checkpoint) TypeCompleted(contentType string) bool {
	for _, done := range c.Progress.ContentTypesCompleted {
		if done == contentType {
			return true
		}
	}
	return false
}

// TypeCount returns how many units of the given content type have been
// generated for the current campaign so far.
func (c *Checkpoint) TypeCount(contentType string) int {
	if c.Progress.TypeCounts == nil {
		return 0
	}
	return c.Progress.TypeCounts[contentType]
}

// MarkTypeCompleted moves a content type from remaining to completed.
func (c *Checkpoint) MarkTypeCompleted(contentType string) {
	if !c.TypeCompleted(contentType) {
		c.Progress.ContentTypesCompleted = append(c.Progress.ContentTypesCompleted, contentType)
		sort.Strings(c.Progress.ContentTypesCompleted)
	}
	remaining := c.Progress.ContentTypesRemaining[:0]
	for _, t := range c.Progress.ContentTypesRemaining {
		if t != contentType {
			remaining = append(remaining, t)
		}
	}
	c.Progress.ContentTypesRemaining = remaining
}

// CompleteCampaign moves the current campaign into the completed set
// and clears per-campaign progress, preserving the invariant that an
// id is never simultaneously current and completed.
func (c *Checkpoint) CompleteCampaign(id string) {
	if !c.CampaignCompleted(id) {
		c.CompletedCampaignIDs = append(c.CompletedCampaignIDs, id)
		sort.Strings(c.CompletedCampaignIDs)
	}
	if c.CurrentCampaignID == id {
		c.CurrentCampaignID = ""
		c.CurrentCampaignTitle = ""
	}
	c.Progress = CampaignProgress{
		ContentTypesCompleted: []string{},
		ContentTypesRemaining: []string{},
		TypeCounts:            map[string]int{},
	}
	c.Stats.CampaignsProcessed++
}

// SetCurrent records the campaign the loop is working on. Starting a
// campaign that was previously completed removes it from the completed
// set first so the invariant holds.
func (c *Checkpoint) SetCurrent(campaign Campaign) {
	completed := c.CompletedCampaignIDs[:0]
	for _, id := range c.CompletedCampaignIDs {
		if id != campaign.ID {
			completed = append(completed, id)
		}
	}
	c.CompletedCampaignIDs = completed

	if c.CurrentCampaignID != campaign.ID {
		c.Progress = CampaignProgress{
			ContentTypesCompleted: []string{},
			ContentTypesRemaining: sortedTypes(campaign.Targets),
			TypeCounts:            map[string]int{},
		}
	} else if len(c.Progress.ContentTypesRemaining) == 0 && len(c.Progress.ContentTypesCompleted) == 0 {
		c.Progress.ContentTypesRemaining = sortedTypes(campaign.Targets)
	}
	c.CurrentCampaignID = campaign.ID
	c.CurrentCampaignTitle = campaign.Title
}

func sortedTypes(targets map[string]int) []string {
	out := make([]string, 0, len(targets))
	for t := range targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
