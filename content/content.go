package content

import (
	"context"
	"time"
)

// ApprovalStatus values recorded for a piece of content.
const (
	ApprovalPending  = "pending"
	ApprovalAccepted = "accepted"
	ApprovalRejected = "rejected"
)

// Record is the persisted form of one generated item as the
// verification pipeline sees it. The orchestrator never mutates
// records it did not write.
type Record struct {
	ContentID      string    `json:"content_id"`
	CampaignID     string    `json:"campaign_id"`
	ContentType    string    `json:"content_type"`
	Identity       string    `json:"identity"`
	Body           string    `json:"body,omitempty"`
	MediaRefs      []string  `json:"media_refs,omitempty"`
	ApprovalStatus string    `json:"approval_status,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the read side the verification pipeline queries,
// keyed by (campaign_id, content_type, recency). Put exists for
// workers that persist their own output (the Cohere text worker);
// the external pipeline writes through its own path.
type Store interface {
	Put(ctx context.Context, record Record) error
	// Latest returns the most recent record for the key, or nil when
	// none exists.
	Latest(ctx context.Context, campaignID, contentType string) (*Record, error)
	// SetApproval updates the approval status of a record in place.
	SetApproval(ctx context.Context, contentID, status string) error
	// Approval returns the approval status recorded for the latest
	// record of the key, or "" when none exists.
	Approval(ctx context.Context, campaignID, contentType string) (string, error)
}
