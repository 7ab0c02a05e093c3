package content

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when Redis is
// not configured, and by tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record // content id -> record
	latest  map[string]string        // campaign:type -> content id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		latest:  make(map[string]string),
	}
}

func memKey(campaignID, contentType string) string {
	return campaignID + ":" + contentType
}

func (s *MemoryStore) Put(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.records[record.ContentID] = record
	s.latest[memKey(record.CampaignID, record.ContentType)] = record.ContentID
	return nil
}

func (s *MemoryStore) Latest(ctx context.Context, campaignID, contentType string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.latest[memKey(campaignID, contentType)]
	if !ok {
		return nil, nil
	}
	record := s.records[id]
	return &record, nil
}

func (s *MemoryStore) SetApproval(ctx context.Context, contentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[contentID]
	if !ok {
		return fmt.Errorf("no content record for %s", contentID)
	}
	record.ApprovalStatus = status
	s.records[contentID] = record
	return nil
}

func (s *MemoryStore) Approval(ctx context.Context, campaignID, contentType string) (string, error) {
	record, err := s.Latest(ctx, campaignID, contentType)
	if err != nil || record == nil {
		return "", err
	}
	return record.ApprovalStatus, nil
}
