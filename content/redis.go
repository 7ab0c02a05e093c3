package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps content records in Redis: the latest record
// per (campaign, content_type) under a deterministic key, plus one
// record per content id so approvals can be updated in place.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client. A zero ttl
// keeps records indefinitely.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClientFromEnv builds a Redis client from REDIS_ADDR,
// REDIS_PASS and REDIS_DB. Returns nil when REDIS_ADDR is unset so
// callers can fall back to in-memory stores.
func NewRedisClientFromEnv() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASS"),
		DB:       db,
	})
}

func latestKey(campaignID, contentType string) string {
	return fmt.Sprintf("content:latest:%s:%s", campaignID, contentType)
}

func recordKey(contentID string) string {
	return "content:record:" + contentID
}

func (s *RedisStore) Put(ctx context.Context, record Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode content record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKey(record.ContentID), data, s.ttl)
	pipe.Set(ctx, latestKey(record.CampaignID, record.ContentType), record.ContentID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store content record: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, campaignID, contentType string) (*Record, error) {
	contentID, err := s.client.Get(ctx, latestKey(campaignID, contentType)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup latest content: %w", err)
	}
	return s.byID(ctx, contentID)
}

func (s *RedisStore) byID(ctx context.Context, contentID string) (*Record, error) {
	raw, err := s.client.Get(ctx, recordKey(contentID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch content record: %w", err)
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode content record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) SetApproval(ctx context.Context, contentID, status string) error {
	record, err := s.byID(ctx, contentID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no content record for %s", contentID)
	}
	record.ApprovalStatus = status
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode content record: %w", err)
	}
	if err := s.client.Set(ctx, recordKey(contentID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("update approval status: %w", err)
	}
	return nil
}

func (s *RedisStore) Approval(ctx context.Context, campaignID, contentType string) (string, error) {
	record, err := s.Latest(ctx, campaignID, contentType)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return record.ApprovalStatus, nil
}
