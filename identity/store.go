package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisOwnerStore keeps owner records in Redis. The get-or-create race
// on first use is resolved with SETNX: the first writer wins and the
// loser reads back the winner's record.
type RedisOwnerStore struct {
	client *redis.Client
	prefix string
}

// NewRedisOwnerStore wraps an existing Redis client.
func NewRedisOwnerStore(client *redis.Client) *RedisOwnerStore {
	return &RedisOwnerStore{client: client, prefix: "owners:"}
}

func (s *RedisOwnerStore) key(identity string) string {
	return s.prefix + identity
}

func (s *RedisOwnerStore) Get(ctx context.Context, identity string) (*Owner, error) {
	raw, err := s.client.Get(ctx, s.key(identity)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get owner: %w", err)
	}

	var owner Owner
	if err := json.Unmarshal([]byte(raw), &owner); err != nil {
		return nil, fmt.Errorf("decode owner record: %w", err)
	}
	return &owner, nil
}

func (s *RedisOwnerStore) PutIfAbsent(ctx context.Context, owner Owner) (*Owner, error) {
	data, err := json.Marshal(owner)
	if err != nil {
		return nil, fmt.Errorf("encode owner record: %w", err)
	}

	set, err := s.client.SetNX(ctx, s.key(owner.Identity), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx owner: %w", err)
	}
	if set {
		return &owner, nil
	}

	// Lost the first-use race; the winner's record is authoritative.
	existing, err := s.Get(ctx, owner.Identity)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("owner record for %s vanished after setnx", owner.Identity)
	}
	return existing, nil
}

// MemoryOwnerStore is an in-process OwnerStore used when Redis is not
// configured, and by tests.
type MemoryOwnerStore struct {
	mu     sync.Mutex
	owners map[string]Owner
}

func NewMemoryOwnerStore() *MemoryOwnerStore {
	return &MemoryOwnerStore{owners: make(map[string]Owner)}
}

func (s *MemoryOwnerStore) Get(ctx context.Context, identity string) (*Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.owners[identity]; ok {
		return &owner, nil
	}
	return nil, nil
}

func (s *MemoryOwnerStore) PutIfAbsent(ctx context.Context, owner Owner) (*Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.owners[owner.Identity]; ok {
		return &existing, nil
	}
	s.owners[owner.Identity] = owner
	return &owner, nil
}
