package identity

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Owner is the stable account record behind a rotating identity.
// Owners are provisioned lazily on first use.
type Owner struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerStore persists owner records. PutIfAbsent must be idempotent
// under a concurrent first-use race: whichever record lands first
// wins, and both callers see it.
type OwnerStore interface {
	Get(ctx context.Context, identity string) (*Owner, error)
	PutIfAbsent(ctx context.Context, owner Owner) (*Owner, error)
}

// DefaultOwner is the shared fallback used when provisioning fails.
// Falling back under-counts intended load distribution, but a
// provisioning hiccup must never abort the caller's unit of work.
var DefaultOwner = Owner{ID: "owner-default", Identity: "default"}

// Rotator hands out identities from a fixed pool and resolves each to
// its owner record.
type Rotator struct {
	pool  []string
	store OwnerStore

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRotator builds a Rotator over the given pool. The pool must be
// non-empty; config validation enforces that upstream.
func NewRotator(pool []string, store OwnerStore) *Rotator {
	return &Rotator{
		pool:  pool,
		store: store,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns a uniformly random identity from the pool. Over many
// calls every identity gets used.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool[r.rng.Intn(len(r.pool))]
}

// Pool returns the configured identity pool.
func (r *Rotator) Pool() []string {
	return append([]string{}, r.pool...)
}

// ResolveOwner maps an identity to its owner record, provisioning one
// on first use. Any store failure falls back to DefaultOwner rather
// than failing the unit.
func (r *Rotator) ResolveOwner(ctx context.Context, identity string) Owner {
	owner, err := r.store.Get(ctx, identity)
	if err != nil {
		log.Printf("⚠️  Owner lookup failed for %s: %v (using default owner)", identity, err)
		return DefaultOwner
	}
	if owner != nil {
		return *owner
	}

	fresh := Owner{
		ID:        uuid.New().String(),
		Identity:  identity,
		CreatedAt: time.Now().UTC(),
	}
	stored, err := r.store.PutIfAbsent(ctx, fresh)
	if err != nil {
		log.Printf("⚠️  Owner provisioning failed for %s: %v (using default owner)", identity, err)
		return DefaultOwner
	}
	return *stored
}
