package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/pdalogistics-backend/pkg/redis"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"

	defaultLease = 5 * time.Minute
)

// Claim is the outcome of asking to process an event.
type Claim int

const (
	// Acquired means the caller owns the event until it completes or releases it.
	Acquired Claim = iota
	// Done means another delivery already handled the event.
	Done
	// InFlight means another delivery holds the lease right now.
	InFlight
)

func (c Claim) String() string {
	switch c {
	case Acquired:
		return "acquired"
	case Done:
		return "done"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Manager guards event handlers against Pub/Sub redelivery. A claim first
// writes a short "processing" lease; Complete swaps it for a long-lived
// "done" marker. A worker that dies mid-event leaves only the lease, which
// expires and lets the next delivery retry.
//
// Keys follow pda:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done markers for ttl and in-flight leases for lease. A
// zero lease uses five minutes.
func NewManager(store redis.IdempotencyStore, ttl, lease time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 || lease < 0 {
		return nil, errors.New("ttl and lease must be non-negative")
	}
	if lease == 0 {
		lease = defaultLease
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Claim tries to take ownership of eventID for consumer.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Claim, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return InFlight, err
	}
	set, err := m.store.SetNX(ctx, key, markerProcessing, m.lease)
	if err != nil {
		return InFlight, fmt.Errorf("claim %s: %w", eventID, err)
	}
	if set {
		return Acquired, nil
	}

	marker, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Lease expired between the two calls; let redelivery try again.
		return InFlight, nil
	case err != nil:
		return InFlight, fmt.Errorf("read marker %s: %w", eventID, err)
	case marker == markerDone:
		return Done, nil
	default:
		return InFlight, nil
	}
}

// Complete records that eventID was handled.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

// Release drops a claim so the next delivery can retry immediately.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
