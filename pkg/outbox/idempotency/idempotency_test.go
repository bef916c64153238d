package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	value string
	ttl   time.Duration
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]entry
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]entry{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	e, ok := f.entries[key]
	if !ok {
		return "", goredis.Nil
	}
	return e.value, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[key] = entry{value: value.(string), ttl: ttl}
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.entries[key]; ok {
		return false, nil
	}
	f.entries[key] = entry{value: value.(string), ttl: ttl}
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "pda:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.entries, key)
	}
	return nil
}

func TestClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour, time.Minute)
	require.NoError(t, err)
	eventID := uuid.New()
	key := "pda:idempotency:evt:notification-worker:" + eventID.String()

	claim, err := manager.Claim(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, claim)
	assert.Equal(t, entry{value: markerProcessing, ttl: time.Minute}, store.entries[key])

	claim, err = manager.Claim(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	assert.Equal(t, InFlight, claim)

	require.NoError(t, manager.Complete(ctx, "notification-worker", eventID))
	assert.Equal(t, entry{value: markerDone, ttl: 24 * time.Hour}, store.entries[key])

	claim, err = manager.Claim(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	assert.Equal(t, Done, claim)
}

func TestReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	manager, err := NewManager(newFakeStore(), time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLease, manager.lease)
	eventID := uuid.New()

	claim, err := manager.Claim(ctx, "c", eventID)
	require.NoError(t, err)
	require.Equal(t, Acquired, claim)
	require.NoError(t, manager.Release(ctx, "c", eventID))

	claim, err = manager.Claim(ctx, "c", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, claim)
}

func TestConsumersAreIsolated(t *testing.T) {
	ctx := context.Background()
	manager, err := NewManager(newFakeStore(), time.Hour, time.Minute)
	require.NoError(t, err)
	eventID := uuid.New()

	require.NoError(t, manager.Complete(ctx, "a", eventID))
	claim, err := manager.Claim(ctx, "b", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, claim)
}

func TestClaimStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("redis down")
	manager, err := NewManager(store, time.Hour, time.Minute)
	require.NoError(t, err)

	claim, err := manager.Claim(context.Background(), "c", uuid.New())
	require.Error(t, err)
	assert.Equal(t, InFlight, claim)
}

func TestValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour, time.Minute)
	assert.Error(t, err)
	_, err = NewManager(newFakeStore(), -time.Second, 0)
	assert.Error(t, err)

	manager, err := NewManager(newFakeStore(), time.Hour, time.Minute)
	require.NoError(t, err)
	_, err = manager.Claim(context.Background(), "", uuid.New())
	assert.Error(t, err)
	assert.Error(t, manager.Complete(context.Background(), "c", uuid.Nil))
	assert.Equal(t, "in_flight", InFlight.String())
}
