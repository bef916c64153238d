package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
)

func TestFixedWindowAllowCountsAttempts(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}

	for i := 1; i <= 2; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "otp:42:pickup", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.EqualValues(t, i, count)
	}

	allowed, count, err := client.FixedWindowAllow(ctx, "otp:42:pickup", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.EqualValues(t, 3, count)

	key := "pda:attempts:otp:42:pickup"
	assert.Equal(t, time.Minute, store.ttl[key])
	assert.Equal(t, 3, store.expireNXCalls)
}

func TestFixedWindowAllowScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}

	_, _, err := client.FixedWindowAllow(ctx, "otp:1:pickup", 1, time.Minute)
	require.NoError(t, err)
	allowed, count, err := client.FixedWindowAllow(ctx, "otp:1:delivery", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 1, count)
}

func TestFixedWindowAllowSurfacesErrors(t *testing.T) {
	store := newFakeStore()
	store.incrErr = errors.New("connection reset")
	client := &Client{store: store}

	allowed, _, err := client.FixedWindowAllow(context.Background(), "otp:9:pickup", 5, time.Minute)
	require.Error(t, err)
	assert.False(t, allowed)
	assert.Contains(t, err.Error(), "otp:9:pickup")
}

func TestSetNXGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	key := client.LockKey("cron-worker")

	ok, err := client.SetNX(ctx, key, "owner-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, key, "owner-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)

	require.NoError(t, client.Set(ctx, key, "owner-3", time.Minute))
	owner, err = client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "owner-3", owner)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, errNotInitialized)
	_, _, err = client.FixedWindowAllow(ctx, "s", 1, time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "pda:idempotency:notification-worker:evt-1", client.IdempotencyKey("notification-worker", "evt-1"))
	assert.Equal(t, "pda:attempts:otp:42:delivery", client.AttemptKey("otp:42:delivery"))
	assert.Equal(t, "pda:lock:cron-worker", client.LockKey("cron-worker"))
	assert.Equal(t, "pda:lock:cron", client.buildKey("lock", " ", "cron"))
}

func TestOptionsFromConfig(t *testing.T) {
	t.Run("url wins and config fills gaps", func(t *testing.T) {
		opts, err := optionsFromConfig(config.RedisConfig{
			URL:          "redis://:secret@cache:6380/3",
			Address:      "ignored:6379",
			PoolSize:     12,
			MinIdleConns: 2,
			DialTimeout:  time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 3, opts.DB)
		assert.Equal(t, 12, opts.PoolSize)
		assert.Equal(t, 2, opts.MinIdleConns)
		assert.Equal(t, time.Second, opts.DialTimeout)
	})

	t.Run("address fallback", func(t *testing.T) {
		opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 4})
		require.NoError(t, err)
		assert.Equal(t, "localhost:6379", opts.Addr)
		assert.Equal(t, 4, opts.DB)
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := optionsFromConfig(config.RedisConfig{})
		assert.Error(t, err)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := optionsFromConfig(config.RedisConfig{URL: "http://nope"})
		assert.Error(t, err)
	})
}

type fakeStore struct {
	data          map[string]string
	counters      map[string]int64
	ttl           map[string]time.Duration
	expireNXCalls int
	incrErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:     map[string]string{},
		counters: map[string]int64{},
		ttl:      map[string]time.Duration{},
	}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeStore) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expireNXCalls++
	if _, ok := f.ttl[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
		delete(f.counters, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
