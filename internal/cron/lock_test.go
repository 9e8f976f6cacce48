package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockExclusive(t *testing.T) {
	t.Setenv("KITSTOCK_WORKER_ID", "cron-a")
	store := newMemoryStore()
	first, err := NewRedisLock(store, "ks:lock:cron-worker", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "ks:lock:cron-worker", 0)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(store.values["ks:lock:cron-worker"], "cron-a:"))
	assert.Equal(t, defaultLockTTL, store.ttls["ks:lock:cron-worker"])

	ok, _ = second.Acquire(ctx)
	assert.False(t, ok, "second instance acquired a held lock")
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "ks:lock:cron-worker", "non-owner released the lock")

	require.NoError(t, first.Release(ctx))
	ok, _ = second.Acquire(ctx)
	assert.True(t, ok, "lock not reacquirable after release")
}

func TestRedisLockReportsExpiry(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "ks:lock:cron-worker", time.Second)
	require.NoError(t, err)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// TTL elapsed and another worker took the key.
	store.values["ks:lock:cron-worker"] = "cron-b:other"
	assert.ErrorIs(t, lock.Release(context.Background()), ErrLockLost)
	assert.Equal(t, "cron-b:other", store.values["ks:lock:cron-worker"])
	assert.NoError(t, lock.Release(context.Background()))
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Second)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", time.Second)
	assert.Error(t, err)
}
