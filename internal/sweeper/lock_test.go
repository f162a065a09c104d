package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	values map[string]string
	setErr error
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestNewRedisLock(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(newFakeStore(), "", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(newFakeStore(), "key", 0)
	assert.Error(t, err)
}

func TestRedisLock(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	first, err := NewRedisLock(store, "storecredit:lock:sweeper", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "storecredit:lock:sweeper", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "storecredit:lock:sweeper")

	require.NoError(t, first.Release(ctx))
	assert.NotContains(t, store.values, "storecredit:lock:sweeper")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseForeignOwner(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.values["k"] = "someone-else"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "someone-else", store.values["k"])
}

func TestRedisLockErrors(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	store.setErr = errors.New("connection refused")
	_, err = lock.Acquire(ctx)
	assert.ErrorContains(t, err, "setnx: connection refused")

	store.setErr = nil
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.getErr = errors.New("timeout")
	assert.ErrorContains(t, lock.Release(ctx), "read lock owner: timeout")
}
