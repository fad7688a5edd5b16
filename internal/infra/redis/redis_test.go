//go:build !integration

package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memClient is an in-memory RedisClient; expiry is recorded but not enforced.
type memClient struct {
	mu   sync.Mutex
	kv   map[string]string
	ttl  map[string]time.Duration
	ints map[string]int64
}

func newMemClient() *memClient {
	return &memClient{kv: map[string]string{}, ttl: map[string]time.Duration{}, ints: map[string]int64{}}
}

func (m *memClient) Ping(ctx context.Context) error { return nil }

func (m *memClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = toString(value)
	m.ttl[key] = exp
	return nil
}

func (m *memClient) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kv[key]; ok {
		return false, nil
	}
	m.kv[key] = toString(value)
	m.ttl[key] = exp
	return true, nil
}

func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[key]++
	return m.ints[key], nil
}

func (m *memClient) Expire(ctx context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl[key] = exp
	return nil
}

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	return nil
}

func (m *memClient) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv[key] != value {
		return false, nil
	}
	delete(m.kv, key)
	return true, nil
}

func (m *memClient) Close() error { return nil }

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	l := NewLocker(cli)
	l.wait = time.Millisecond

	key := ReferenceLockKey("pi_123")
	assert.Equal(t, "pay:lock:pi_123", key)

	tok, err := l.TryLock(ctx, key, time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	_, err = l.TryLock(ctx, key, time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	// a stale token must not release someone else's lock
	require.NoError(t, l.Unlock(ctx, key, "not-mine"))
	_, err = l.TryLock(ctx, key, time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, l.Unlock(ctx, key, tok))
	tok2, err := l.TryLock(ctx, key, time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, tok, tok2)
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	rl := NewRateLimiter(cli)
	key := UserActionKey("user-1", "checkout")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, cli.ttl[key])
}
