package usage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/zippy/go/internal/race/session"
)

var _ session.SoloUsage = (*Tracker)(nil)

type memoryRedis struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{keys: make(map[string]time.Duration)}
}

func (m *memoryRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memoryRedis) Set(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.keys[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestGateRecordsOncePerAddress(t *testing.T) {
	rdb := newMemoryRedis()
	gate := NewGate(rdb, "pepper", time.Hour)
	ctx := context.Background()

	used, err := gate.HasUsed(ctx, "203.0.113.7:51234")
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, gate.Record(ctx, "203.0.113.7:51234"))

	used, err = gate.HasUsed(ctx, "203.0.113.7:40000")
	require.NoError(t, err)
	assert.True(t, used, "a different port is the same host")

	used, err = gate.HasUsed(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, used)

	assert.Equal(t, time.Hour, rdb.keys[gate.Key("203.0.113.7")])
}

func TestGateKeysAreHashed(t *testing.T) {
	gate := NewGate(newMemoryRedis(), "pepper", 0)
	key := gate.Key("203.0.113.7")

	assert.True(t, strings.HasPrefix(key, "zippy:solo:"))
	assert.NotContains(t, key, "203.0.113.7")
	assert.Len(t, strings.TrimPrefix(key, "zippy:solo:"), 64)
	assert.NotEqual(t, key, NewGate(newMemoryRedis(), "salt", 0).Key("203.0.113.7"))
	assert.Equal(t, key, gate.Key(" 203.0.113.7 "))
}

func TestGateErrors(t *testing.T) {
	rdb := newMemoryRedis()
	gate := NewGate(rdb, "pepper", 0)
	ctx := context.Background()

	_, err := gate.HasUsed(ctx, "  ")
	assert.ErrorIs(t, err, ErrNoAddress)
	assert.ErrorIs(t, gate.Record(ctx, ""), ErrNoAddress)

	rdb.err = errors.New("redis down")
	_, err = gate.HasUsed(ctx, "203.0.113.7")
	assert.ErrorContains(t, err, "redis down")
	assert.Error(t, gate.Record(ctx, "203.0.113.7"))
}

func TestTracker(t *testing.T) {
	gate := NewGate(newMemoryRedis(), "pepper", 0)
	tr := gate.For("203.0.113.7")
	ctx := context.Background()

	used, err := tr.HasUsed(ctx)
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, tr.Record(ctx))
	used, err = gate.For("203.0.113.7:1").HasUsed(ctx)
	require.NoError(t, err)
	assert.True(t, used)
}
