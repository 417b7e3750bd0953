package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clouddisk-server/internal/config"
)

func TestMemoryStoreRevoke(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	defer m.Close()
	ctx := context.Background()

	revoked, err := m.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, m.Revoke(ctx, "tok", time.Hour))
	revoked, err = m.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryStoreExpiry(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Revoke(ctx, "short", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	revoked, err := m.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)

	// non-positive TTL means the token is already past its lifetime
	require.NoError(t, m.Revoke(ctx, "expired", -time.Second))
	revoked, err = m.IsRevoked(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryStoreJanitor(t *testing.T) {
	m := NewMemoryStore(20 * time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Revoke(ctx, "tok", 10*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	m.mu.RLock()
	_, present := m.entries["tok"]
	m.mu.RUnlock()
	assert.False(t, present)
}

func TestNewDefaultsToMemory(t *testing.T) {
	cfg := &config.CacheConfig{}
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}

func TestNewUnknownType(t *testing.T) {
	cfg := &config.CacheConfig{Type: "memcached"}
	_, err := New(cfg)
	assert.Error(t, err)
}
