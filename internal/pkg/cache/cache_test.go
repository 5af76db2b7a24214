package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
)

func TestMemoryStore_Claim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	ok, err := m.Claim(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.Claim(ctx, "evt_1", time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = m.Claim(ctx, "evt_1", time.Minute)
	assert.True(t, ok, "claim expires with its ttl")
}

func TestMemoryStore_Allow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := m.Allow(ctx, "1.2.3.4", 3, time.Minute)
	assert.False(t, ok)

	ok, _ = m.Allow(ctx, "5.6.7.8", 3, time.Minute)
	assert.True(t, ok, "limits are per key")

	now = now.Add(61 * time.Second)
	ok, _ = m.Allow(ctx, "1.2.3.4", 3, time.Minute)
	assert.True(t, ok, "window resets")
}

func TestMemoryStore_InvalidateWorkspace(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	a := report.Query{WorkspaceID: "ws-a", Type: report.TypeRevenue}
	b := report.Query{WorkspaceID: "ws-b", Type: report.TypeRevenue}
	require.NoError(t, m.Set(ctx, a.CacheKey(), []byte("a"), time.Hour))
	require.NoError(t, m.Set(ctx, b.CacheKey(), []byte("b"), time.Hour))

	require.NoError(t, m.InvalidateWorkspace(ctx, "ws-a"))

	_, found, _ := m.Get(ctx, a.CacheKey())
	assert.False(t, found)
	_, found, _ = m.Get(ctx, b.CacheKey())
	assert.True(t, found)
}
