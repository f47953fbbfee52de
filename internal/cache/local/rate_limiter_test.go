package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "ip:1", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "ip:1", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys have their own bucket.
	ok, err = rl.Allow(ctx, "ip:2", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, err = rl.Allow(ctx, "ip:1", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(time.Minute)
	rl.now = func() time.Time { return now }

	_, err := rl.Allow(ctx, "a", 1, time.Second)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = rl.Allow(ctx, "b", 1, time.Second)
	require.NoError(t, err)

	assert.Len(t, rl.buckets, 1)
	assert.Contains(t, rl.buckets, "b")
}

func TestRateLimiterRejectsNonPositiveLimit(t *testing.T) {
	rl := NewRateLimiter(0)
	ok, err := rl.Allow(context.Background(), "k", 0, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}
