package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := NewLimiter(NewMemoryStore().WithClock(clock), 3, time.Minute).WithClock(clock)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(context.Background(), "10.0.0.1"))
	}
	require.False(t, l.Allow(context.Background(), "10.0.0.1"))
}

func TestWindowResets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := NewLimiter(NewMemoryStore().WithClock(clock), 1, time.Minute).WithClock(clock)

	require.True(t, l.Allow(context.Background(), "10.0.0.1"))
	require.False(t, l.Allow(context.Background(), "10.0.0.1"))

	now = now.Add(time.Minute)
	require.True(t, l.Allow(context.Background(), "10.0.0.1"))
}

func TestIdentitiesAreIndependent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := NewLimiter(NewMemoryStore().WithClock(clock), 1, time.Minute).WithClock(clock)

	require.True(t, l.Allow(context.Background(), "10.0.0.1"))
	require.True(t, l.Allow(context.Background(), "10.0.0.2"))
	require.False(t, l.Allow(context.Background(), "10.0.0.1"))
}

type failingStore struct{}

func (failingStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, fmt.Errorf("store down")
}

func TestStoreFailureFailsOpen(t *testing.T) {
	l := NewLimiter(failingStore{}, 1, time.Minute)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(context.Background(), "10.0.0.1"))
	}
}
