package inflight

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require.Equal(t, "md:inflight:7:country:3", Key(7, "country", 3))
	require.Equal(t, "md:inflight:7:agency_scheme:scope:1", ScopeKey(7, "agency_scheme", 1))
	require.NotEqual(t, Key(7, "agency_scheme", 1), ScopeKey(7, "agency_scheme", 1))
}

func TestMemoryLockerExclusive(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker(time.Minute)

	token, err := locker.TryLock(ctx, "k")
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "k")
	require.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, locker.Unlock(ctx, "k", "someone-else"))
	require.True(t, locker.Held("k"))

	require.NoError(t, locker.Unlock(ctx, "k", token))
	require.False(t, locker.Held("k"))

	_, err = locker.TryLock(ctx, "k")
	require.NoError(t, err)
}

func TestMemoryLockerExpiry(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	_, err := locker.TryLock(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = locker.TryLock(ctx, "k")
	require.NoError(t, err)
}

func TestMemoryLockerConcurrent(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker(time.Minute)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.TryLock(ctx, "k"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins)
}
