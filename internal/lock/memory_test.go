package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire is exclusive until release", func(t *testing.T) {
		m := NewMemoryLocker()
		defer m.Stop()

		ok, err := m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		held, err := m.IsHeld(ctx, "k")
		require.NoError(t, err)
		assert.True(t, held)

		released, err := m.Release(ctx, "k")
		require.NoError(t, err)
		assert.True(t, released)

		ok, err = m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lease can be retaken", func(t *testing.T) {
		m := NewMemoryLocker()
		defer m.Stop()

		ok, err := m.Acquire(ctx, "k", time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(5 * time.Millisecond)

		held, err := m.IsHeld(ctx, "k")
		require.NoError(t, err)
		assert.False(t, held)

		ok, err = m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("extend keeps a live lease, rejects an expired one", func(t *testing.T) {
		m := NewMemoryLocker()
		defer m.Stop()

		ok, err := m.Acquire(ctx, "live", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		extended, err := m.Extend(ctx, "live", time.Hour)
		require.NoError(t, err)
		assert.True(t, extended)

		ok, err = m.Acquire(ctx, "stale", time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		time.Sleep(5 * time.Millisecond)
		extended, err = m.Extend(ctx, "stale", time.Hour)
		require.NoError(t, err)
		assert.False(t, extended)
	})

	t.Run("retry wins once the holder releases", func(t *testing.T) {
		m := NewMemoryLocker()
		defer m.Stop()

		ok, err := m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		go func() {
			time.Sleep(10 * time.Millisecond)
			m.Release(context.Background(), "k")
		}()

		ok, err = m.AcquireWithRetry(ctx, "k", time.Minute, 10, 5*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("cancelled context stops a retry", func(t *testing.T) {
		m := NewMemoryLocker()
		defer m.Stop()

		ok, err := m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = m.AcquireWithRetry(cancelled, "k", time.Minute, 3, time.Millisecond)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		m := NewMemoryLocker()
		m.Stop()
		m.Stop()
	})
}
