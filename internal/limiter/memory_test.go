package limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Memory, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemory(time.Minute, 3, 5*time.Minute)
	l.now = clk.now
	return l, clk
}

var _ Limiter = (*Memory)(nil)

func TestMemory_BlocksAfterMaxFails(t *testing.T) {
	t.Parallel()
	l, clk := newTestLimiter()
	ctx := context.Background()

	ok, _, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "alice")
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, retry, err := l.Failure(ctx, "alice")
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, retry)

	ok, retry, err = l.Allow(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, retry)

	// other logins are unaffected
	ok, _, _ = l.Allow(ctx, "bob")
	require.True(t, ok)

	clk.advance(5*time.Minute + time.Second)
	ok, _, _ = l.Allow(ctx, "alice")
	require.True(t, ok)
}

func TestMemory_WindowResetsCount(t *testing.T) {
	t.Parallel()
	l, clk := newTestLimiter()
	ctx := context.Background()

	_, _, _ = l.Failure(ctx, "alice")
	_, _, _ = l.Failure(ctx, "alice")
	clk.advance(2 * time.Minute)

	blocked, _, err := l.Failure(ctx, "alice")
	require.NoError(t, err)
	require.False(t, blocked, "stale failures must not count")
}

func TestMemory_SuccessAndForgetReset(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter()
	ctx := context.Background()

	_, _, _ = l.Failure(ctx, "alice")
	_, _, _ = l.Failure(ctx, "alice")
	require.NoError(t, l.Success(ctx, "alice"))
	blocked, _, _ := l.Failure(ctx, "alice")
	require.False(t, blocked)

	_, _, _ = l.Failure(ctx, "alice")
	l.Forget("alice")
	blocked, _, _ = l.Failure(ctx, "alice")
	require.False(t, blocked)
}

func TestMemory_SweepsStaleEntries(t *testing.T) {
	t.Parallel()
	l, clk := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, _, err := l.Failure(ctx, fmt.Sprintf("ghost%d", i))
		require.NoError(t, err)
	}
	// one login still blocked when the others lapse
	for i := 0; i < 3; i++ {
		_, _, _ = l.Failure(ctx, "alice")
	}
	require.Equal(t, 1001, l.Len())

	clk.advance(2 * time.Minute)
	ok, _, err := l.Allow(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, l.Len(), "only the blocked login may survive")

	ok, _, _ = l.Allow(ctx, "alice")
	require.False(t, ok)

	clk.advance(5 * time.Minute)
	_, _, _ = l.Allow(ctx, "bob")
	require.Equal(t, 0, l.Len())
}

func TestMemory_ReblocksAfterExpiryInsideWindow(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemory(10*time.Minute, 3, time.Minute)
	l.now = clk.now
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		blocked, _, _ := l.Failure(ctx, "alice")
		require.False(t, blocked)
	}
	blocked, _, _ := l.Failure(ctx, "alice")
	require.True(t, blocked)

	clk.advance(2 * time.Minute)
	ok, _, _ := l.Allow(ctx, "alice")
	require.True(t, ok, "block has expired")

	blocked, retry, err := l.Failure(ctx, "alice")
	require.NoError(t, err)
	require.True(t, blocked, "count survives the block while inside the window")
	require.Equal(t, time.Minute, retry)

	// outside the window the count starts over
	clk.advance(11 * time.Minute)
	blocked, _, _ = l.Failure(ctx, "alice")
	require.False(t, blocked)
}
