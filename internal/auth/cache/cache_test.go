package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenCache_SetGet(t *testing.T) {
	c := New(DefaultSlidingWindow)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(time.Hour))

	got, ok := c.Get("refresh", "user-1")
	require.True(t, ok)
	require.Equal(t, "digest-1", got)
}

func TestTokenCache_MissOnUnknownKey(t *testing.T) {
	c := New(DefaultSlidingWindow)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(time.Hour))

	_, ok := c.Get("refresh", "user-2")
	require.False(t, ok)

	_, ok = c.Get("mfa_login", "user-1")
	require.False(t, ok)
}

func TestTokenCache_AbsoluteExpiry(t *testing.T) {
	c := New(DefaultSlidingWindow)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(-time.Second))

	_, ok := c.Get("refresh", "user-1")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestTokenCache_SlidingExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(time.Hour))

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("refresh", "user-1")
	require.False(t, ok)
}

func TestTokenCache_AccessRefreshesSlidingWindow(t *testing.T) {
	c := New(50 * time.Millisecond)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(time.Hour))

	// Keep touching the entry more often than the sliding window; it must
	// stay alive well beyond a single window.
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		_, ok := c.Get("refresh", "user-1")
		require.True(t, ok)
	}
}

func TestTokenCache_SlidingNeverOutlivesAbsolute(t *testing.T) {
	c := New(time.Hour)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(30*time.Millisecond))

	_, ok := c.Get("refresh", "user-1")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("refresh", "user-1")
	require.False(t, ok)
}

func TestTokenCache_Remove(t *testing.T) {
	c := New(DefaultSlidingWindow)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(time.Hour))
	c.Remove("refresh", "user-1")

	_, ok := c.Get("refresh", "user-1")
	require.False(t, ok)
}

func TestTokenCache_Overwrite(t *testing.T) {
	c := New(DefaultSlidingWindow)
	defer c.Close()

	c.Set("refresh", "user-1", "digest-1", time.Now().Add(time.Hour))
	c.Set("refresh", "user-1", "digest-2", time.Now().Add(time.Hour))

	got, ok := c.Get("refresh", "user-1")
	require.True(t, ok)
	require.Equal(t, "digest-2", got)
	require.Equal(t, 1, c.Len())
}
