// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, "nfosync:test:")
}

func TestRedisCache_SetGetRoundTrips(t *testing.T) {
	c := newTestRedisCache(t)

	c.Set("movie:1", map[string]any{"title": "Arrival", "year": float64(2016)}, time.Minute)

	got, ok := c.Get("movie:1")
	require.True(t, ok)

	want := map[string]any{"title": "Arrival", "year": float64(2016)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cached value mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisCache_GetMissingKeyReportsNotFound(t *testing.T) {
	c := newTestRedisCache(t)

	_, ok := c.Get("does-not-exist")
	require.False(t, ok)
}

func TestRedisCache_DeleteRemovesKey(t *testing.T) {
	c := newTestRedisCache(t)

	c.Set("k", "v", time.Minute)
	c.Delete("k")

	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestRedisCache_ClearRemovesOnlyPrefixedKeys(t *testing.T) {
	c := newTestRedisCache(t)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	require.False(t, okA)
	require.False(t, okB)
}

func TestRedisCache_TTLExpiresEntry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, "nfosync:test:")
	c.Set("k", "v", time.Second)

	mr.FastForward(2 * time.Second)

	_, ok := c.Get("k")
	require.False(t, ok)
}
