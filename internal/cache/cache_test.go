package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meganet/portal/internal/cache"
)

type entry struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

func set(t *testing.T, c *cache.Redis[entry], k string, v *entry) {
	t.Helper()
	stored, err := c.SetIfVersion(context.Background(), k, v, 0)
	require.NoError(t, err)
	require.True(t, stored)
}

func setup(t *testing.T, opts ...cache.Option) (*miniredis.Miniredis, *cache.Redis[entry]) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, cache.New[entry](client, opts...)
}

func TestSetGet(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	got, ok, err := c.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	set(t, c, "1", &entry{ID: 1, Text: "Is the VPN connected?"})

	got, ok, err = c.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entry{ID: 1, Text: "Is the VPN connected?"}, *got)
}

func TestPrefixAndTTL(t *testing.T) {
	mr, c := setup(t, cache.WithPrefix("test:step:"), cache.WithTTL(time.Minute))
	ctx := context.Background()

	set(t, c, "9", &entry{ID: 9})
	assert.True(t, mr.Exists("test:step:9"))
	assert.Equal(t, time.Minute, mr.TTL("test:step:9"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	set(t, c, "1", &entry{ID: 1})
	set(t, c, "2", &entry{ID: 2})
	require.NoError(t, c.Delete(ctx, "1", "2", "missing"))
	require.NoError(t, c.Delete(ctx))

	for _, k := range []string{"1", "2"} {
		_, ok, err := c.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
}

func TestCorruptValue(t *testing.T) {
	mr, c := setup(t)
	require.NoError(t, mr.Set("portal:bad", "{not json"))

	_, ok, err := c.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSetIfVersionRejectsFillOlderThanDelete(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	v, err := c.Version(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	// An authoring write invalidates the key while a reader holds version 0.
	require.NoError(t, c.Delete(ctx, "3"))

	stored, err := c.SetIfVersion(ctx, "3", &entry{ID: 3, Text: "stale"}, v)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, err := c.Get(ctx, "3")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err = c.Version(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	stored, err = c.SetIfVersion(ctx, "3", &entry{ID: 3, Text: "fresh"}, v)
	require.NoError(t, err)
	assert.True(t, stored)

	got, ok, err := c.Get(ctx, "3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Text)
}

func TestVersionKeysExpireWithTTL(t *testing.T) {
	mr, c := setup(t, cache.WithPrefix("test:step:"), cache.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, c.Delete(ctx, "4"))
	assert.True(t, mr.Exists("test:step:4:version"))
	assert.Equal(t, time.Minute, mr.TTL("test:step:4:version"))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := cache.Dial(context.Background(), addr, "", 0)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = cache.Dial(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
