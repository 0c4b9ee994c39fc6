package cache_test

import (
	"context"
	"testing"
	"time"

	"evento/internal/cache"
	"evento/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Once(t *testing.T) {
	url := testutil.SetupRedis(t)
	ctx := context.Background()

	c, err := cache.NewClient(url, "test:")
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Once(ctx, "webhook:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := c.Once(ctx, "webhook:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "second marker for the same key must be rejected")

	other, err := c.Once(ctx, "webhook:2", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, c.Forget(ctx, "webhook:1"))
	again, err := c.Once(ctx, "webhook:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := cache.NewClient("not a url", "")
	assert.Error(t, err)
}
