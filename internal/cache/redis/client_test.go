package redis

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	k := Key("timeseries", 3, "Weekly", "2024-01-01")

	assert.True(t, strings.HasPrefix(k, "sentience:timeseries:v3:"))
	assert.Equal(t, k, Key("timeseries", 3, "Weekly", "2024-01-01"))
	assert.NotEqual(t, k, Key("timeseries", 4, "Weekly", "2024-01-01"))
	assert.NotEqual(t, k, Key("kpis", 3, "Weekly", "2024-01-01"))
	assert.NotEqual(t, k, Key("timeseries", 3, "Weekly2024-01-01"))
}

// Runs against a live server when REDIS_ADDR is set.
func TestClient_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("REDIS_ADDR not set")
	}
	host, portStr, ok := strings.Cut(addr, ":")
	require.True(t, ok)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := NewClient(host, port, "", 0)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := Key("test", 1, t.Name())

	var got map[string]int
	hit, err := c.Get(ctx, "test", key, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "test", key, map[string]int{"a": 1}, time.Minute))
	hit, err = c.Get(ctx, "test", key, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]int{"a": 1}, got)

	require.NoError(t, c.InvalidateAll(ctx))
	hit, err = c.Get(ctx, "test", key, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
