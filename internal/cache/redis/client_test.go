package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatinsight/chat-insight/internal/cache"
)

var _ cache.Cache = (*Client)(nil)

func TestNewRejectsBadURI(t *testing.T) {
	_, err := New("://nope", "p:")
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	uri := os.Getenv("TEST_REDIS_URI")
	if uri == "" {
		t.Skip("TEST_REDIS_URI not set")
	}

	c, err := New(uri, "test:"+uuid.NewString()+":")
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "metrics")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "metrics", []byte("v1"), time.Minute))
	val, ok, err := c.Get(ctx, "metrics")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", string(val))

	require.NoError(t, c.Delete(ctx, "metrics"))
	_, ok, err = c.Get(ctx, "metrics")
	require.NoError(t, err)
	assert.False(t, ok)
}
