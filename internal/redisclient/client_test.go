package redisclient

import (
	"context"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRoundTrip(t *testing.T) {
	// Integration test - requires a running Redis. In real scenarios, use
	// testcontainers or miniredis.
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Delete(ctx))

	items := []models.CartItem{
		{ProductID: 1, Name: "p1", Price: 100, Quantity: 2},
		{ProductID: 2, Name: "p2", Price: 50, Quantity: 1},
	}

	require.NoError(t, client.Save(ctx, items))

	loaded, err := client.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, loaded)

	require.NoError(t, client.Delete(ctx))

	loaded, err = client.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
