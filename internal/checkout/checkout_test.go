package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-service/internal/backend"
	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlacer struct {
	mu       sync.Mutex
	requests []*models.PlaceOrderRequest
	keys     []string

	confirmation *models.OrderConfirmation
	err          error
	block        chan struct{}
}

func (p *stubPlacer) PlaceOrder(ctx context.Context, order *models.PlaceOrderRequest, idempotencyKey string) (*models.OrderConfirmation, error) {
	p.mu.Lock()
	p.requests = append(p.requests, order)
	p.keys = append(p.keys, idempotencyKey)
	p.mu.Unlock()

	if p.block != nil {
		<-p.block
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.confirmation, nil
}

func snapshot() []models.CartItem {
	return []models.CartItem{
		{ProductID: 1, Name: "p1", Price: 100, Quantity: 2},
		{ProductID: 2, Name: "p2", Price: 50, Quantity: 1},
	}
}

func TestSubmitSuccess(t *testing.T) {
	placer := &stubPlacer{
		confirmation: &models.OrderConfirmation{OrderID: "ord-1", Status: models.OrderStatusPlaced},
	}
	c := NewCoordinator(placer, nil)

	require.Equal(t, StateIdle, c.State())

	confirmation, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", snapshot())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", confirmation.OrderID)
	assert.Equal(t, StateSucceeded, c.State())

	// The request carries ids and quantities only, never prices.
	require.Len(t, placer.requests, 1)
	req := placer.requests[0]
	assert.Equal(t, "Jamie", req.CustomerName)
	assert.Equal(t, "jamie@example.com", req.Email)
	require.Len(t, req.Items, 2)
	assert.Equal(t, models.OrderItemRequest{ProductID: 1, Quantity: 2}, req.Items[0])
	assert.Equal(t, models.OrderItemRequest{ProductID: 2, Quantity: 1}, req.Items[1])

	assert.NotEmpty(t, placer.keys[0])
}

func TestSubmitStockConflict(t *testing.T) {
	placer := &stubPlacer{
		err: &backend.StockConflictError{Message: "Insufficient stock for p1"},
	}
	c := NewCoordinator(placer, nil)

	items := snapshot()
	_, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", items)
	require.Error(t, err)

	var conflict *backend.StockConflictError
	require.ErrorAs(t, err, &conflict)

	assert.Equal(t, StateConflictFailed, c.State())
	assert.Equal(t, "Insufficient stock for p1", c.ConflictMessage())

	// The snapshot the caller holds is untouched: same items, same quantities.
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestSubmitGenericFailure(t *testing.T) {
	placer := &stubPlacer{err: errors.New("connection refused")}
	c := NewCoordinator(placer, nil)

	_, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", snapshot())
	require.Error(t, err)
	assert.Equal(t, StateOtherFailed, c.State())
	assert.Empty(t, c.ConflictMessage())
}

func TestSubmitEmptyCart(t *testing.T) {
	placer := &stubPlacer{}
	c := NewCoordinator(placer, nil)

	_, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, placer.requests, "no network call for an empty cart")
}

func TestSubmitSingleFlight(t *testing.T) {
	placer := &stubPlacer{
		confirmation: &models.OrderConfirmation{OrderID: "ord-1"},
		block:        make(chan struct{}),
	}
	c := NewCoordinator(placer, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", snapshot())
		done <- err
	}()

	// Wait for the first submission to reach the in-flight state.
	require.Eventually(t, func() bool {
		return c.State() == StateSubmitting
	}, time.Second, time.Millisecond)

	_, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", snapshot())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(placer.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateSucceeded, c.State())

	require.Len(t, placer.requests, 1, "the rejected submission never hit the network")
}

func TestResubmitAfterFailure(t *testing.T) {
	placer := &stubPlacer{err: errors.New("boom")}
	c := NewCoordinator(placer, nil)

	_, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", snapshot())
	require.Error(t, err)
	require.Equal(t, StateOtherFailed, c.State())

	// No automatic retries: the next attempt is an explicit resubmission.
	placer.err = nil
	placer.confirmation = &models.OrderConfirmation{OrderID: "ord-2"}

	confirmation, err := c.Submit(context.Background(), "Jamie", "jamie@example.com", snapshot())
	require.NoError(t, err)
	assert.Equal(t, "ord-2", confirmation.OrderID)
	assert.Equal(t, StateSucceeded, c.State())
	assert.Len(t, placer.keys, 2)
	assert.NotEqual(t, placer.keys[0], placer.keys[1], "each attempt gets a fresh idempotency key")
}
