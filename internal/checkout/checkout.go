package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront-service/internal/backend"
	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of the most recent submission attempt.
type State string

const (
	StateIdle           State = "IDLE"
	StateSubmitting     State = "SUBMITTING"
	StateSucceeded      State = "SUCCEEDED"
	StateConflictFailed State = "CONFLICT_FAILED"
	StateOtherFailed    State = "OTHER_FAILED"
)

var (
	// ErrSubmissionInFlight is returned when Submit is called while a
	// previous submission is still unresolved. At most one order is in
	// flight per coordinator.
	ErrSubmissionInFlight = errors.New("an order submission is already in flight")

	// ErrEmptyCart is returned before any network call when the snapshot
	// has no line items.
	ErrEmptyCart = errors.New("cannot place an order with an empty cart")
)

// OrderPlacer submits an order to the remote API.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *models.PlaceOrderRequest, idempotencyKey string) (*models.OrderConfirmation, error)
}

// Coordinator turns a cart snapshot plus customer identity into an order
// submission and interprets the result. It never mutates the cart itself:
// the caller clears the cart only after a confirmed success, so failure
// always leaves the user's selection intact for adjustment and retry.
type Coordinator struct {
	placer    OrderPlacer
	publisher *broker.EventPublisher
	logger    *zap.Logger

	mu          sync.Mutex
	state       State
	conflictMsg string
}

// NewCoordinator creates an idle coordinator. publisher may be nil.
func NewCoordinator(placer OrderPlacer, publisher *broker.EventPublisher) *Coordinator {
	return &Coordinator{
		placer:    placer,
		publisher: publisher,
		logger:    util.GetLogger(),
		state:     StateIdle,
	}
}

// Submit builds an order from the snapshot and sends it. The request
// carries only product ids and quantities; the backend is authoritative for
// pricing and stock. There are no automatic retries: every failure waits
// for an explicit resubmission.
func (c *Coordinator) Submit(ctx context.Context, customerName, email string, snapshot []models.CartItem) (*models.OrderConfirmation, error) {
	ctx, span := util.StartSpan(ctx, "checkout.Submit")
	defer span.End()

	if len(snapshot) == 0 {
		return nil, ErrEmptyCart
	}

	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	c.state = StateSubmitting
	c.conflictMsg = ""
	c.mu.Unlock()

	util.CheckoutAttemptsTotal.Inc()

	items := make([]models.OrderItemRequest, 0, len(snapshot))
	for _, line := range snapshot {
		items = append(items, models.OrderItemRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	req := &models.PlaceOrderRequest{
		CustomerName: customerName,
		Email:        email,
		Items:        items,
	}

	start := time.Now()
	confirmation, err := c.placer.PlaceOrder(ctx, req, uuid.New().String())
	util.CheckoutLatency.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		var conflict *backend.StockConflictError
		if errors.As(err, &conflict) {
			c.state = StateConflictFailed
			c.conflictMsg = conflict.Message
			util.CheckoutFailedTotal.WithLabelValues("stock_conflict").Inc()
			c.logger.Info("Order rejected, insufficient stock",
				zap.String("message", conflict.Message))
			return nil, err
		}

		c.state = StateOtherFailed
		util.CheckoutFailedTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Order submission failed", zap.Error(err))
		return nil, err
	}

	c.state = StateSucceeded
	util.CheckoutSucceededTotal.Inc()
	c.logger.Info("Order confirmed",
		zap.String("order_id", confirmation.OrderID),
		zap.Int("line_items", len(items)))

	c.publishCompleted(ctx, confirmation, snapshot, items)

	return confirmation, nil
}

// State returns the state of the most recent submission attempt.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConflictMessage returns the server-supplied insufficient-stock message
// from the last conflict, or "" if the last attempt did not conflict.
func (c *Coordinator) ConflictMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conflictMsg
}

// publishCompleted emits a CheckoutCompleted event for downstream
// consumers. Publish failures are logged and never fail the checkout.
func (c *Coordinator) publishCompleted(ctx context.Context, confirmation *models.OrderConfirmation, snapshot []models.CartItem, items []models.OrderItemRequest) {
	if c.publisher == nil {
		return
	}

	var total float64
	for _, line := range snapshot {
		total += line.Price * float64(line.Quantity)
	}

	event := &models.CheckoutCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutCompleted,
			Timestamp: time.Now(),
		},
		OrderID:      confirmation.OrderID,
		CustomerName: confirmation.CustomerName,
		Email:        confirmation.Email,
		Total:        total,
		Items:        items,
	}

	if err := c.publisher.PublishCheckoutCompleted(ctx, event); err != nil {
		c.logger.Error("Failed to publish CheckoutCompleted event", zap.Error(err))
	}
}
