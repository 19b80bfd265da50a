package models

import "time"

// Event types
const (
	EventTypeCheckoutCompleted = "CHECKOUT_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutCompletedEvent is published after the backend confirms an order.
type CheckoutCompletedEvent struct {
	BaseEvent
	OrderID      string             `json:"order_id"`
	CustomerName string             `json:"customer_name"`
	Email        string             `json:"email"`
	Total        float64            `json:"total"`
	Items        []OrderItemRequest `json:"items"`
}
