package cart

import (
	"context"
	"sync"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// StorageKey is the single fixed identifier the cart document is persisted
// under, regardless of backend.
const StorageKey = "storefront:cart"

// Persister stores the cart document durably. Saves happen write-through
// after every mutation, in mutation order.
type Persister interface {
	Save(ctx context.Context, items []models.CartItem) error
	Load(ctx context.Context) ([]models.CartItem, error)
	Delete(ctx context.Context) error
}

// Store is the authoritative in-memory representation of the user's
// selection, mirrored to a Persister after every mutation. There is no
// server-side cart; if a persist write fails the in-memory state stays
// authoritative for the rest of the session.
type Store struct {
	persister Persister
	logger    *zap.Logger

	mu    sync.Mutex
	items []models.CartItem
}

// NewStore creates an empty cart store backed by the given persister.
func NewStore(persister Persister) *Store {
	return &Store{
		persister: persister,
		logger:    util.GetLogger(),
	}
}

// Load rehydrates the cart from durable storage. Missing or unreadable
// stored state yields an empty cart; it is logged, never fatal.
func (s *Store) Load(ctx context.Context) {
	items, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("Failed to load persisted cart, starting empty", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	util.CartItems.Set(float64(len(items)))
	s.logger.Info("Cart rehydrated", zap.Int("line_items", len(items)))
}

// Add puts one unit of the product into the cart. If a line item for the
// product already exists its quantity is incremented; otherwise a new line
// item is appended with a snapshot of the product's display fields. No
// stock ceiling is enforced here: callers check the catalog before adding.
func (s *Store) Add(ctx context.Context, product *models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ProductID == product.ID {
			s.items[i].Quantity++
			s.persistLocked(ctx, "add")
			return
		}
	}

	s.items = append(s.items, models.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Brand:     product.Brand,
		Price:     product.Price,
		ImageData: product.ImageData,
		Quantity:  1,
	})
	s.persistLocked(ctx, "add")
}

// SetQuantity overwrites a line item's quantity. A quantity of zero or less
// removes the line item; quantities never persist at or below zero.
func (s *Store) SetQuantity(ctx context.Context, productID int64, quantity int) {
	if quantity <= 0 {
		s.Remove(ctx, productID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items[i].Quantity = quantity
			s.persistLocked(ctx, "set_quantity")
			return
		}
	}
}

// Remove deletes the line item for the product; no-op if absent.
func (s *Store) Remove(ctx context.Context, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persistLocked(ctx, "remove")
			return
		}
	}
}

// Clear empties the cart and erases the persisted copy. It is only called
// explicitly, or after a checkout the backend has confirmed.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	util.CartItems.Set(0)

	if err := s.persister.Delete(ctx); err != nil {
		util.CartPersistFailures.Inc()
		s.logger.Warn("Failed to erase persisted cart", zap.Error(err))
	}
}

// Total returns the sum of price times quantity across line items. It is
// recomputed on every call rather than cached.
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for i := range s.items {
		total += s.items[i].Price * float64(s.items[i].Quantity)
	}
	return total
}

// Items returns a copy of the current line items in insertion order.
func (s *Store) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of line items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Quantity returns the quantity for a product, zero if absent.
func (s *Store) Quantity(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ProductID == productID {
			return s.items[i].Quantity
		}
	}
	return 0
}

// persistLocked writes the current items through to durable storage. Called
// with s.mu held so writes go out in mutation order. A failed write is
// surfaced as a warning and counted; the mutation itself stands.
func (s *Store) persistLocked(ctx context.Context, op string) {
	util.CartMutationsTotal.WithLabelValues(op).Inc()
	util.CartItems.Set(float64(len(s.items)))

	if err := s.persister.Save(ctx, s.items); err != nil {
		util.CartPersistFailures.Inc()
		s.logger.Warn("Failed to persist cart, in-memory state remains authoritative",
			zap.String("op", op),
			zap.Error(err))
	}
}
