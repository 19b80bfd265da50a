package catalog

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/backend"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Store caches the product catalog fetched from the backend API. It is the
// single writer of local stock corrections: when the cart takes a unit, the
// presentation layer adjusts the cached stock immediately instead of waiting
// on a server round trip. Those corrections can drift from server truth
// until the next Refresh, which replaces the cache wholesale.
type Store struct {
	client *backend.Client
	logger *zap.Logger

	mu       sync.RWMutex
	products []models.Product
	version  uint64
	errMsg   string
}

// NewStore creates an empty catalog store.
func NewStore(client *backend.Client) *Store {
	return &Store{
		client: client,
		logger: util.GetLogger(),
	}
}

// Refresh fetches the full product list and replaces the cached collection.
// A failed fetch sets a persistent error state readable via Err and leaves
// the previous cache in place; it never propagates past this boundary as a
// panic. Overlapping refreshes are not guarded: the last response to arrive
// wins, regardless of request order.
func (s *Store) Refresh(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "catalog.Refresh")
	defer span.End()

	start := time.Now()
	products, err := s.client.ListProducts(ctx)
	util.CatalogRefreshLatency.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.errMsg = err.Error()
		util.CatalogRefreshTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Catalog refresh failed", zap.Error(err))
		return err
	}

	s.products = products
	s.version++
	s.errMsg = ""
	util.CatalogRefreshTotal.WithLabelValues("ok").Inc()
	util.CatalogSize.Set(float64(len(products)))
	s.logger.Info("Catalog refreshed",
		zap.Int("products", len(products)),
		zap.Uint64("version", s.version))
	return nil
}

// Products returns a copy of the cached product list.
func (s *Store) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Product returns a copy of the cached product with the given id.
func (s *Store) Product(id int64) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.products {
		if s.products[i].ID == id {
			return s.products[i], true
		}
	}
	return models.Product{}, false
}

// AdjustStock overwrites the cached stock quantity for a product. This is a
// client-local optimistic correction only; it does not call the backend.
// Unknown product ids are a no-op.
func (s *Store) AdjustStock(productID int64, newQuantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		if s.products[i].ID == productID {
			s.products[i].StockQuantity = newQuantity
			s.logger.Debug("Stock adjusted locally",
				zap.Int64("product_id", productID),
				zap.Int("stock", newQuantity))
			return
		}
	}
}

// Search queries the backend for products matching a keyword. Results are
// returned directly and never merged into the cache; the cache holds only
// the full listing.
func (s *Store) Search(ctx context.Context, keyword string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "catalog.Search")
	defer span.End()

	return s.client.SearchProducts(ctx, keyword)
}

// Err returns the error message of the last failed refresh, or "" after a
// successful one. It persists until the next Refresh.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Version returns the snapshot version, incremented on every successful
// refresh. Callers holding product copies can use it to detect replacement.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of cached products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
