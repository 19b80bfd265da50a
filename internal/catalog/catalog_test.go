package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/backend"
	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() []models.Product {
	return []models.Product{
		{ID: 1, Name: "Laptop", Brand: "Acme", Price: 999, Category: "Laptop", StockQuantity: 5, ProductAvailable: true},
		{ID: 2, Name: "Headphone", Brand: "Acme", Price: 99, Category: "Headphone", StockQuantity: 0, ProductAvailable: true},
		{ID: 3, Name: "Retired", Brand: "Acme", Price: 10, Category: "Toys", StockQuantity: 3, ProductAvailable: false},
	}
}

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStore(backend.NewClient(srv.URL, 5*time.Second))
}

func TestRefreshReplacesCache(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		_ = json.NewEncoder(w).Encode(testProducts())
	})

	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 3, store.Len())
	assert.Empty(t, store.Err())
	assert.Equal(t, uint64(1), store.Version())

	p, ok := store.Product(1)
	require.True(t, ok)
	assert.Equal(t, "Laptop", p.Name)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestRefreshFailureSetsErrorState(t *testing.T) {
	calls := 0
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(testProducts())
	})

	err := store.Refresh(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, store.Err())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, uint64(0), store.Version())

	// The error state persists until the next manual refresh clears it.
	assert.NotEmpty(t, store.Err())

	require.NoError(t, store.Refresh(context.Background()))
	assert.Empty(t, store.Err())
	assert.Equal(t, 3, store.Len())
}

func TestRefreshFailureKeepsPreviousCache(t *testing.T) {
	calls := 0
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(testProducts())
	})

	ctx := context.Background()
	require.NoError(t, store.Refresh(ctx))
	require.Error(t, store.Refresh(ctx))

	assert.Equal(t, 3, store.Len())
	assert.NotEmpty(t, store.Err())
	assert.Equal(t, uint64(1), store.Version())
}

func TestAdjustStock(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testProducts())
	})
	require.NoError(t, store.Refresh(context.Background()))

	store.AdjustStock(1, 4)
	p, ok := store.Product(1)
	require.True(t, ok)
	assert.Equal(t, 4, p.StockQuantity)
}

func TestAdjustStockUnknownProductIsNoop(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testProducts())
	})
	require.NoError(t, store.Refresh(context.Background()))

	assert.NotPanics(t, func() {
		store.AdjustStock(999, 1)
	})
	assert.Equal(t, 3, store.Len())
}

func TestAdjustStockIsLocalOnly(t *testing.T) {
	requests := 0
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		_ = json.NewEncoder(w).Encode(testProducts())
	})
	require.NoError(t, store.Refresh(context.Background()))

	store.AdjustStock(1, 2)
	assert.Equal(t, 1, requests)

	// The next refresh overwrites the local correction with server truth.
	require.NoError(t, store.Refresh(context.Background()))
	p, _ := store.Product(1)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestProductsReturnsCopies(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testProducts())
	})
	require.NoError(t, store.Refresh(context.Background()))

	products := store.Products()
	products[0].StockQuantity = 0

	p, _ := store.Product(1)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestSearch(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/search":
			require.Equal(t, "laptop", r.URL.Query().Get("keyword"))
			_ = json.NewEncoder(w).Encode(testProducts()[:1])
		default:
			_ = json.NewEncoder(w).Encode(testProducts())
		}
	})

	results, err := store.Search(context.Background(), "laptop")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)

	// Search results never enter the cache.
	assert.Equal(t, 0, store.Len())
}

func TestPurchasable(t *testing.T) {
	products := testProducts()

	assert.True(t, products[0].Purchasable())
	assert.False(t, products[1].Purchasable(), "zero stock is not purchasable")
	assert.False(t, products[2].Purchasable(), "unavailable product is not purchasable even with stock")
}
