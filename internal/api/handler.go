package api

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/backend"
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers for the presentation layer.
type Handler struct {
	catalog     *catalog.Store
	cart        *cart.Store
	coordinator *checkout.Coordinator
	backend     *backend.Client
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalogStore *catalog.Store, cartStore *cart.Store, coordinator *checkout.Coordinator, backendClient *backend.Client) *Handler {
	return &Handler{
		catalog:     catalogStore,
		cart:        cartStore,
		coordinator: coordinator,
		backend:     backendClient,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/catalog", h.getCatalog)
		v1.GET("/catalog/search", h.searchCatalog)
		v1.GET("/catalog/:id", h.getProduct)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:id", h.setCartItemQuantity)
		v1.DELETE("/cart/items/:id", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.POST("/checkout", h.submitCheckout)
		v1.GET("/orders", h.listOrders)

		v1.POST("/products", h.createProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getCatalog returns the cached catalog, refreshing first when asked.
// A failed refresh still returns the previous cache plus the error state.
func (h *Handler) getCatalog(c *gin.Context) {
	if c.Query("refresh") == "1" || h.catalog.Len() == 0 {
		_ = h.catalog.Refresh(c.Request.Context())
	}

	c.JSON(http.StatusOK, gin.H{
		"products": h.catalog.Products(),
		"error":    h.catalog.Err(),
	})
}

// searchCatalog proxies a free-text product search to the backend.
func (h *Handler) searchCatalog(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing keyword"})
		return
	}

	products, err := h.catalog.Search(c.Request.Context(), keyword)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Search failed, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct fetches a fresh product detail from the backend.
func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.backend.GetProduct(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// getCart returns the current line items and total.
func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items": h.cart.Items(),
		"total": h.cart.Total(),
	})
}

type addCartItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
}

// addCartItem adds one unit of a product to the cart. The stock ceiling is
// enforced here, against the cached catalog, before the cart is touched;
// the cached stock is then decremented optimistically so a second add
// without a catalog refresh sees the reduced count.
func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	product, ok := h.catalog.Product(req.ProductID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not in catalog"})
		return
	}

	if !product.Purchasable() {
		c.JSON(http.StatusConflict, gin.H{"error": "Product is out of stock or unavailable"})
		return
	}

	h.cart.Add(c.Request.Context(), &product)
	h.catalog.AdjustStock(product.ID, product.StockQuantity-1)

	c.JSON(http.StatusOK, gin.H{
		"items": h.cart.Items(),
		"total": h.cart.Total(),
	})
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// setCartItemQuantity overwrites a line item's quantity. Zero or negative
// removes the line. Increases draw down the cached stock and are refused
// once it is exhausted; decreases give it back, never more than the line
// held. Products without a line item are rejected so the cached stock is
// only ever adjusted alongside an actual cart change.
func (h *Handler) setCartItemQuantity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	current := h.cart.Quantity(id)
	if current == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not in cart"})
		return
	}

	target := req.Quantity
	if target < 0 {
		target = 0
	}
	delta := target - current

	if product, ok := h.catalog.Product(id); ok && delta != 0 {
		if delta > 0 && product.StockQuantity < delta {
			c.JSON(http.StatusConflict, gin.H{"error": "Not enough stock for requested quantity"})
			return
		}
		h.catalog.AdjustStock(id, product.StockQuantity-delta)
	}

	h.cart.SetQuantity(c.Request.Context(), id, req.Quantity)

	c.JSON(http.StatusOK, gin.H{
		"items": h.cart.Items(),
		"total": h.cart.Total(),
	})
}

// removeCartItem deletes a line item; no-op if absent. The removed
// quantity goes back into the cached stock, same as setting it to zero.
func (h *Handler) removeCartItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if current := h.cart.Quantity(id); current > 0 {
		if product, ok := h.catalog.Product(id); ok {
			h.catalog.AdjustStock(id, product.StockQuantity+current)
		}
	}

	h.cart.Remove(c.Request.Context(), id)

	c.JSON(http.StatusOK, gin.H{
		"items": h.cart.Items(),
		"total": h.cart.Total(),
	})
}

// clearCart empties the cart explicitly.
func (h *Handler) clearCart(c *gin.Context) {
	h.cart.Clear(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"items": []models.CartItem{}, "total": 0})
}

type checkoutRequest struct {
	CustomerName string `json:"customerName" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
}

// submitCheckout places the order. The cart is cleared only after the
// backend has confirmed; every failure leaves it untouched so the user can
// adjust quantities and resubmit.
func (h *Handler) submitCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	confirmation, err := h.coordinator.Submit(c.Request.Context(), req.CustomerName, req.Email, h.cart.Items())
	if err != nil {
		var conflict *backend.StockConflictError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, checkout.ErrSubmissionInFlight):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to place order. Please try again."})
		}
		return
	}

	h.cart.Clear(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{"order": confirmation})
}

// listOrders proxies the order history from the backend.
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.backend.ListOrders(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to fetch orders", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch orders. Please try again later."})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// createProduct proxies a multipart product upload to the backend.
func (h *Handler) createProduct(c *gin.Context) {
	product, imageName, image, ok := h.bindProductForm(c)
	if !ok {
		return
	}
	defer func() {
		if image != nil {
			image.Close()
		}
	}()

	created, err := h.backend.CreateProduct(c.Request.Context(), product, imageName, image)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// updateProduct proxies a multipart product update to the backend.
func (h *Handler) updateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, imageName, image, ok := h.bindProductForm(c)
	if !ok {
		return
	}
	defer func() {
		if image != nil {
			image.Close()
		}
	}()

	updated, err := h.backend.UpdateProduct(c.Request.Context(), id, product, imageName, image)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to update product"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// deleteProduct proxies a product deletion to the backend.
func (h *Handler) deleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := h.backend.DeleteProduct(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to delete product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// bindProductForm decodes the "product" JSON form field and the optional
// "imageFile" part, rejecting invalid metadata before any backend call.
func (h *Handler) bindProductForm(c *gin.Context) (*models.Product, string, multipart.File, bool) {
	raw := c.PostForm("product")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing product metadata"})
		return nil, "", nil, false
	}

	var product models.Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product metadata", "details": err.Error()})
		return nil, "", nil, false
	}

	fieldErrors := map[string]string{}
	if product.Name == "" {
		fieldErrors["name"] = "required"
	}
	if product.Brand == "" {
		fieldErrors["brand"] = "required"
	}
	if product.Price < 0 {
		fieldErrors["price"] = "must not be negative"
	}
	if product.StockQuantity < 0 {
		fieldErrors["stockQuantity"] = "must not be negative"
	}
	if !models.ValidCategory(product.Category) {
		fieldErrors["category"] = "unknown category"
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fieldErrors})
		return nil, "", nil, false
	}

	fileHeader, err := c.FormFile("imageFile")
	if err != nil {
		return &product, "", nil, true
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable image upload"})
		return nil, "", nil, false
	}

	return &product, fileHeader.Filename, file, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
