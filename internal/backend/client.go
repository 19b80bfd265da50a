package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"storefront-service/internal/models"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StockConflictError is returned by PlaceOrder when the backend rejects the
// order with HTTP 409 because requested quantities exceed available stock.
// Message carries the server-supplied human-readable description.
type StockConflictError struct {
	Message string
}

func (e *StockConflictError) Error() string {
	return e.Message
}

// Client consumes the remote storefront REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend API client with an instrumented transport.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ListProducts fetches the full product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.getJSON(ctx, "/products", &products); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// SearchProducts fetches products matching a free-text keyword.
func (c *Client) SearchProducts(ctx context.Context, keyword string) ([]models.Product, error) {
	path := "/products/search?keyword=" + url.QueryEscape(keyword)
	var products []models.Product
	if err := c.getJSON(ctx, path, &products); err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// GetProduct fetches a single product by ID.
func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := c.getJSON(ctx, fmt.Sprintf("/product/%d", id), &product); err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &product, nil
}

// CreateProduct uploads a new product as multipart form data: a JSON part
// named "product" plus an optional "imageFile" part.
func (c *Client) CreateProduct(ctx context.Context, product *models.Product, imageName string, image io.Reader) (*models.Product, error) {
	var created models.Product
	if err := c.sendMultipart(ctx, http.MethodPost, "/product", product, imageName, image, &created); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &created, nil
}

// UpdateProduct replaces a product's metadata and optionally its image.
func (c *Client) UpdateProduct(ctx context.Context, id int64, product *models.Product, imageName string, image io.Reader) (*models.Product, error) {
	var updated models.Product
	path := fmt.Sprintf("/product/%d", id)
	if err := c.sendMultipart(ctx, http.MethodPut, path, product, imageName, image, &updated); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	return &updated, nil
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+fmt.Sprintf("/product/%d", id), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to delete product %d: backend returned %d", id, resp.StatusCode)
	}
	return nil
}

// PlaceOrder submits an order. A 409 response is decoded into a
// *StockConflictError; any other non-2xx status is a generic error.
func (c *Client) PlaceOrder(ctx context.Context, order *models.PlaceOrderRequest, idempotencyKey string) (*models.OrderConfirmation, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders/place", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil, &StockConflictError{Message: decodeConflictMessage(resp.Body)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("order submission failed: backend returned %d", resp.StatusCode)
	}

	var confirmation models.OrderConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&confirmation); err != nil {
		return nil, fmt.Errorf("failed to decode order confirmation: %w", err)
	}
	return &confirmation, nil
}

// ListOrders fetches the order history with nested line items.
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.getJSON(ctx, "/orders", &orders); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) sendMultipart(ctx context.Context, method, path string, product *models.Product, imageName string, image io.Reader, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	productJSON, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="product"`)
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(productJSON); err != nil {
		return err
	}

	if image != nil {
		fw, err := mw.CreateFormFile("imageFile", imageName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(fw, image); err != nil {
			return fmt.Errorf("failed to copy image into request: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// decodeConflictMessage extracts the server-supplied insufficient-stock
// message from a 409 body. The backend reports it under "detail" or
// "message" depending on version.
func decodeConflictMessage(r io.Reader) string {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return "Product is out of stock. Please check your cart."
}
