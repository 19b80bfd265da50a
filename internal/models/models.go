package models

// Product is one catalog record as served by the backend API.
type Product struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Brand            string  `json:"brand"`
	Description      string  `json:"description"`
	Price            float64 `json:"price"`
	Category         string  `json:"category"`
	ReleaseDate      string  `json:"releaseDate,omitempty"`
	StockQuantity    int     `json:"stockQuantity"`
	ProductAvailable bool    `json:"productAvailable"`
	ImageData        string  `json:"imageData,omitempty"`
	ImageName        string  `json:"imageName,omitempty"`
	ImageType        string  `json:"imageType,omitempty"`
}

// Purchasable reports whether the product can be added to a cart:
// it must be marked available and have stock on hand.
func (p *Product) Purchasable() bool {
	return p.ProductAvailable && p.StockQuantity > 0
}

// Product categories
var Categories = []string{
	"Laptop",
	"Headphone",
	"Mobile",
	"Electronics",
	"Toys",
	"Fashion",
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// CartItem is one cart line item: a snapshot of the product's display
// fields taken at add time, plus the selected quantity.
type CartItem struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Brand     string  `json:"brand"`
	Price     float64 `json:"price"`
	ImageData string  `json:"imageData,omitempty"`
	Quantity  int     `json:"quantity"`
}

// OrderItemRequest is one line of an order submission.
type OrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// PlaceOrderRequest is the order-placement body. Prices are deliberately
// omitted: the backend resolves current prices and validates stock.
type PlaceOrderRequest struct {
	CustomerName string             `json:"customerName"`
	Email        string             `json:"email"`
	Items        []OrderItemRequest `json:"items"`
}

// OrderConfirmation is the backend's response to a successful placement.
type OrderConfirmation struct {
	OrderID      string  `json:"orderId"`
	CustomerName string  `json:"customerName"`
	Email        string  `json:"email"`
	Status       string  `json:"status"`
	TotalAmount  float64 `json:"totalAmount,omitempty"`
}

// Order is one entry of the backend's order history.
type Order struct {
	OrderID      string      `json:"orderId"`
	CustomerName string      `json:"customerName"`
	Email        string      `json:"email"`
	Status       string      `json:"status"`
	OrderDate    string      `json:"orderDate"`
	Items        []OrderItem `json:"items"`
}

// OrderItem is one fulfilled line of a placed order.
type OrderItem struct {
	ProductID  int64   `json:"productId"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

// Order statuses
const (
	OrderStatusPlaced    = "PLACED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)
