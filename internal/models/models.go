package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog product as seen by order placement.
// Quantities are kilograms.
type Product struct {
	ID                int64               `db:"id" json:"id"`
	Name              string              `db:"name" json:"name"`
	ImageURL          string              `db:"image_url" json:"image_url"`
	Price             decimal.Decimal     `db:"price" json:"price"`
	WholesalePrice    decimal.NullDecimal `db:"wholesale_price" json:"wholesale_price"`
	WholesaleMOQ      decimal.NullDecimal `db:"wholesale_moq" json:"wholesale_moq"`
	DiscountPercent   decimal.NullDecimal `db:"discount_percent" json:"discount_percent"`
	StockQuantity     decimal.Decimal     `db:"stock_quantity" json:"stock_quantity"`
	LowStockThreshold decimal.Decimal     `db:"low_stock_threshold" json:"low_stock_threshold"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}

// Order represents a customer order header
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status          OrderStatus     `db:"status" json:"status"`
	DeliveryAddress string          `db:"delivery_address" json:"delivery_address"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// OrderItem is one priced line of an order. PriceAtPurchase is written once.
type OrderItem struct {
	ID              int64           `db:"id" json:"id"`
	OrderID         int64           `db:"order_id" json:"order_id"`
	ProductID       int64           `db:"product_id" json:"product_id"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	PriceAtPurchase decimal.Decimal `db:"price_at_purchase" json:"price_at_purchase"`
}

// OrderSummary is an order joined with the buyer's display name
type OrderSummary struct {
	Order
	UserName string `db:"user_name" json:"user_name"`
}

// OrderItemDetail is an order item joined with product display fields
type OrderItemDetail struct {
	OrderItem
	ProductName  string `db:"product_name" json:"product_name"`
	ProductImage string `db:"product_image" json:"product_image"`
}

// OrderDetail is an order with its line items
type OrderDetail struct {
	Order
	Items []OrderItemDetail `json:"items"`
}

// DailyRevenue is one point of the revenue series
type DailyRevenue struct {
	Date    string          `db:"date" json:"date"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
}

// CartLine is a client-supplied product/quantity pair. Never persisted.
type CartLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// BuyerClass selects the pricing path
type BuyerClass string

const (
	BuyerRetail    BuyerClass = "retail"
	BuyerWholesale BuyerClass = "wholesale"
)

// Role is the role flag supplied by the auth collaborator
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleWholesale Role = "wholesale"
	RoleAdmin     Role = "admin"
)

// Principal is the authenticated caller, passed explicitly into every operation.
type Principal struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the principal may use admin operations
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// BuyerClass derives the pricing class from the role.
func (p Principal) BuyerClass() BuyerClass {
	if p.Role == RoleWholesale {
		return BuyerWholesale
	}
	return BuyerRetail
}
