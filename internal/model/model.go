package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type OrderItemStatus string

const OrderItemStatusPending OrderItemStatus = "pending"

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	Stock       int
	SoldItems   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectivePrice is the unit price used for billing: the sale price when one
// is set, otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

type Cart struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Items  []CartItem
}

type CartItem struct {
	ID             uuid.UUID
	CartID         uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	SelectedColor  string
	SelectedSize   string
	DeliveryOption string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CartLine is a cart item joined with its product, the pricing source of
// truth at order-creation time.
type CartLine struct {
	Item    CartItem
	Product Product
}

// Address is the shipping address snapshot stored on the order. It is
// serialized to JSON both for the orders table and for the checkout-session
// metadata bag, which only carries strings.
type Address struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	StripeSessionID string
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	ShippingAddress *Address
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	Price          decimal.Decimal
	SelectedColor  string
	SelectedSize   string
	DeliveryOption string
	Status         OrderItemStatus
	CreatedAt      time.Time
}

// OrderConfirmationMessage is published after a successful order creation and
// consumed by the notification worker.
type OrderConfirmationMessage struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserEmail string    `json:"user_email"`
	UserName  string    `json:"user_name,omitempty"`
}
