package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
}

// --- Checkout ---

type CheckoutItem struct {
	ProductID      uuid.UUID       `json:"product_id" binding:"required"`
	CartID         uuid.UUID       `json:"cart_id" binding:"required"`
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	Quantity       int             `json:"quantity" binding:"required,min=1"`
	Price          decimal.Decimal `json:"price"`
	SelectedColor  string          `json:"selected_color"`
	SelectedSize   string          `json:"selected_size"`
	DeliveryOption string          `json:"delivery_option"`
}

type CheckoutRequest struct {
	UserID          string         `json:"userId" binding:"required"`
	CartItems       []CheckoutItem `json:"cartItems" binding:"required,min=1,dive"`
	UserEmail       string         `json:"userEmail" binding:"required,email"`
	UserName        string         `json:"userName"`
	ShippingAddress model.Address  `json:"shippingAddress"`
}

type CheckoutResponse struct {
	Success     bool            `json:"success"`
	SessionID   string          `json:"sessionId"`
	SessionURL  string          `json:"sessionUrl"`
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Orders      []CheckoutItem  `json:"orders"`
}

type SessionStatusResponse struct {
	Status            string            `json:"status"`
	PaymentIntentID   string            `json:"paymentIntentId,omitempty"`
	AmountTotal       int64             `json:"amountTotal"`
	CustomerEmail     string            `json:"customerEmail,omitempty"`
	CustomerName      string            `json:"customerName,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	ClientReferenceID string            `json:"clientReferenceId,omitempty"`
}

// --- Orders ---

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	StripeSessionID string              `json:"stripe_session_id"`
	Status          model.OrderStatus   `json:"status"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	ShippingAddress *model.Address      `json:"shipping_address,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type OrderItemResponse struct {
	ID             uuid.UUID             `json:"id"`
	ProductID      uuid.UUID             `json:"product_id"`
	Quantity       int                   `json:"quantity"`
	Price          decimal.Decimal       `json:"price"`
	SelectedColor  string                `json:"selected_color,omitempty"`
	SelectedSize   string                `json:"selected_size,omitempty"`
	DeliveryOption string                `json:"delivery_option,omitempty"`
	Status         model.OrderItemStatus `json:"status"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}
