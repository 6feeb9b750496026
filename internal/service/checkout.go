package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-api/internal/dto"
	"github.com/flicky/go-checkout-api/internal/payment"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMixedCarts     = errors.New("cart items must belong to a single cart")
	ErrNegativePrice  = errors.New("item price must not be negative")
	ErrPaymentGateway = errors.New("payment gateway failure")
)

var minorUnitFactor = decimal.NewFromInt(100)

type CheckoutService struct {
	gateway payment.Gateway
	log     *slog.Logger
}

func NewCheckoutService(gateway payment.Gateway, log *slog.Logger) *CheckoutService {
	return &CheckoutService{gateway: gateway, log: log}
}

// CreateSession validates the checkout request and creates a hosted payment
// session. The user, cart, and shipping address are attached as session
// metadata: that bag is the only channel carrying cart context across the
// asynchronous gap to the completion callback.
func (s *CheckoutService) CreateSession(ctx context.Context, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}
	if len(req.CartItems) == 0 {
		return nil, ErrEmptyCart
	}

	cartID := req.CartItems[0].CartID
	total := decimal.Zero
	lineItems := make([]payment.LineItem, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		if item.CartID != cartID {
			return nil, fmt.Errorf("%w: got %s and %s", ErrMixedCarts, cartID, item.CartID)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
		if item.Price.IsNegative() {
			return nil, fmt.Errorf("%w: product %s", ErrNegativePrice, item.ProductID)
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lineItems = append(lineItems, payment.LineItem{
			Name:        item.Name,
			Description: item.Description,
			UnitAmount:  item.Price.Mul(minorUnitFactor).Round(0).IntPart(),
			Quantity:    int64(item.Quantity),
		})
	}

	address, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("serialize shipping address: %w", err)
	}

	// Deterministic reference for the client; the durable order id is
	// assigned when the completion callback is processed.
	orderRef := uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.UserEmail+req.UserID))

	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.SessionParams{
		LineItems:         lineItems,
		CustomerEmail:     req.UserEmail,
		ClientReferenceID: orderRef.String(),
		Metadata: map[string]string{
			payment.MetadataUserID:  req.UserID,
			payment.MetadataCartID:  cartID.String(),
			payment.MetadataAddress: string(address),
		},
	})
	if err != nil {
		s.log.Error("create checkout session",
			slog.String("user_id", req.UserID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	s.log.Info("checkout session created",
		slog.String("session_id", sess.ID),
		slog.String("user_id", req.UserID),
		slog.String("cart_id", cartID.String()),
		slog.String("total_amount", total.String()))

	return &dto.CheckoutResponse{
		Success:     true,
		SessionID:   sess.ID,
		SessionURL:  sess.URL,
		OrderID:     orderRef.String(),
		TotalAmount: total,
		Orders:      req.CartItems,
	}, nil
}

// GetSessionStatus polls the gateway for the payment state of a session.
func (s *CheckoutService) GetSessionStatus(ctx context.Context, sessionID string) (*dto.SessionStatusResponse, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	return &dto.SessionStatusResponse{
		Status:            sess.PaymentStatus,
		PaymentIntentID:   sess.PaymentIntentID,
		AmountTotal:       sess.AmountTotal,
		CustomerEmail:     sess.CustomerEmail,
		CustomerName:      sess.CustomerName,
		Metadata:          sess.Metadata,
		ClientReferenceID: sess.ClientReferenceID,
	}, nil
}
