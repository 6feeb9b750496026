package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

var (
	ErrMissingUserID    = errors.New("userId is required")
	ErrMissingCartID    = errors.New("cartId is required")
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrInvalidUserID    = errors.New("userId is not a valid id")
	ErrInvalidCartID    = errors.New("cartId is not a valid id")
	ErrNoCartItems      = errors.New("no cart items found for this cart")
	ErrMissingPrice     = errors.New("cart line has no usable price")
	ErrInvalidQuantity  = errors.New("cart line has a non-positive quantity")

	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
)

const confirmationQueue = "order.confirmations"

// CreateOrderInput carries the context recovered from a checkout-session
// completion callback.
type CreateOrderInput struct {
	UserID          string
	CartID          string
	SessionID       string
	Status          model.OrderStatus
	ShippingAddress *model.Address
	CustomerEmail   string
	CustomerName    string
}

type CreateOrderResult struct {
	Order          *model.Order
	Items          []model.OrderItem
	IsExisting     bool
	CartCleared    bool
	ClearedItemIDs []uuid.UUID
	EmailQueued    bool
}

type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	amqpCh      *amqp.Channel
	log         *slog.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	amqpCh *amqp.Channel,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		amqpCh:      amqpCh,
		log:         log,
	}
}

// CreateOrderFromSession idempotently materializes an order from the cart
// referenced by a payment-confirmation callback. For any session id the
// lifecycle is absent -> created; repeated or concurrent deliveries of the
// same callback resolve to the already-created order.
//
// The order and order-item writes are hard-fail: an error there surfaces to
// the caller and the sender's retry is absorbed by the idempotency guard.
// Everything after (sold counters, cart clearing, notification) is
// best-effort bookkeeping and only logged.
func (s *OrderService) CreateOrderFromSession(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if in.UserID == "" {
		return nil, ErrMissingUserID
	}
	if in.SessionID == "" {
		return nil, ErrMissingSessionID
	}
	if in.CartID == "" {
		return nil, ErrMissingCartID
	}
	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, in.UserID)
	}
	cartID, err := uuid.Parse(in.CartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCartID, in.CartID)
	}

	// Fast path for retried callbacks. This read is an optimization only;
	// the unique constraint below is what actually guarantees at most one
	// order per session.
	existing, err := s.orderRepo.GetBySessionID(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check existing order: %w", err)
	}
	if existing != nil {
		s.log.Info("order already exists for session",
			slog.String("session_id", in.SessionID), slog.String("order_id", existing.ID.String()))
		return &CreateOrderResult{Order: existing, Items: existing.Items, IsExisting: true}, nil
	}

	lines, err := s.cartRepo.ItemsWithProducts(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	if len(lines) == 0 {
		// Distinct from the duplicate case: the session has no order yet,
		// so an empty cart means it was cleared out of band or the data is
		// inconsistent.
		return nil, fmt.Errorf("%w: cart %s", ErrNoCartItems, cartID)
	}

	total := decimal.Zero
	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, line.Product.ID)
		}
		price := line.Product.EffectivePrice()
		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: product %s", ErrMissingPrice, line.Product.ID)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Item.Quantity))))
		items = append(items, model.OrderItem{
			ProductID:      line.Product.ID,
			Quantity:       line.Item.Quantity,
			Price:          price,
			SelectedColor:  line.Item.SelectedColor,
			SelectedSize:   line.Item.SelectedSize,
			DeliveryOption: line.Item.DeliveryOption,
			Status:         model.OrderItemStatusPending,
		})
	}

	status := in.Status
	if status == "" {
		status = model.OrderStatusProcessing
	}
	order := &model.Order{
		UserID:          userID,
		StripeSessionID: in.SessionID,
		TotalAmount:     total,
		Status:          status,
		ShippingAddress: in.ShippingAddress,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateSession) {
			// A concurrent delivery won the insert race. Return its order,
			// exactly as the fast path would have.
			winner, ferr := s.orderRepo.GetBySessionID(ctx, in.SessionID)
			if ferr != nil {
				return nil, fmt.Errorf("refetch order after duplicate session: %w", ferr)
			}
			if winner == nil {
				return nil, fmt.Errorf("duplicate session %s but no order found", in.SessionID)
			}
			s.log.Info("duplicate callback lost insert race",
				slog.String("session_id", in.SessionID), slog.String("order_id", winner.ID.String()))
			return &CreateOrderResult{Order: winner, Items: winner.Items, IsExisting: true}, nil
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.orderRepo.CreateItems(ctx, order.ID, items); err != nil {
		// The order row exists without items. The callback sender retries,
		// but the idempotency guard short-circuits it, so this surfaces as
		// an operational alert rather than self-healing.
		return nil, fmt.Errorf("create order items: %w", err)
	}
	order.Items = items

	result := &CreateOrderResult{Order: order, Items: items}

	// Soft-fail boundary: the order is durable from here on.
	s.incrementSoldCounters(ctx, order.ID, items)

	cleared, err := s.cartRepo.ClearCart(ctx, cartID)
	if err != nil {
		s.log.Error("clear cart after order creation",
			slog.String("order_id", order.ID.String()), slog.String("cart_id", cartID.String()),
			slog.Any("error", err))
	} else {
		result.CartCleared = true
		result.ClearedItemIDs = cleared
	}

	result.EmailQueued = s.publishConfirmation(ctx, order, in.CustomerEmail, in.CustomerName)

	s.log.Info("order created",
		slog.String("order_id", order.ID.String()),
		slog.String("session_id", in.SessionID),
		slog.String("total_amount", total.String()),
		slog.Int("items", len(items)))
	return result, nil
}

func (s *OrderService) incrementSoldCounters(ctx context.Context, orderID uuid.UUID, items []model.OrderItem) {
	quantities := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		quantities[item.ProductID] += item.Quantity
	}
	for productID, qty := range quantities {
		if err := s.productRepo.IncrementSoldItems(ctx, productID, qty); err != nil {
			s.log.Error("increment sold counter",
				slog.String("order_id", orderID.String()),
				slog.String("product_id", productID.String()),
				slog.Any("error", err))
		}
	}
}

func (s *OrderService) publishConfirmation(ctx context.Context, order *model.Order, email, name string) bool {
	if s.amqpCh == nil {
		return false
	}
	if email == "" {
		s.log.Warn("no customer email on session, skipping confirmation",
			slog.String("order_id", order.ID.String()))
		return false
	}
	msg, err := json.Marshal(model.OrderConfirmationMessage{
		OrderID:   order.ID,
		UserID:    order.UserID,
		UserEmail: email,
		UserName:  name,
	})
	if err != nil {
		s.log.Error("marshal confirmation message", slog.Any("error", err))
		return false
	}
	err = s.amqpCh.PublishWithContext(ctx, "", confirmationQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.log.Error("publish confirmation message",
			slog.String("order_id", order.ID.String()), slog.Any("error", err))
		return false
	}
	return true
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *OrderService) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return s.orderRepo.ListByUserID(ctx, userID)
}
