package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/payment"
	"github.com/flicky/go-checkout-api/internal/service"
)

const maxWebhookBodyBytes = int64(65536)

// OrderCreator is the slice of the order service the webhook path needs.
type OrderCreator interface {
	CreateOrderFromSession(ctx context.Context, in service.CreateOrderInput) (*service.CreateOrderResult, error)
}

type WebhookHandler struct {
	gateway        payment.Gateway
	orders         OrderCreator
	log            *slog.Logger
	processTimeout time.Duration
}

func NewWebhookHandler(gateway payment.Gateway, orders OrderCreator, log *slog.Logger, processTimeout time.Duration) *WebhookHandler {
	if processTimeout <= 0 {
		processTimeout = 30 * time.Second
	}
	return &WebhookHandler{gateway: gateway, orders: orders, log: log, processTimeout: processTimeout}
}

// HandleWebhook authenticates and dispatches payment-processor callbacks.
// The signature check runs before any parsing of the untrusted body. Once a
// completed-checkout event is authenticated and its metadata deserialized,
// the handler acknowledges immediately and runs order creation detached from
// the request: the sender must not be made to retry because local
// persistence is slow, and genuine retries are absorbed by the idempotency
// guard.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing signature header"})
		return
	}

	event, err := h.gateway.VerifyWebhook(payload, sig)
	if err != nil {
		h.log.Error("webhook signature verification failed", slog.Any("error", err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case payment.EventCheckoutCompleted:
		in, err := h.completedSessionInput(event.Data)
		if err != nil {
			h.log.Error("malformed checkout.session.completed event",
				slog.String("event_id", event.ID), slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true, "success": true})
		go h.processCompletedSession(in, event.ID)

	case payment.EventPaymentSucceeded, payment.EventPaymentFailed:
		// Acknowledged but no order-status transition; see the order
		// service for where status ownership ends.
		h.log.Info("payment event acknowledged",
			slog.String("event_id", event.ID), slog.String("event_type", event.Type))
		c.JSON(http.StatusOK, gin.H{"received": true, "success": true})

	default:
		h.log.Info("unhandled event type",
			slog.String("event_id", event.ID), slog.String("event_type", event.Type))
		c.JSON(http.StatusOK, gin.H{"received": true, "success": true})
	}
}

func (h *WebhookHandler) completedSessionInput(data json.RawMessage) (service.CreateOrderInput, error) {
	sess, err := payment.ParseCheckoutSession(data)
	if err != nil {
		return service.CreateOrderInput{}, err
	}

	var address *model.Address
	if raw := sess.Metadata[payment.MetadataAddress]; raw != "" {
		address = &model.Address{}
		if err := json.Unmarshal([]byte(raw), address); err != nil {
			return service.CreateOrderInput{}, err
		}
	}

	return service.CreateOrderInput{
		UserID:          sess.Metadata[payment.MetadataUserID],
		CartID:          sess.Metadata[payment.MetadataCartID],
		SessionID:       sess.ID,
		Status:          model.OrderStatusProcessing,
		ShippingAddress: address,
		CustomerEmail:   sess.CustomerEmail,
		CustomerName:    sess.CustomerName,
	}, nil
}

func (h *WebhookHandler) processCompletedSession(in service.CreateOrderInput, eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.processTimeout)
	defer cancel()

	result, err := h.orders.CreateOrderFromSession(ctx, in)
	if err != nil {
		h.log.Error("order creation from webhook failed",
			slog.String("event_id", eventID),
			slog.String("session_id", in.SessionID),
			slog.Any("error", err))
		return
	}
	h.log.Info("webhook order processing finished",
		slog.String("event_id", eventID),
		slog.String("order_id", result.Order.ID.String()),
		slog.Bool("is_existing", result.IsExisting))
}
