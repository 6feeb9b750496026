package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/go-checkout-api/internal/mailer"
	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

const (
	confirmationQueue = "order.confirmations"
	dlxExchange       = "order.confirmations.dlx"
	dlqQueueName      = "order.confirmations.dlq"
	idempotencyTTL    = 24 * time.Hour
)

// NotificationWorker consumes order-confirmation messages and sends the
// confirmation email. Delivery is at-least-once from the broker, so a Redis
// key per order suppresses duplicate sends.
type NotificationWorker struct {
	channel     *amqp.Channel
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	redisClient *redis.Client
	sender      mailer.Sender
	log         *slog.Logger
	done        chan struct{}
}

func NewNotificationWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	redisClient *redis.Client,
	sender mailer.Sender,
	log *slog.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		channel:     ch,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		redisClient: redisClient,
		sender:      sender,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares the confirmation queue and its DLX/DLQ.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, confirmationQueue, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(confirmationQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": confirmationQueue,
	}); err != nil {
		return fmt.Errorf("declare confirmation queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(confirmationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("notification worker started")
	return nil
}

func (w *NotificationWorker) Stop() { close(w.done) }

func (w *NotificationWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var confirm model.OrderConfirmationMessage
	if err := json.Unmarshal(msg.Body, &confirm); err != nil {
		w.log.Error("unmarshal confirmation message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", confirm.OrderID, "user_id", confirm.UserID)

	idempotencyKey := "order_notified:" + confirm.OrderID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("confirmation already sent, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.sendConfirmation(ctx, confirm); err != nil {
		log.Error("send confirmation failed", "error", err)
		_ = msg.Nack(false, false) // DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("confirmation email sent")
}

func (w *NotificationWorker) sendConfirmation(ctx context.Context, confirm model.OrderConfirmationMessage) error {
	order, err := w.orderRepo.GetByID(ctx, confirm.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", confirm.OrderID)
	}

	items := make([]mailer.ConfirmationItem, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.ProductID.String()
		if product, err := w.productRepo.GetByID(ctx, item.ProductID); err == nil && product != nil {
			name = product.Name
		}
		items = append(items, mailer.ConfirmationItem{
			Name:     name,
			Quantity: item.Quantity,
			Price:    item.Price.String(),
		})
	}

	return w.sender.SendOrderConfirmation(ctx, mailer.OrderConfirmation{
		OrderID:     order.ID.String(),
		UserEmail:   confirm.UserEmail,
		UserName:    confirm.UserName,
		TotalAmount: order.TotalAmount.String(),
		Items:       items,
	})
}
