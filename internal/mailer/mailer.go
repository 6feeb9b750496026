// Package mailer sends order-confirmation messages. Delivery failures are
// always non-fatal to order creation; callers log and move on.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/flicky/go-checkout-api/internal/config"
)

type ConfirmationItem struct {
	Name     string
	Quantity int
	Price    string
}

type OrderConfirmation struct {
	OrderID     string
	UserEmail   string
	UserName    string
	TotalAmount string
	Items       []ConfirmationItem
}

type Sender interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
}

type smtpSender struct {
	addr    string
	auth    smtp.Auth
	from    string
	hasAuth bool
}

func NewSMTPSender(cfg config.SMTPConfig) Sender {
	s := &smtpSender{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		s.hasAuth = true
	}
	return s
}

func (s *smtpSender) SendOrderConfirmation(_ context.Context, msg OrderConfirmation) error {
	if msg.UserEmail == "" {
		return fmt.Errorf("send confirmation: empty recipient for order %s", msg.OrderID)
	}

	var body strings.Builder
	name := msg.UserName
	if name == "" {
		name = "customer"
	}
	fmt.Fprintf(&body, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(&body, "Thank you for your order! Your order ID is %s.\r\n\r\n", msg.OrderID)
	for _, item := range msg.Items {
		fmt.Fprintf(&body, "  %d x %s at %s\r\n", item.Quantity, item.Name, item.Price)
	}
	fmt.Fprintf(&body, "\r\nTotal: %s\r\n\r\nWe are processing it now.\r\n", msg.TotalAmount)

	message := []byte("To: " + msg.UserEmail + "\r\n" +
		"From: " + s.from + "\r\n" +
		"Subject: Order Confirmation\r\n" +
		"\r\n" +
		body.String())

	var auth smtp.Auth
	if s.hasAuth {
		auth = s.auth
	}
	if err := smtp.SendMail(s.addr, auth, s.from, []string{msg.UserEmail}, message); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}
