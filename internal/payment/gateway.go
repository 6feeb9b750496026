// Package payment wraps the hosted payment processor behind a narrow
// interface so the checkout and webhook paths can be exercised without the
// real API.
package payment

import (
	"context"
	"encoding/json"
)

// Event types forwarded by the processor's webhook.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// Metadata keys attached at session creation and read back verbatim when the
// completion callback arrives. The bag only carries strings, so structured
// values (the address) are JSON-serialized.
const (
	MetadataUserID  = "userId"
	MetadataCartID  = "cartid"
	MetadataAddress = "address"
)

type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64 // minor currency units
	Quantity    int64
}

type SessionParams struct {
	LineItems         []LineItem
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
}

// Session is the subset of the hosted checkout session this service reads.
type Session struct {
	ID                string
	URL               string
	Status            string
	PaymentStatus     string
	PaymentIntentID   string
	AmountTotal       int64
	CustomerEmail     string
	CustomerName      string
	ClientReferenceID string
	Metadata          map[string]string
}

// Event is an authenticated webhook event envelope.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	// VerifyWebhook authenticates the raw callback body against the signature
	// header before any of the untrusted content is parsed.
	VerifyWebhook(payload []byte, sigHeader string) (*Event, error)
}
