package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/payment"
	"github.com/flicky/go-checkout-api/internal/service"
)

type fakeWebhookGateway struct {
	verifyCalls int
	event       *payment.Event
	verifyErr   error
}

func (f *fakeWebhookGateway) CreateCheckoutSession(context.Context, payment.SessionParams) (*payment.Session, error) {
	return nil, errors.New("not used")
}

func (f *fakeWebhookGateway) GetSession(context.Context, string) (*payment.Session, error) {
	return nil, errors.New("not used")
}

func (f *fakeWebhookGateway) VerifyWebhook(_ []byte, _ string) (*payment.Event, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

type fakeOrderCreator struct {
	called chan service.CreateOrderInput
	result *service.CreateOrderResult
	err    error
}

func newFakeOrderCreator() *fakeOrderCreator {
	return &fakeOrderCreator{
		called: make(chan service.CreateOrderInput, 1),
		result: &service.CreateOrderResult{Order: &model.Order{
			ID: uuid.New(), TotalAmount: decimal.NewFromInt(100),
		}},
	}
}

func (f *fakeOrderCreator) CreateOrderFromSession(_ context.Context, in service.CreateOrderInput) (*service.CreateOrderResult, error) {
	f.called <- in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeOrderCreator) waitForCall(t *testing.T) service.CreateOrderInput {
	t.Helper()
	select {
	case in := <-f.called:
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("order creation was not invoked")
		return service.CreateOrderInput{}
	}
}

func (f *fakeOrderCreator) assertNotCalled(t *testing.T) {
	t.Helper()
	select {
	case <-f.called:
		t.Fatal("order creation should not have been invoked")
	case <-time.After(50 * time.Millisecond):
	}
}

func newWebhookRouter(gw payment.Gateway, orders OrderCreator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewWebhookHandler(gw, orders, log, time.Second)
	r := gin.New()
	r.POST("/api/v1/webhook", h.HandleWebhook)
	return r
}

func postWebhook(r *gin.Engine, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func completedEvent(t *testing.T, userID, cartID string, address *model.Address) *payment.Event {
	t.Helper()
	meta := map[string]string{
		payment.MetadataUserID: userID,
		payment.MetadataCartID: cartID,
	}
	if address != nil {
		raw, err := json.Marshal(address)
		require.NoError(t, err)
		meta[payment.MetadataAddress] = string(raw)
	}
	data, err := json.Marshal(map[string]any{
		"id":       "cs_test_123",
		"metadata": meta,
		"customer_details": map[string]string{
			"email": "buyer@example.com",
			"name":  "Buyer",
		},
	})
	require.NoError(t, err)
	return &payment.Event{ID: "evt_1", Type: payment.EventCheckoutCompleted, Data: data}
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	gw := &fakeWebhookGateway{}
	orders := newFakeOrderCreator()
	r := newWebhookRouter(gw, orders)

	w := postWebhook(r, []byte(`{}`), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, gw.verifyCalls, "body must not reach verification without a signature header")
	orders.assertNotCalled(t)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	gw := &fakeWebhookGateway{verifyErr: errors.New("signature mismatch")}
	orders := newFakeOrderCreator()
	r := newWebhookRouter(gw, orders)

	w := postWebhook(r, []byte(`{"type":"checkout.session.completed"}`), "t=1,v1=bad")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, gw.verifyCalls)
	orders.assertNotCalled(t)
}

func TestWebhookHandler_CompletedSession(t *testing.T) {
	userID := uuid.NewString()
	cartID := uuid.NewString()
	addr := &model.Address{Line1: "1 Main St", City: "Berlin", PostalCode: "10115", Country: "DE"}

	gw := &fakeWebhookGateway{event: completedEvent(t, userID, cartID, addr)}
	orders := newFakeOrderCreator()
	r := newWebhookRouter(gw, orders)

	w := postWebhook(r, []byte(`{}`), "t=1,v1=good")

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["received"])
	assert.True(t, resp["success"])

	in := orders.waitForCall(t)
	assert.Equal(t, userID, in.UserID)
	assert.Equal(t, cartID, in.CartID)
	assert.Equal(t, "cs_test_123", in.SessionID)
	assert.Equal(t, "buyer@example.com", in.CustomerEmail)
	assert.Equal(t, "Buyer", in.CustomerName)
	require.NotNil(t, in.ShippingAddress)
	assert.Equal(t, "Berlin", in.ShippingAddress.City)
}

func TestWebhookHandler_MalformedAddressMetadata(t *testing.T) {
	event := completedEvent(t, uuid.NewString(), uuid.NewString(), nil)
	// corrupt the address value in place
	var data map[string]any
	require.NoError(t, json.Unmarshal(event.Data, &data))
	data["metadata"].(map[string]any)["address"] = "{not json"
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	event.Data = raw

	gw := &fakeWebhookGateway{event: event}
	orders := newFakeOrderCreator()
	r := newWebhookRouter(gw, orders)

	w := postWebhook(r, []byte(`{}`), "t=1,v1=good")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	orders.assertNotCalled(t)
}

func TestWebhookHandler_AckIndependentOfProcessingFailure(t *testing.T) {
	gw := &fakeWebhookGateway{event: completedEvent(t, uuid.NewString(), uuid.NewString(), nil)}
	orders := newFakeOrderCreator()
	orders.err = fmt.Errorf("load cart items: %w", errors.New("connection reset"))
	r := newWebhookRouter(gw, orders)

	w := postWebhook(r, []byte(`{}`), "t=1,v1=good")

	assert.Equal(t, http.StatusOK, w.Code)
	orders.waitForCall(t)
}

func TestWebhookHandler_PaymentEventsAcked(t *testing.T) {
	for _, typ := range []string{payment.EventPaymentSucceeded, payment.EventPaymentFailed} {
		gw := &fakeWebhookGateway{event: &payment.Event{ID: "evt_2", Type: typ, Data: []byte(`{}`)}}
		orders := newFakeOrderCreator()
		r := newWebhookRouter(gw, orders)

		w := postWebhook(r, []byte(`{}`), "t=1,v1=good")

		assert.Equal(t, http.StatusOK, w.Code, typ)
		orders.assertNotCalled(t)
	}
}

func TestWebhookHandler_UnknownEventAcked(t *testing.T) {
	gw := &fakeWebhookGateway{event: &payment.Event{ID: "evt_3", Type: "customer.created", Data: []byte(`{}`)}}
	orders := newFakeOrderCreator()
	r := newWebhookRouter(gw, orders)

	w := postWebhook(r, []byte(`{}`), "t=1,v1=good")

	assert.Equal(t, http.StatusOK, w.Code)
	orders.assertNotCalled(t)
}
