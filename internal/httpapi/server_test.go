package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gozon/storefront/internal/fulfillment"
	"gozon/storefront/internal/order"
	"gozon/storefront/internal/paymob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrderID = "5a0d3c1e-2b7f-4f4a-9e61-7c2d8b3a1f00"
	testUserID  = "c3e5a1b2-4d6f-4a8b-9c0d-1e2f3a4b5c6d"
)

type mockWebhooks struct {
	HandleFunc func(ctx context.Context, tx paymob.Transaction, signature string) (fulfillment.Result, error)
}

func (m *mockWebhooks) HandleTransaction(ctx context.Context, tx paymob.Transaction, signature string) (fulfillment.Result, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, tx, signature)
	}
	return fulfillment.Result{}, nil
}

type mockOrders struct {
	GetFunc         func(ctx context.Context, orderID string) (*order.Order, error)
	GetByNumberFunc func(ctx context.Context, orderNumber string) (*order.Order, error)
	TrackingFunc    func(ctx context.Context, orderID string) ([]order.TrackingEntry, error)
}

func (m *mockOrders) Get(ctx context.Context, orderID string) (*order.Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, orderID)
	}
	return nil, order.ErrOrderNotFound
}

func (m *mockOrders) GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	if m.GetByNumberFunc != nil {
		return m.GetByNumberFunc(ctx, orderNumber)
	}
	return nil, order.ErrOrderNotFound
}

func (m *mockOrders) Tracking(ctx context.Context, orderID string) ([]order.TrackingEntry, error) {
	if m.TrackingFunc != nil {
		return m.TrackingFunc(ctx, orderID)
	}
	return nil, nil
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }

type testServer struct {
	webhooks *mockWebhooks
	orders   *mockOrders
	server   *Server
}

func newTestServer() *testServer {
	ts := &testServer{webhooks: &mockWebhooks{}, orders: &mockOrders{}}
	ts.server = NewServer(ts.webhooks, ts.orders, mockPinger{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func webhookRequest(query, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paymob"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const callbackBody = `{"type":"TRANSACTION","obj":{"id":777,"success":true,"is_voided":false,"is_refunded":false,"order":{"id":4242}},"hmac":"body-sig"}`

func TestPaymobWebhookProcessed(t *testing.T) {
	ts := newTestServer()
	var gotTx paymob.Transaction
	var gotSig string
	ts.webhooks.HandleFunc = func(_ context.Context, tx paymob.Transaction, sig string) (fulfillment.Result, error) {
		gotTx, gotSig = tx, sig
		return fulfillment.Result{OrderID: testOrderID, Outcome: fulfillment.OutcomeSuccess}, nil
	}

	rec := ts.do(webhookRequest("?hmac=query-sig", callbackBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, "success", body["outcome"])
	assert.NotContains(t, body, "already_processed")

	assert.Equal(t, "query-sig", gotSig, "query parameter wins over body field")
	assert.Equal(t, int64(777), gotTx.ID)
	assert.Equal(t, int64(4242), gotTx.Order.ID)
	assert.True(t, gotTx.Success)
}

func TestPaymobWebhookSignatureFromBody(t *testing.T) {
	ts := newTestServer()
	var gotSig string
	ts.webhooks.HandleFunc = func(_ context.Context, _ paymob.Transaction, sig string) (fulfillment.Result, error) {
		gotSig = sig
		return fulfillment.Result{Outcome: fulfillment.OutcomeFailed}, nil
	}

	rec := ts.do(webhookRequest("", callbackBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body-sig", gotSig)
}

func TestPaymobWebhookDuplicate(t *testing.T) {
	ts := newTestServer()
	ts.webhooks.HandleFunc = func(context.Context, paymob.Transaction, string) (fulfillment.Result, error) {
		return fulfillment.Result{OrderID: testOrderID, Outcome: fulfillment.OutcomeSuccess, AlreadyProcessed: true}, nil
	}

	rec := ts.do(webhookRequest("?hmac=x", callbackBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, true, body["already_processed"])
}

func TestPaymobWebhookErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad signature", fulfillment.ErrInvalidSignature, http.StatusUnauthorized},
		{"unknown order", order.ErrOrderNotFound, http.StatusNotFound},
		{"ambiguous order", order.ErrAmbiguousReference, http.StatusInternalServerError},
		{"persistence", fmt.Errorf("%w: %w", fulfillment.ErrPersistence, errors.New("deadlock")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.webhooks.HandleFunc = func(context.Context, paymob.Transaction, string) (fulfillment.Result, error) {
				return fulfillment.Result{}, tt.err
			}

			rec := ts.do(webhookRequest("?hmac=x", callbackBody))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "received")
		})
	}
}

func TestPaymobWebhookInvalidJSON(t *testing.T) {
	ts := newTestServer()
	called := false
	ts.webhooks.HandleFunc = func(context.Context, paymob.Transaction, string) (fulfillment.Result, error) {
		called = true
		return fulfillment.Result{}, nil
	}

	rec := ts.do(webhookRequest("", "{not json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestPaymobWebhookRecoversFromPanic(t *testing.T) {
	ts := newTestServer()
	ts.webhooks.HandleFunc = func(context.Context, paymob.Transaction, string) (fulfillment.Result, error) {
		panic("boom")
	}

	rec := ts.do(webhookRequest("?hmac=x", callbackBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func guestOrder() *order.Order {
	email := "guest@example.com"
	return &order.Order{
		ID:            testOrderID,
		OrderNumber:   "ORD-1001",
		GuestEmail:    &email,
		Status:        order.StatusConfirmed,
		PaymentStatus: order.PaymentPaid,
	}
}

func userOrder() *order.Order {
	uid := testUserID
	return &order.Order{ID: testOrderID, OrderNumber: "ORD-1002", UserID: &uid, Status: order.StatusPending, PaymentStatus: order.PaymentPending}
}

func TestOrderTracking(t *testing.T) {
	ts := newTestServer()
	ts.orders.GetFunc = func(_ context.Context, id string) (*order.Order, error) {
		if id == testOrderID {
			return userOrder(), nil
		}
		return nil, order.ErrOrderNotFound
	}
	ts.orders.TrackingFunc = func(_ context.Context, id string) ([]order.TrackingEntry, error) {
		return []order.TrackingEntry{
			{ID: 1, OrderID: id, Status: order.StatusPending, Description: "Payment failed, awaiting a new payment attempt", CreatedAt: time.Now()},
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID+"/tracking", nil)
	req.Header.Set("X-User-ID", testUserID)
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp trackingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testOrderID, resp.Order.ID)
	require.Len(t, resp.Tracking, 1)
	assert.Equal(t, order.StatusPending, resp.Tracking[0].Status)
}

func TestOrderTrackingAccessControl(t *testing.T) {
	ts := newTestServer()
	ts.orders.GetFunc = func(context.Context, string) (*order.Order, error) { return userOrder(), nil }

	stranger := httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID+"/tracking", nil)
	stranger.Header.Set("X-User-ID", "00000000-0000-0000-0000-000000000001")
	assert.Equal(t, http.StatusNotFound, ts.do(stranger).Code)

	anonymous := httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID+"/tracking", nil)
	assert.Equal(t, http.StatusBadRequest, ts.do(anonymous).Code)

	badID := httptest.NewRequest(http.MethodGet, "/orders/nope/tracking", nil)
	badID.Header.Set("X-User-ID", testUserID)
	assert.Equal(t, http.StatusBadRequest, ts.do(badID).Code)
}

func TestOrderTrackingStoreFailure(t *testing.T) {
	ts := newTestServer()
	ts.orders.GetFunc = func(context.Context, string) (*order.Order, error) { return userOrder(), nil }
	ts.orders.TrackingFunc = func(context.Context, string) ([]order.TrackingEntry, error) {
		return nil, errors.New("timeout")
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID+"/tracking", nil)
	req.Header.Set("X-User-ID", testUserID)
	assert.Equal(t, http.StatusInternalServerError, ts.do(req).Code)
}

func TestTrackByNumber(t *testing.T) {
	ts := newTestServer()
	ts.orders.GetByNumberFunc = func(_ context.Context, number string) (*order.Order, error) {
		if number == "ORD-1001" {
			return guestOrder(), nil
		}
		return nil, order.ErrOrderNotFound
	}

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/track/ORD-1001?email=Guest@Example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp trackingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ORD-1001", resp.Order.OrderNumber)
	assert.NotNil(t, resp.Tracking)
	assert.Empty(t, resp.Tracking)

	assert.Equal(t, http.StatusNotFound, ts.do(httptest.NewRequest(http.MethodGet, "/track/ORD-1001?email=x@example.com", nil)).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(httptest.NewRequest(http.MethodGet, "/track/ORD-9?email=guest@example.com", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(httptest.NewRequest(http.MethodGet, "/track/ORD-1001", nil)).Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	down := NewServer(&mockWebhooks{}, &mockOrders{}, mockPinger{err: errors.New("down")}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleFuncMountsExtraRoutes(t *testing.T) {
	ts := newTestServer()
	ts.server.HandleFunc("GET /orders/{orderID}/ws", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID+"/ws", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
