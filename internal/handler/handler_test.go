package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/adapter"
	"github.com/parkadmin/service-payment/internal/application"
	"github.com/parkadmin/service-payment/internal/common/apperror"
	"github.com/parkadmin/service-payment/internal/common/auth"
	"github.com/parkadmin/service-payment/internal/common/middleware"
	"github.com/parkadmin/service-payment/internal/domain/accounting"
	"github.com/parkadmin/service-payment/internal/domain/booking"
	"github.com/parkadmin/service-payment/internal/domain/discount"
)

const testWebhookSecret = "whsec_handler_test"

type stubBookables struct {
	rows map[booking.Kind]map[int64]*booking.Bookable
}

func (s *stubBookables) FindByID(_ context.Context, kind booking.Kind, id int64) (*booking.Bookable, error) {
	b, ok := s.rows[kind][id]
	if !ok {
		return nil, apperror.NewNotFoundError(kind.EntityLabel(), strconv.FormatInt(id, 10))
	}
	cp := *b
	return &cp, nil
}

type stubBookings struct {
	mu   sync.Mutex
	rows []*booking.Booking
}

func (s *stubBookings) Save(_ context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Kind() == b.Kind() && r.EntityID() == b.EntityID() && r.StripePaymentIntentID() == b.StripePaymentIntentID() {
			return booking.ErrDuplicateBooking
		}
	}
	s.rows = append(s.rows, b)
	return nil
}

func (s *stubBookings) Update(_ context.Context, _ *booking.Booking) error { return nil }

func (s *stubBookings) CountActive(_ context.Context, _ booking.Kind, _ int64) (int64, error) {
	return 0, nil
}

func (s *stubBookings) ExistsActiveForEmail(_ context.Context, kind booking.Kind, entityID int64, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Kind() == kind && r.EntityID() == entityID && r.Customer().Email == booking.NormalizeEmail(email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubBookings) ExistsForPayment(_ context.Context, kind booking.Kind, entityID int64, _ string, piID string) (bool, error) {
	_, err := s.FindByPaymentIntent(context.Background(), kind, entityID, piID)
	return err == nil, nil
}

func (s *stubBookings) FindByPaymentIntent(_ context.Context, kind booking.Kind, entityID int64, piID string) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Kind() == kind && r.EntityID() == entityID && r.StripePaymentIntentID() == piID {
			return r, nil
		}
	}
	return nil, apperror.NewNotFoundError(kind.BookingLabel(), piID)
}

func (s *stubBookings) ListByEntity(_ context.Context, kind booking.Kind, entityID int64, _, _ int) ([]*booking.Booking, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*booking.Booking
	for _, r := range s.rows {
		if r.Kind() == kind && r.EntityID() == entityID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubBookings) PaymentStats(_ context.Context, _ booking.Kind) (int64, map[string]int64, error) {
	return 0, map[string]int64{}, nil
}

type stubCostEntries struct{}

func (stubCostEntries) Save(_ context.Context, _ *accounting.CostEntry) error { return nil }

func (stubCostEntries) List(_ context.Context, _, _ int) ([]*accounting.CostEntry, int64, error) {
	return []*accounting.CostEntry{}, 0, nil
}

type testServer struct {
	router     *gin.Engine
	stripe     *adapter.MockStripeAdapter
	bookings   *stubBookings
	jwtManager *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	bookables := &stubBookables{rows: map[booking.Kind]map[int64]*booking.Bookable{
		booking.KindEvent: {
			1: {ID: 1, Kind: booking.KindEvent, Title: "Night Hike", PriceCents: 20000},
			2: {ID: 2, Kind: booking.KindEvent, Title: "Open Day", IsFree: true},
		},
		booking.KindSpace: {
			1: {ID: 1, Kind: booking.KindSpace, Title: "Picnic Shelter", PriceCents: 50000,
				DiscountCeilings: discount.Percentages{Seniors: 10, Students: 15}},
		},
	}}
	ts := &testServer{
		stripe:     adapter.NewMockStripeAdapter(testWebhookSecret, false, logger),
		bookings:   &stubBookings{},
		jwtManager: auth.NewJWTManager("handler-secret", time.Minute),
	}

	engine := discount.NewEngine(nil)
	payments := application.NewPaymentService(bookables, ts.bookings, ts.stripe, engine, nil,
		application.PaymentConfig{Currency: "usd"}, logger)
	webhooks := application.NewWebhookService(bookables, ts.bookings, ts.stripe, nil, 0, logger)
	accountingSvc := application.NewAccountingService(stubCostEntries{}, logger)

	r := gin.New()
	r.Use(middleware.RecoveryMiddleware(logger))
	api := r.Group("/api")
	NewPaymentHandler(payments).RegisterRoutes(api)
	NewWebhookHandler(webhooks).RegisterRoutes(api)
	NewAdminPaymentHandler(payments, accountingSvc).RegisterRoutes(api, ts.jwtManager)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreatePaymentIntentEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/spaces/1/create-payment-intent", map[string]any{
		"amount":         375,
		"originalAmount": 500,
		"customerData":   map[string]any{"fullName": "Ana Park", "email": "ana@example.com"},
		"appliedDiscounts": map[string]any{
			"discountSeniors":  10,
			"discountStudents": 20,
		},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["clientSecret"])
	assert.NotEmpty(t, body["paymentIntentId"])
	assert.Equal(t, 375.0, body["amount"])
	assert.Equal(t, 500.0, body["originalAmount"])
	assert.Equal(t, 25.0, body["totalDiscountPercentage"])
	assert.Equal(t, map[string]any{"seniors": 10.0, "students": 15.0}, body["discountBreakdown"])
}

func TestCreatePaymentIntentEndpoint_Errors(t *testing.T) {
	ts := newTestServer(t)
	customer := map[string]any{"fullName": "Ana Park", "email": "ana@example.com"}

	tests := []struct {
		name      string
		path      string
		body      any
		wantCode  int
		wantError string
	}{
		{"amount mismatch", "/api/events/1/create-payment-intent",
			map[string]any{"amount": 150, "customerData": customer},
			http.StatusBadRequest, "amount mismatch: expected 200.00, received 150.00"},
		{"free entity", "/api/events/2/create-payment-intent",
			map[string]any{"amount": 0, "customerData": customer},
			http.StatusBadRequest, "event is free, payment is not required"},
		{"not found", "/api/events/99/create-payment-intent",
			map[string]any{"amount": 10, "customerData": customer},
			http.StatusNotFound, "Event with id 99 not found"},
		{"missing amount", "/api/events/1/create-payment-intent",
			map[string]any{"customerData": customer},
			http.StatusBadRequest, ""},
		{"invalid email", "/api/events/1/create-payment-intent",
			map[string]any{"amount": 200, "customerData": map[string]any{"fullName": "Ana", "email": "nope"}},
			http.StatusBadRequest, ""},
		{"negative discount", "/api/events/1/create-payment-intent",
			map[string]any{"amount": 200, "customerData": customer, "appliedDiscounts": map[string]any{"discountSeniors": -5}},
			http.StatusBadRequest, ""},
		{"bad id", "/api/events/abc/create-payment-intent",
			map[string]any{"amount": 200, "customerData": customer},
			http.StatusBadRequest, "invalid entity ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
	assert.Equal(t, 0, ts.stripe.CreatedIntents())
}

func TestConfirmAndStatusEndpoints(t *testing.T) {
	ts := newTestServer(t)
	customer := map[string]any{"fullName": "Ana Park", "email": "ana@example.com"}

	w := ts.do(t, http.MethodPost, "/api/events/1/create-payment-intent",
		map[string]any{"amount": 200, "customerData": customer}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	piID := decode(t, w)["paymentIntentId"].(string)

	confirm := map[string]any{"paymentIntentId": piID, "participantData": customer}

	w = ts.do(t, http.MethodPost, "/api/events/1/confirm-payment", confirm, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "payment not completed")

	require.NoError(t, ts.stripe.SetIntentStatus(piID, adapter.IntentSucceeded))

	w = ts.do(t, http.MethodPost, "/api/events/1/confirm-payment", confirm, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Payment confirmed, registration completed", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "paid", data["paymentStatus"])
	assert.Equal(t, 200.0, data["amountPaid"])

	w = ts.do(t, http.MethodPost, "/api/events/1/confirm-payment", confirm, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "already been confirmed")

	w = ts.do(t, http.MethodGet, "/api/events/1/payment-status/"+piID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "succeeded", body["paymentStatus"])
	assert.Equal(t, true, body["registrationExists"])
	assert.NotNil(t, body["registration"])
}

func TestWebhookEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/events/1/create-payment-intent",
		map[string]any{"amount": 200, "customerData": map[string]any{"fullName": "Ana Park", "email": "ana@example.com"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	piID := decode(t, w)["paymentIntentId"].(string)
	require.NoError(t, ts.stripe.SetIntentStatus(piID, adapter.IntentSucceeded))

	payload, signature, err := ts.stripe.SignedWebhook(adapter.EventPaymentIntentSucceeded, piID)
	require.NoError(t, err)

	t.Run("bad signature", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/webhooks/stripe/events", payload,
			http.Header{"Stripe-Signature": {"t=1,v1=deadbeef"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, ts.bookings.rows)
	})

	t.Run("valid delivery", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/webhooks/stripe/events", payload,
			http.Header{"Stripe-Signature": {signature}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, map[string]any{"received": true}, decode(t, w))
		assert.Len(t, ts.bookings.rows, 1)
	})
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/admin/stats/payments", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	staff, err := ts.jwtManager.GenerateAccessToken(uuid.New(), auth.RoleStaff)
	require.NoError(t, err)
	w = ts.do(t, http.MethodGet, "/api/admin/stats/payments", nil, http.Header{"Authorization": {"Bearer " + staff}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, err := ts.jwtManager.GenerateAccessToken(uuid.New(), auth.RoleAdmin)
	require.NoError(t, err)
	authz := http.Header{"Authorization": {"Bearer " + admin}}

	w = ts.do(t, http.MethodGet, "/api/admin/stats/payments", nil, authz)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Contains(t, data, "events")
	assert.Contains(t, data, "spaces")

	w = ts.do(t, http.MethodGet, "/api/admin/spaces/1/bookings?page=1&limit=10", nil, authz)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)["meta"].(map[string]any)
	assert.Equal(t, 10.0, meta["limit"])

	w = ts.do(t, http.MethodGet, "/api/admin/events/42/bookings", nil, authz)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/cost-entries", nil, authz)
	assert.Equal(t, http.StatusOK, w.Code)
}
