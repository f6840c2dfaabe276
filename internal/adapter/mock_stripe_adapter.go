package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/common/apperror"
)

// MockStripeAdapter is an in-memory StripeAdapter for development and tests.
// Webhook deliveries are still verified with the real Stripe v1 signature scheme.
type MockStripeAdapter struct {
	mu            sync.Mutex
	intents       map[string]*PaymentIntent
	customers     map[string]string
	webhookSecret string
	autoSucceed   bool
	failWith      error
	createCalls   int
	logger        *zap.Logger
}

// NewMockStripeAdapter creates a mock adapter. With autoSucceed, created intents
// are immediately in the succeeded state, which lets a local client skip card entry.
func NewMockStripeAdapter(webhookSecret string, autoSucceed bool, logger *zap.Logger) *MockStripeAdapter {
	return &MockStripeAdapter{
		intents:       make(map[string]*PaymentIntent),
		customers:     make(map[string]string),
		webhookSecret: webhookSecret,
		autoSucceed:   autoSucceed,
		logger:        logger,
	}
}

// FindOrCreateCustomer returns a stable mock customer id per email.
func (m *MockStripeAdapter) FindOrCreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return "", m.failWith
	}
	if id, ok := m.customers[in.Email]; ok {
		return id, nil
	}
	id := fmt.Sprintf("cus_mock_%s", uuid.New().String()[:8])
	m.customers[in.Email] = id

	m.logger.Info("[MOCK STRIPE] customer created",
		zap.String("customer_id", id),
		zap.String("email", in.Email),
	)
	return id, nil
}

// CreatePaymentIntent stores a new intent and returns mock ids.
func (m *MockStripeAdapter) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	m.createCalls++

	id := fmt.Sprintf("pi_mock_%s", uuid.New().String()[:8])
	status := IntentRequiresPaymentMethod
	var received int64
	if m.autoSucceed {
		status = IntentSucceeded
		received = in.AmountCents
	}

	pi := &PaymentIntent{
		ID:                  id,
		ClientSecret:        id + "_secret_mock",
		Status:              status,
		AmountCents:         in.AmountCents,
		AmountReceivedCents: received,
		Currency:            in.Currency,
		CustomerID:          in.CustomerID,
		Metadata:            maps.Clone(in.Metadata),
	}
	if pi.Metadata == nil {
		pi.Metadata = map[string]string{}
	}
	m.intents[id] = pi

	m.logger.Info("[MOCK STRIPE] PaymentIntent created",
		zap.String("payment_intent_id", id),
		zap.Int64("amount_cents", in.AmountCents),
		zap.String("currency", in.Currency),
		zap.String("customer_id", in.CustomerID),
	)
	return copyIntent(pi), nil
}

// RetrievePaymentIntent returns the stored intent or NotFound.
func (m *MockStripeAdapter) RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	pi, ok := m.intents[paymentIntentID]
	if !ok {
		return nil, apperror.NewNotFoundError("PaymentIntent", paymentIntentID)
	}
	return copyIntent(pi), nil
}

// ConstructWebhookEvent verifies the payload against the configured secret.
func (m *MockStripeAdapter) ConstructWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	return parseWebhookEvent(payload, signatureHeader, m.webhookSecret)
}

// SetIntentStatus simulates the customer completing or failing the payment.
func (m *MockStripeAdapter) SetIntentStatus(paymentIntentID string, status IntentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pi, ok := m.intents[paymentIntentID]
	if !ok {
		return apperror.NewNotFoundError("PaymentIntent", paymentIntentID)
	}
	pi.Status = status
	if status == IntentSucceeded {
		pi.AmountReceivedCents = pi.AmountCents
	}
	return nil
}

// FailWith makes every subsequent provider call return err; nil restores normal behavior.
func (m *MockStripeAdapter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// CreatedIntents returns how many intents were created.
func (m *MockStripeAdapter) CreatedIntents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// SignedWebhook builds a Stripe-formatted event for a stored intent along with
// its Stripe-Signature header, as the provider would deliver it.
func (m *MockStripeAdapter) SignedWebhook(eventType, paymentIntentID string) ([]byte, string, error) {
	m.mu.Lock()
	pi, ok := m.intents[paymentIntentID]
	var snapshot *PaymentIntent
	if ok {
		snapshot = copyIntent(pi)
	}
	m.mu.Unlock()
	if !ok {
		return nil, "", apperror.NewNotFoundError("PaymentIntent", paymentIntentID)
	}

	payload, err := json.Marshal(map[string]any{
		"id":     "evt_mock_" + uuid.New().String()[:8],
		"object": "event",
		"type":   eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":              snapshot.ID,
				"object":          "payment_intent",
				"amount":          snapshot.AmountCents,
				"amount_received": snapshot.AmountReceivedCents,
				"currency":        snapshot.Currency,
				"customer":        snapshot.CustomerID,
				"status":          string(snapshot.Status),
				"client_secret":   snapshot.ClientSecret,
				"metadata":        snapshot.Metadata,
			},
		},
	})
	if err != nil {
		return nil, "", err
	}
	return payload, SignatureHeader(payload, m.webhookSecret, time.Now()), nil
}

// SignatureHeader computes the Stripe-Signature header value for payload signed with secret at the given time.
func SignatureHeader(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func copyIntent(pi *PaymentIntent) *PaymentIntent {
	cp := *pi
	cp.Metadata = maps.Clone(pi.Metadata)
	return &cp
}
