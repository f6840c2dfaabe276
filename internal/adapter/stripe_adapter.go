package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/common/apperror"
)

// IntentStatus mirrors the provider's payment intent lifecycle.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentCanceled              IntentStatus = "canceled"
	IntentSucceeded             IntentStatus = "succeeded"
)

// Webhook event types handled by the reconciler.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// CustomerInput identifies the provider customer to resolve.
type CustomerInput struct {
	Email string
	Name  string
	Phone string
}

// CreateIntentInput describes a payment intent to create.
type CreateIntentInput struct {
	AmountCents  int64
	Currency     string
	CustomerID   string
	Description  string
	ReceiptEmail string
	Metadata     map[string]string
}

// PaymentIntent is the provider-neutral view of a payment intent.
type PaymentIntent struct {
	ID                  string
	ClientSecret        string
	Status              IntentStatus
	AmountCents         int64
	AmountReceivedCents int64
	Currency            string
	CustomerID          string
	Metadata            map[string]string
}

// Succeeded reports whether the intent reached the terminal success state.
func (p *PaymentIntent) Succeeded() bool {
	return p.Status == IntentSucceeded
}

// WebhookEvent is a verified provider callback.
type WebhookEvent struct {
	ID     string
	Type   string
	Intent *PaymentIntent
}

// StripeAdapter is the anti-corruption layer over the payment provider.
type StripeAdapter interface {
	// FindOrCreateCustomer returns the id of the customer with the given email,
	// creating one when none exists. Search then create, not atomic.
	FindOrCreateCustomer(ctx context.Context, in CustomerInput) (string, error)

	// CreatePaymentIntent creates an automatic-capture payment intent.
	CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*PaymentIntent, error)

	// RetrievePaymentIntent fetches the current state of an intent.
	RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// ConstructWebhookEvent verifies the signature header and decodes the payload.
	ConstructWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// StripeConfig configures the live Stripe client.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string
	Timeout       time.Duration
	MaxRetries    int64
}

// StripeClient implements StripeAdapter on stripe-go.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeClient builds a Stripe client whose every call is bounded by cfg.Timeout.
func NewStripeClient(cfg StripeConfig, logger *zap.Logger) *StripeClient {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	apiCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
	}
	if cfg.APIURL != "" {
		apiCfg.URL = stripe.String(cfg.APIURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, apiCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &StripeClient{api: api, webhookSecret: cfg.WebhookSecret, logger: logger}
}

// FindOrCreateCustomer looks the customer up by email and creates it when missing.
func (s *StripeClient) FindOrCreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(in.Email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := s.api.Customers.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("search stripe customer: %w", err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(in.Email),
		Name:  stripe.String(in.Name),
	}
	if in.Phone != "" {
		params.Phone = stripe.String(in.Phone)
	}
	params.Context = ctx

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}

	s.logger.Info("stripe customer created", zap.String("customer_id", c.ID))
	return c.ID, nil
}

// CreatePaymentIntent creates the intent with automatic payment methods enabled.
func (s *StripeClient) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.AmountCents),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			s.logger.Warn("stripe rejected payment intent",
				zap.String("code", string(stripeErr.Code)),
				zap.Int64("amount_cents", in.AmountCents),
				zap.String("message", stripeErr.Msg),
			)
			return nil, apperror.NewDomainError("payment provider rejected the payment: " + stripeErr.Msg)
		}
		return nil, fmt.Errorf("create stripe payment intent: %w", err)
	}

	s.logger.Info("stripe payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount_cents", pi.Amount),
		zap.String("currency", string(pi.Currency)),
	)
	return toPaymentIntent(pi), nil
}

// RetrievePaymentIntent fetches an intent, mapping a missing intent to NotFound.
func (s *StripeClient) RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, apperror.NewNotFoundError("PaymentIntent", paymentIntentID)
		}
		return nil, fmt.Errorf("retrieve stripe payment intent: %w", err)
	}
	return toPaymentIntent(pi), nil
}

// ConstructWebhookEvent verifies and decodes a webhook delivery.
func (s *StripeClient) ConstructWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	return parseWebhookEvent(payload, signatureHeader, s.webhookSecret)
}

// parseWebhookEvent verifies the Stripe v1 signature before decoding anything.
func parseWebhookEvent(payload []byte, signatureHeader, secret string) (*WebhookEvent, error) {
	if secret == "" {
		return nil, apperror.NewWebhookSignatureError(errors.New("webhook secret not configured"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperror.NewWebhookSignatureError(err)
	}

	we := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(we.Type, "payment_intent.") && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, apperror.NewValidationError("malformed payment intent in webhook payload")
		}
		we.Intent = toPaymentIntent(&pi)
	}
	return we, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:                  pi.ID,
		ClientSecret:        pi.ClientSecret,
		Status:              IntentStatus(pi.Status),
		AmountCents:         pi.Amount,
		AmountReceivedCents: pi.AmountReceived,
		Currency:            string(pi.Currency),
		Metadata:            pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
