package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parkadmin/service-payment/internal/application"
	"github.com/parkadmin/service-payment/internal/common/response"
	"github.com/parkadmin/service-payment/internal/domain/booking"
)

// maxWebhookBodyBytes matches the payload limit the provider documents.
const maxWebhookBodyBytes = 65536

// WebhookHandler receives signed provider callbacks.
type WebhookHandler struct {
	service *application.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(service *application.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// RegisterRoutes registers one webhook endpoint per bookable kind.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks/stripe")
	for _, kind := range booking.Kinds {
		webhooks.POST("/"+kind.Plural(), h.HandleStripe(kind))
	}
}

// HandleStripe handles POST /api/webhooks/stripe/{entities}. The raw body is
// required for signature verification, so it is never bound as JSON.
func (h *WebhookHandler) HandleStripe(kind booking.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			response.BadRequest(c, "unable to read request body")
			return
		}

		if err := h.service.HandleEvent(c.Request.Context(), kind, payload, c.GetHeader("Stripe-Signature")); err != nil {
			response.Error(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
