package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parkadmin/service-payment/internal/application"
	"github.com/parkadmin/service-payment/internal/common/response"
	"github.com/parkadmin/service-payment/internal/domain/booking"
)

// PaymentHandler handles the public payment flow for events and spaces.
type PaymentHandler struct {
	service *application.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers the payment routes of every bookable kind on the given router group.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	for _, kind := range booking.Kinds {
		entities := r.Group("/" + kind.Plural())
		{
			entities.POST("/:id/create-payment-intent", h.CreatePaymentIntent(kind))
			entities.POST("/:id/confirm-payment", h.ConfirmPayment(kind))
			entities.GET("/:id/payment-status/:paymentIntentId", h.GetPaymentStatus(kind))
		}
	}
}

type createPaymentIntentResponse struct {
	Success bool `json:"success"`
	application.PaymentIntentDTO
}

type paymentStatusResponse struct {
	Success bool `json:"success"`
	application.PaymentStatusDTO
}

// CreatePaymentIntent handles POST /api/{entities}/:id/create-payment-intent
func (h *PaymentHandler) CreatePaymentIntent(kind booking.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entityID, ok := parseEntityID(c)
		if !ok {
			return
		}

		var req application.CreatePaymentIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		dto, err := h.service.CreatePaymentIntent(c.Request.Context(), kind, entityID, req)
		if err != nil {
			response.Error(c, err)
			return
		}

		c.JSON(http.StatusOK, createPaymentIntentResponse{Success: true, PaymentIntentDTO: *dto})
	}
}

// ConfirmPayment handles POST /api/{entities}/:id/confirm-payment
func (h *PaymentHandler) ConfirmPayment(kind booking.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entityID, ok := parseEntityID(c)
		if !ok {
			return
		}

		var req application.ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		dto, err := h.service.ConfirmPayment(c.Request.Context(), kind, entityID, req)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.SuccessWithMessage(c, dto, "Payment confirmed, "+kind.BookingLabel()+" completed")
	}
}

// GetPaymentStatus handles GET /api/{entities}/:id/payment-status/:paymentIntentId
func (h *PaymentHandler) GetPaymentStatus(kind booking.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entityID, ok := parseEntityID(c)
		if !ok {
			return
		}

		dto, err := h.service.GetPaymentStatus(c.Request.Context(), kind, entityID, c.Param("paymentIntentId"))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.JSON(http.StatusOK, paymentStatusResponse{Success: true, PaymentStatusDTO: *dto})
	}
}

func parseEntityID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid entity ID")
		return 0, false
	}
	return id, true
}
