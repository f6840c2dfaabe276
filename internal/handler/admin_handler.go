package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parkadmin/service-payment/internal/application"
	"github.com/parkadmin/service-payment/internal/common/auth"
	"github.com/parkadmin/service-payment/internal/common/middleware"
	"github.com/parkadmin/service-payment/internal/common/response"
	"github.com/parkadmin/service-payment/internal/domain/booking"
)

// AdminPaymentHandler handles admin HTTP requests for payment oversight.
type AdminPaymentHandler struct {
	paymentService    *application.PaymentService
	accountingService *application.AccountingService
}

// NewAdminPaymentHandler creates a new AdminPaymentHandler.
func NewAdminPaymentHandler(paymentService *application.PaymentService, accountingService *application.AccountingService) *AdminPaymentHandler {
	return &AdminPaymentHandler{
		paymentService:    paymentService,
		accountingService: accountingService,
	}
}

// RegisterRoutes registers admin payment routes.
func (h *AdminPaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/admin")
	admin.Use(authMW, adminRole)
	{
		for _, kind := range booking.Kinds {
			admin.GET("/"+kind.Plural()+"/:id/bookings", h.ListBookings(kind))
		}
		admin.GET("/stats/payments", h.PaymentStats)
		admin.GET("/cost-entries", h.ListCostEntries)
	}
}

// ListBookings handles GET /api/admin/{entities}/:id/bookings.
func (h *AdminPaymentHandler) ListBookings(kind booking.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entityID, ok := parseEntityID(c)
		if !ok {
			return
		}
		page, limit := pagination(c)

		bookings, total, err := h.paymentService.ListBookings(c.Request.Context(), kind, entityID, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Paginated(c, bookings, total, page, limit)
	}
}

// PaymentStats handles GET /api/admin/stats/payments.
func (h *AdminPaymentHandler) PaymentStats(c *gin.Context) {
	stats, err := h.paymentService.GetPaymentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListCostEntries handles GET /api/admin/cost-entries.
func (h *AdminPaymentHandler) ListCostEntries(c *gin.Context) {
	page, limit := pagination(c)

	entries, total, err := h.accountingService.ListCostEntries(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, entries, total, page, limit)
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
