// Package response writes the JSON envelopes returned by the HTTP API.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parkadmin/service-payment/internal/common/apperror"
)

// Body is the standard envelope.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PageMeta describes a paginated result.
type PageMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// PaginatedBody is the envelope for list endpoints.
type PaginatedBody struct {
	Success bool     `json:"success"`
	Data    any      `json:"data"`
	Meta    PageMeta `json:"meta"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// SuccessWithMessage writes 200 with data and a human readable message.
func SuccessWithMessage(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data, Message: message})
}

// Paginated writes 200 with a page of data.
func Paginated(c *gin.Context, data any, total int64, page, limit int) {
	c.JSON(http.StatusOK, PaginatedBody{
		Success: true,
		Data:    data,
		Meta:    PageMeta{Total: total, Page: page, Limit: limit},
	})
}

// BadRequest writes 400 with msg.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Body{Success: false, Error: msg})
}

// Error maps err to a status code. Classified errors expose their message;
// anything else becomes a generic 500 and is attached to the context for logging.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	appErr, ok := apperror.As(err)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, Body{
			Success: false,
			Error:   "internal server error, please try again later",
		})
		return
	}

	c.AbortWithStatusJSON(StatusFor(appErr), Body{Success: false, Error: appErr.PublicMessage()})
}

// StatusFor returns the HTTP status for a classified error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrValidation),
		errors.Is(err, apperror.ErrDomain),
		errors.Is(err, apperror.ErrAmountMismatch),
		errors.Is(err, apperror.ErrCapacityExceeded),
		errors.Is(err, apperror.ErrDuplicateRegistration),
		errors.Is(err, apperror.ErrDuplicateConfirmation),
		errors.Is(err, apperror.ErrPaymentNotCompleted),
		errors.Is(err, apperror.ErrWebhookSignature):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
