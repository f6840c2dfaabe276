// Package apperror defines the error taxonomy shared by the payment service.
// Every error carries a sentinel kind so callers can use errors.Is, and a
// client-safe message that handlers return verbatim for 4xx responses.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel kinds.
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrDomain                = errors.New("domain rule violated")
	ErrAmountMismatch        = errors.New("amount mismatch")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrDuplicateConfirmation = errors.New("duplicate confirmation")
	ErrPaymentNotCompleted   = errors.New("payment not completed")
	ErrWebhookSignature      = errors.New("webhook signature invalid")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
)

// AppError is a classified, client-presentable error.
type AppError struct {
	Err     error
	Message string
	Details map[string]any
	cause   error
}

// Error returns the client-facing message.
func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Is reports whether target is the sentinel kind of this error.
func (e *AppError) Is(target error) bool {
	return e.Err == target
}

// Unwrap exposes the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// PublicMessage is the message safe to show to API clients.
func (e *AppError) PublicMessage() string {
	return e.Message
}

func newError(kind error, msg string) *AppError {
	return &AppError{Err: kind, Message: msg}
}

// NewValidationError reports a malformed request.
func NewValidationError(msg string) *AppError {
	return newError(ErrValidation, msg)
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// NewDomainError reports a business rule violation, e.g. paying for a free entity.
func NewDomainError(msg string) *AppError {
	return newError(ErrDomain, msg)
}

// NewAmountMismatchError reports a client amount that disagrees with the server computation.
func NewAmountMismatchError(expected, received float64) *AppError {
	e := newError(ErrAmountMismatch, fmt.Sprintf("amount mismatch: expected %.2f, received %.2f", expected, received))
	e.Details = map[string]any{"expected": expected, "received": received}
	return e
}

// NewCapacityExceededError reports a fully booked entity.
func NewCapacityExceededError(capacity int) *AppError {
	e := newError(ErrCapacityExceeded, fmt.Sprintf("capacity of %d has been reached", capacity))
	e.Details = map[string]any{"capacity": capacity}
	return e
}

// NewDuplicateRegistrationError reports an existing booking for the same customer.
func NewDuplicateRegistrationError(email string) *AppError {
	return newError(ErrDuplicateRegistration, fmt.Sprintf("a registration already exists for %s", email))
}

// NewDuplicateConfirmationError reports a payment intent that was already turned into a booking.
func NewDuplicateConfirmationError(paymentIntentID string) *AppError {
	return newError(ErrDuplicateConfirmation, fmt.Sprintf("payment %s has already been confirmed", paymentIntentID))
}

// NewPaymentNotCompletedError reports a payment intent that has not succeeded.
func NewPaymentNotCompletedError(status string) *AppError {
	e := newError(ErrPaymentNotCompleted, fmt.Sprintf("payment not completed (status: %s)", status))
	e.Details = map[string]any{"status": status}
	return e
}

// NewWebhookSignatureError wraps a signature verification failure.
func NewWebhookSignatureError(cause error) *AppError {
	e := newError(ErrWebhookSignature, "webhook signature verification failed")
	e.cause = cause
	return e
}

// NewUnauthorizedError reports missing or invalid credentials.
func NewUnauthorizedError(msg string) *AppError {
	return newError(ErrUnauthorized, msg)
}

// NewForbiddenError reports insufficient permissions.
func NewForbiddenError(msg string) *AppError {
	return newError(ErrForbidden, msg)
}

// As extracts an *AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
