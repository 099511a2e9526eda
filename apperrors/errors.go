package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an application error with the HTTP status it maps to.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Payment taxonomy. Callers wrap these with %w and match them with errors.Is.
var (
	ErrDuplicateReference         = errors.New("duplicate payment reference")
	ErrAlreadyFinalized           = errors.New("payment already finalized")
	ErrUnknownReference           = errors.New("unknown payment reference")
	ErrAmountMismatch             = errors.New("amount mismatch")
	ErrGatewayUnreachable         = errors.New("payment gateway unreachable")
	ErrGatewayRejected            = errors.New("payment gateway rejected the request")
	ErrSignatureInvalid           = errors.New("invalid webhook signature")
	ErrSequenceAllocationConflict = errors.New("sequence allocation conflict")
	ErrReferenceUnknownAtGateway  = errors.New("reference unknown at gateway")
	ErrPaymentPending             = errors.New("payment not completed at gateway")
	ErrPaymentFailed              = errors.New("payment failed")
	ErrSettlementInProgress       = errors.New("payment settlement in progress")
	ErrInvalidInput               = errors.New("invalid input")
	ErrInvalidReceipt             = errors.New("invalid or expired receipt token")
)

type mapping struct {
	target  error
	code    int
	message string
}

// Order matters: the first match wins.
var mappings = []mapping{
	{ErrInvalidInput, http.StatusBadRequest, "Invalid input"},
	{ErrSignatureInvalid, http.StatusUnauthorized, "Invalid signature"},
	{ErrInvalidReceipt, http.StatusUnauthorized, "Invalid or expired receipt"},
	{ErrUnknownReference, http.StatusNotFound, "Unknown payment reference"},
	{ErrReferenceUnknownAtGateway, http.StatusNotFound, "Payment reference not recognised by gateway"},
	{ErrDuplicateReference, http.StatusConflict, "Payment reference already exists"},
	{ErrPaymentPending, http.StatusAccepted, "Payment has not been completed yet"},
	{ErrSettlementInProgress, http.StatusConflict, "Payment is being processed, please try again"},
	{ErrAmountMismatch, http.StatusPaymentRequired, "Paid amount does not match the registration fee"},
	{ErrPaymentFailed, http.StatusPaymentRequired, "Payment was not successful"},
	{ErrGatewayRejected, http.StatusBadGateway, "Payment gateway rejected the request"},
	{ErrGatewayUnreachable, http.StatusServiceUnavailable, "Payment gateway unavailable, please try again"},
	{ErrSequenceAllocationConflict, http.StatusServiceUnavailable, "Could not issue registration code, please try again"},
}

// FromError converts any error into an *Error carrying an HTTP status.
// Unrecognised errors become a 500 that does not leak the cause.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return New(m.code, m.message, err)
		}
	}
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// HTTPStatus returns the status code FromError would assign.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return FromError(err).Code
}

// Retryable reports whether a caller may safely repeat the operation later.
func Retryable(err error) bool {
	return errors.Is(err, ErrGatewayUnreachable) ||
		errors.Is(err, ErrSequenceAllocationConflict) ||
		errors.Is(err, ErrSettlementInProgress) ||
		errors.Is(err, ErrPaymentPending)
}
