package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized    ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden       ErrorType = "FORBIDDEN"
	ErrorTypeInvalidState    ErrorType = "INVALID_STATE"
	ErrorTypeInvalidSequence ErrorType = "INVALID_SEQUENCE"
	ErrorTypeUpstream        ErrorType = "UPSTREAM_ERROR"
	ErrorTypeInternal        ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidWeight    ErrorCode = "INVALID_WEIGHT"
	ErrCodeInvalidPhone     ErrorCode = "INVALID_PHONE"
	ErrCodeInvalidName      ErrorCode = "INVALID_NAME"
	ErrCodeProofRequired    ErrorCode = "PROOF_REQUIRED"

	ErrCodeShipmentNotFound   ErrorCode = "SHIPMENT_NOT_FOUND"
	ErrCodePaymentNotFound    ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeBranchNotFound     ErrorCode = "BRANCH_NOT_FOUND"
	ErrCodeAddressNotFound    ErrorCode = "ADDRESS_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeDetailNotFound     ErrorCode = "SHIPMENT_DETAIL_NOT_FOUND"
	ErrCodeInvalidStatus      ErrorCode = "INVALID_SHIPMENT_STATUS"
	ErrCodeStatusConflict     ErrorCode = "SHIPMENT_STATUS_CONFLICT"
	ErrCodeScanNotOpen        ErrorCode = "SCAN_NOT_OPEN"
	ErrCodeInsufficientAccess ErrorCode = "INSUFFICIENT_PERMISSIONS"

	ErrCodeInvalidToken  ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired  ErrorCode = "TOKEN_EXPIRED"
	ErrCodeUserInactive  ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidSource ErrorCode = "INVALID_CALLBACK_TOKEN"

	ErrCodeGeocodeFailed      ErrorCode = "GEOCODE_FAILED"
	ErrCodeInvoiceFailed      ErrorCode = "INVOICE_FAILED"
	ErrCodeStorageFailed      ErrorCode = "STORAGE_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_FAILED"
	ErrCodeSchedulingFailed   ErrorCode = "SCHEDULING_FAILED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
		messages := make([]string, len(validationErrors.Errors))
		for i, err := range validationErrors.Errors {
			messages[i] = err.Message
		}
		return strings.Join(messages, "; ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Type and Code so sentinels compare equal to copies carrying a cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy so shared sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func newAppError(t ErrorType, status int, code ErrorCode, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message, StatusCode: status}
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, code, message)
}

// NewValidationFieldError reports a single field; the field's own code goes
// into the details and the top-level code stays VALIDATION_FAILED.
func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return NewValidationError("Validation failed", ErrCodeValidationFailed).
		WithDetails(ValidationErrors{Errors: []ValidationError{{Field: field, Message: message, Code: string(code)}}})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, code, message)
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, code, message)
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeForbidden, http.StatusForbidden, code, message)
}

// NewInvalidStateError is for an action the shipment's current status does not allow.
func NewInvalidStateError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeInvalidState, http.StatusConflict, code, message)
}

// NewInvalidSequenceError is for scans that arrive out of order.
func NewInvalidSequenceError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeInvalidSequence, http.StatusUnprocessableEntity, code, message)
}

func NewUpstreamError(message string, code ErrorCode, cause error) *AppError {
	return newAppError(ErrorTypeUpstream, http.StatusBadGateway, code, message).WithCause(cause)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, "INTERNAL_ERROR", message).WithCause(cause)
}

var (
	ErrShipmentNotFound = NewNotFoundError("Shipment not found", ErrCodeShipmentNotFound)
	ErrPaymentNotFound  = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)
	ErrBranchNotFound   = NewNotFoundError("User branch not found", ErrCodeBranchNotFound)
	ErrAddressNotFound  = NewNotFoundError("Pickup address not found", ErrCodeAddressNotFound)
	ErrUserNotFound     = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrDetailNotFound   = NewNotFoundError("Shipment detail not found", ErrCodeDetailNotFound)
	ErrStatusConflict   = NewInvalidStateError("Shipment status changed concurrently", ErrCodeStatusConflict)

	ErrInsufficientPermissions = NewForbiddenError("Forbidden: insufficient permissions", ErrCodeInsufficientAccess)
	ErrInvalidToken            = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired            = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrUserInactive            = NewUnauthorizedError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidCallbackToken    = NewUnauthorizedError("Invalid callback token", ErrCodeInvalidSource)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err is an AppError of the given type anywhere in its chain.
func IsType(err error, t ErrorType) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Type == t
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
