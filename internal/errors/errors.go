package errors

import (
	"net/http"

	"github.com/samber/oops"
)

// Error codes carried by domain errors. Each code is one error kind.
const (
	CodeAlreadyExists              = "ALREADY_EXISTS"
	CodeNotFound                   = "NOT_FOUND"
	CodePasswordMismatch           = "PASSWORD_MISMATCH"
	CodeInvalidToken               = "INVALID_TOKEN"
	CodeNotAnImage                 = "NOT_AN_IMAGE"
	CodeInvalidSortOrder           = "INVALID_SORT_ORDER"
	CodeInvalidPage                = "INVALID_PAGE"
	CodeInvalidCredentials         = "INVALID_CREDENTIALS"
	CodeNotificationDeliveryFailed = "NOTIFICATION_DELIVERY_FAILED"
)

// AlreadyExists builds an ALREADY_EXISTS error.
func AlreadyExists(format string, args ...any) error {
	return oops.Code(CodeAlreadyExists).Errorf(format, args...)
}

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...any) error {
	return oops.Code(CodeNotFound).Errorf(format, args...)
}

// PasswordMismatch builds a PASSWORD_MISMATCH error.
func PasswordMismatch(format string, args ...any) error {
	return oops.Code(CodePasswordMismatch).Errorf(format, args...)
}

// InvalidToken builds an INVALID_TOKEN error.
func InvalidToken(format string, args ...any) error {
	return oops.Code(CodeInvalidToken).Errorf(format, args...)
}

// NotAnImage builds a NOT_AN_IMAGE error.
func NotAnImage(format string, args ...any) error {
	return oops.Code(CodeNotAnImage).Errorf(format, args...)
}

// InvalidSortOrder builds an INVALID_SORT_ORDER error.
func InvalidSortOrder(format string, args ...any) error {
	return oops.Code(CodeInvalidSortOrder).Errorf(format, args...)
}

// InvalidPage builds an INVALID_PAGE error.
func InvalidPage(format string, args ...any) error {
	return oops.Code(CodeInvalidPage).Errorf(format, args...)
}

// NotificationDeliveryFailed wraps a dispatch failure. The cause is kept in
// the error context and out of the message.
func NotificationDeliveryFailed(cause error, format string, args ...any) error {
	return oops.Code(CodeNotificationDeliveryFailed).
		With("cause", cause.Error()).
		Errorf(format, args...)
}

// HasCode reports whether err is an oops error carrying code.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var statusByCode = map[string]int{
	CodeAlreadyExists:              http.StatusConflict,
	CodeNotFound:                   http.StatusNotFound,
	CodePasswordMismatch:           http.StatusBadRequest,
	CodeInvalidToken:               http.StatusUnauthorized,
	CodeNotAnImage:                 http.StatusUnsupportedMediaType,
	CodeInvalidSortOrder:           http.StatusBadRequest,
	CodeInvalidPage:                http.StatusBadRequest,
	CodeInvalidCredentials:         http.StatusUnauthorized,
	CodeNotificationDeliveryFailed: http.StatusBadGateway,
}

// MapErrorToHTTP maps domain errors to HTTP errors. Errors without a known
// code become an opaque 500 so storage details never leak to callers.
func MapErrorToHTTP(err error) *HTTPError {
	if oopsErr, ok := oops.AsOops(err); ok {
		for code, status := range statusByCode {
			if oopsErr.Code() == code {
				return NewHTTPError(status, oopsErr.Error(), code)
			}
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
