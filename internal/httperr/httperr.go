// Package httperr maps domain failures to the JSON error envelope returned by the API.
package httperr

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/validation"
)

// Machine-readable error codes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeSecondFactorNeeded = "SECOND_FACTOR_REQUIRED"
	CodeInvalidCode        = "INVALID_CODE"
	CodeTwoFactorNotSetUp  = "TWO_FACTOR_NOT_SET_UP"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL"
	CodeServiceUnavailable = "UNAVAILABLE"
)

// Error is an API failure with a stable code.
type Error struct {
	Status  int
	Code    string
	Message string
	Fields  []validation.FieldError
}

func (e *Error) Error() string { return e.Message }

// New builds an API error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Invalid wraps field errors as a 400 INVALID_INPUT response.
func Invalid(errs validation.Errors) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidInput, Message: "invalid request", Fields: errs}
}

// BadRequest is a 400 INVALID_INPUT without field detail.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, message)
}

// Unauthorized is a 401 for missing or stale sessions.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

type body struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

// Handler is the app-wide fiber.ErrorHandler. Unknown errors become an opaque 500 and
// are logged with the request id.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		apiErr := From(err)
		if apiErr.Status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				slog.Any("error", err),
			)
		}
		return c.Status(apiErr.Status).JSON(body{Code: apiErr.Code, Message: apiErr.Message, Fields: apiErr.Fields})
	}
}

// From converts any error into an *Error.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return Invalid(fieldErrs)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return New(fe.Code, codeForStatus(fe.Code), fe.Message)
	}
	return New(http.StatusInternalServerError, CodeInternal, "internal server error")
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeInvalidInput
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}
