package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

type AppError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Details    string        `json:"details,omitempty"`
	Status     int           `json:"-"`
	RetryAfter time.Duration `json:"-"`
	// NextAvailable is set on daily limit refusals
	NextAvailable *time.Time `json:"next_available,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
}

// Common error codes
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeDailyLimitReached  = "DAILY_LIMIT_REACHED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAlreadyRegistered  = "ALREADY_REGISTERED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeNetwork            = "NETWORK_ERROR"
)

// As extracts an *AppError from err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Error constructors
func Validation(message string, details string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
		Status:  http.StatusBadRequest,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Internal(message string, details string) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Details: details,
		Status:  http.StatusInternalServerError,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// DailyLimitReached refuses a lesson until nextAvailable
func DailyLimitReached(nextAvailable time.Time, countdown time.Duration) *AppError {
	return &AppError{
		Code:          CodeDailyLimitReached,
		Message:       "daily word limit reached",
		Details:       fmt.Sprintf("next word available in %s", countdown.Round(time.Second)),
		Status:        http.StatusTooManyRequests,
		RetryAfter:    countdown,
		NextAvailable: &nextAvailable,
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Code:    CodeInvalidCredentials,
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
	}
}

func AlreadyRegistered() *AppError {
	return &AppError{
		Code:    CodeAlreadyRegistered,
		Message: "an account with this email already exists",
		Status:  http.StatusConflict,
	}
}

func RateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "too many attempts, please wait and try again",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

func Network(details string) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "service temporarily unavailable",
		Details: details,
		Status:  http.StatusServiceUnavailable,
	}
}
