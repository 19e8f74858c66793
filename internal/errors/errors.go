package errors

import (
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode represents application error codes.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrTimeout    ErrorCode = "TIMEOUT"

	// Session classifications. Every capture, analysis and narration failure
	// is converted to one of these at its call site; none propagate raw.
	ErrDevice            ErrorCode = "DEVICE_ERROR"
	ErrEmptyArtifact     ErrorCode = "EMPTY_ARTIFACT"
	ErrRateLimit         ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrUnknown           ErrorCode = "UNKNOWN_ERROR"

	// Service-specific errors
	ErrAIService      ErrorCode = "AI_SERVICE_ERROR"
	ErrStorageService ErrorCode = "STORAGE_SERVICE_ERROR"
)

// AppError represents an application error with code and metadata.
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// HTTPStatus returns the HTTP status code for the error.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrValidation, ErrEmptyArtifact:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus returns the gRPC status for the error.
func (e *AppError) GRPCStatus() *status.Status {
	var code codes.Code
	switch e.Code {
	case ErrValidation, ErrEmptyArtifact:
		code = codes.InvalidArgument
	case ErrNotFound:
		code = codes.NotFound
	case ErrConflict:
		code = codes.AlreadyExists
	case ErrRateLimit:
		code = codes.ResourceExhausted
	case ErrTimeout:
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.New(code, e.Message)
}

// IsRateLimit reports whether err carries a quota/rate-limit signal from a
// remote collaborator. Matches the typed ResourceExhausted gRPC code where the
// SDK supplies one, otherwise the textual markers the Gemini and OpenAI APIs
// put in their error strings (429, "quota", "resource exhausted").
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*AppError); ok && appErr.Code == ErrRateLimit {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "resource_exhausted")
}

// Classify converts an arbitrary collaborator failure into a session
// classification. Already-classified AppErrors pass through unchanged.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	if IsRateLimit(err) {
		return Wrap(ErrRateLimit, "collaborator quota exceeded", err)
	}
	return Wrap(ErrUnknown, "collaborator call failed", err)
}

// Common error constructors
func Internal(message string) *AppError {
	return New(ErrInternal, message)
}

func InternalWrap(message string, err error) *AppError {
	return Wrap(ErrInternal, message, err)
}

func Validation(message string) *AppError {
	return New(ErrValidation, message)
}

func NotFound(resource string) *AppError {
	return New(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

func Device(message string, err error) *AppError {
	return Wrap(ErrDevice, message, err)
}

func EmptyArtifact(message string) *AppError {
	return New(ErrEmptyArtifact, message)
}

func MalformedResponse(message string) *AppError {
	return New(ErrMalformedResponse, message)
}
