package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/paramstore/internal/audit/domain"
	"github.com/smallbiznis/paramstore/internal/authorization"
	"github.com/smallbiznis/paramstore/internal/observability/logger"
	"github.com/smallbiznis/paramstore/internal/override"
	parameterdomain "github.com/smallbiznis/paramstore/internal/parameter/domain"
	"go.uber.org/zap"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type conflictPayload struct {
	CurrentVersion    int64     `json:"currentVersion"`
	ProvidedVersion   int64     `json:"providedVersion"`
	LastModifiedBy    string    `json:"lastModifiedBy"`
	LastModifiedAt    time.Time `json:"lastModifiedAt"`
	ConflictingFields []string  `json:"conflictingFields"`
}

type errorPayload struct {
	Type          string            `json:"type"`
	Message       string            `json:"message"`
	Errors        []ValidationError `json:"errors,omitempty"`
	Conflict      *conflictPayload  `json:"conflict,omitempty"`
	Resolution    []string          `json:"resolution,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// Conflict resolutions offered to the caller; none of them is applied automatically.
var conflictResolutions = []string{"force_update", "fetch_latest", "cancel"}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusInternalServerError {
			payload.CorrelationID = ulid.Make().String()
			logger.FromContext(c.Request.Context()).Error("unhandled error",
				zap.String("correlation_id", payload.CorrelationID),
				zap.String("route", c.FullPath()),
				zap.Error(lastErr.Err),
			)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErr *parameterdomain.ValidationError
	if errors.As(err, &fieldErr) {
		code := errorCode(fieldErr.Err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   fieldErr.Field,
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if isValidationError(err) {
		code := errorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var conflict *parameterdomain.ConflictError
	if errors.As(err, &conflict) {
		fields := conflict.ConflictingFields
		if fields == nil {
			fields = []string{}
		}
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "the parameter was modified by someone else",
			Conflict: &conflictPayload{
				CurrentVersion:    conflict.CurrentVersion,
				ProvidedVersion:   conflict.ProvidedVersion,
				LastModifiedBy:    conflict.LastModifiedBy,
				LastModifiedAt:    conflict.LastModifiedAt,
				ConflictingFields: fields,
			},
			Resolution: conflictResolutions,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, parameterdomain.ErrMissingActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, parameterdomain.ErrDuplicateKey):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_key",
			Message: "a parameter with this key already exists",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, parameterdomain.ErrTransactionTimeout):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "transaction_timeout",
			Message: "the operation did not complete in time and was rolled back",
		}
	case errors.Is(err, parameterdomain.ErrConcurrentWriteLimit),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, parameterdomain.ErrInvalidID),
		errors.Is(err, parameterdomain.ErrInvalidKey),
		errors.Is(err, parameterdomain.ErrInvalidPageToken),
		errors.Is(err, parameterdomain.ErrInvalidVersion),
		errors.Is(err, parameterdomain.ErrEmptyUpdate),
		errors.Is(err, override.ErrInvalidCountryCode),
		errors.Is(err, override.ErrInvalidValue),
		errors.Is(err, override.ErrInvalidMode),
		errors.Is(err, override.ErrOverrideNotFound),
		errors.Is(err, auditdomain.ErrInvalidParameterID),
		errors.Is(err, auditdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, parameterdomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func errorCode(err error) string {
	if err == nil {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_update":
		return "the update does not change any field"
	case "override_not_found":
		return "no override exists for this country"
	case "invalid_country_code":
		return "country code must be two letters"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog returns the error type and code recorded on the request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
