package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/kotoba-api/internal/api/shared"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/service/auth"
	"github.com/phrazzld/kotoba-api/internal/service/practice"
	"github.com/phrazzld/kotoba-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidSubject),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, practice.ErrSessionNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, practice.ErrSessionNotFound),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, practice.ErrStaleAction),
		errors.Is(err, practice.ErrAdvanceInFlight),
		errors.Is(err, practice.ErrSessionNotRunning),
		store.IsDuplicateError(err):
		return http.StatusConflict

	// Nothing selectable
	case errors.Is(err, practice.ErrEmptySession):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, practice.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidLevelTag),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest

	// Storage down
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidSubject),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, practice.ErrSessionNotOwned):
		return "You do not own this session"

	case errors.Is(err, practice.ErrSessionNotFound):
		return "Session not found"

	case errors.Is(err, practice.ErrAdvanceInFlight):
		return "Progress for the current item is still being saved"

	case errors.Is(err, practice.ErrStaleAction):
		return "Action does not match the current step"

	case errors.Is(err, practice.ErrSessionNotRunning):
		return "Session is not running"

	case errors.Is(err, practice.ErrEmptySession):
		return "Nothing to practice right now"

	case errors.Is(err, practice.ErrInvalidAction):
		return "Action not allowed in the current step"

	case errors.Is(err, domain.ErrInvalidLevelTag):
		return "Invalid level"

	case errors.Is(err, practice.ErrInvalidInput),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return "Invalid request"

	case errors.Is(err, store.ErrUnavailable):
		return "Service temporarily unavailable"
	}

	var serviceErr *practice.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Operation {
		case "start_session":
			return "Failed to start session"
		case "restart_session":
			return "Failed to restart session"
		case "overview":
			return "Failed to load progress overview"
		}
	}
	return "An unexpected error occurred"
}

// SanitizeValidationError turns validator output into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", jsonFieldName(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// jsonFieldName converts a Go field name such as WordsPerSession to its
// wire name words_per_session.
func jsonFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(field[i-1] >= 'A' && field[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gt", "gte", "min":
		return "too small"
	case "lte", "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err. A non-empty
// message overrides the mapped one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
