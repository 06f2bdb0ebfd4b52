package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
)

// respondServiceError maps a service error onto the taxonomy's status code.
// Internal details of 5xx errors are logged, not returned.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	logger := logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"code":     catErr.Code,
		"category": string(catErr.Category),
	})

	if catErr.StatusCode >= http.StatusInternalServerError {
		logger.ErrorWithErr("Request failed", err)
		message := catErr.Message
		if catErr.Category == apperrors.CategorySystem {
			message = "An internal error occurred"
		}
		respondError(w, catErr.StatusCode, catErr.Code, message, catErr.Details)
		return
	}

	logger.WithError(err).Debug("Request rejected")
	if catErr.Category == apperrors.CategoryRateLimit {
		if retryAfter, ok := catErr.Details["retryAfter"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
	}
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}
