package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mesh-intelligence/watchlist/internal/poster"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// Error codes carried in error bodies.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeStoreRejected = "STORE_REJECTED"
	CodeUnavailable   = "STORE_UNAVAILABLE"
	CodeNotConfigured = "NOT_CONFIGURED"
	CodeInternal      = "INTERNAL_ERROR"
)

// Error bodies have the shape {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes an error body with the given status.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// classify maps an error to its HTTP status and code.
func classify(err error) (int, string) {
	switch {
	case types.IsValidation(err):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, types.ErrItemMissing):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, types.ErrStoreWrite):
		return http.StatusBadGateway, CodeStoreRejected
	case errors.Is(err, types.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, poster.ErrDisabled):
		return http.StatusNotImplemented, CodeNotConfigured
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
