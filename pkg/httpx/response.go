// Package httpx writes the JSON bodies and error envelopes of the KPI API.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Retryable is set while no snapshot has been published yet.
	Retryable bool `json:"retryable,omitempty"`
}

// RespondJSON writes data as JSON with the given status.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "status", status, "error", err)
	}
}

// StatusFor maps data layer and storage errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Fail answers with the status StatusFor picks for err.
func Fail(w http.ResponseWriter, err error) {
	RespondError(w, StatusFor(err), err)
}

// RespondError writes err under the given status. Server errors are logged.
func RespondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.Error("request failed", "status", status, "error", err)
	}
	RespondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   err.Error(),
		Retryable: errors.Is(err, engine.ErrNotInitialized),
	})
}

// RespondErrorString writes a client error message.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}
