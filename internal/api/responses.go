package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response derived from err, logging
// the full error while the client only sees the sanitized message.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)

	log := slog.Default()
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	} else {
		log.DebugContext(r.Context(), "request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}

	RespondWithJSON(w, status, ErrorResponse{Error: GetSafeErrorMessage(err)})
}
