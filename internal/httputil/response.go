package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the error body every endpoint returns. Code carries a
// machine-readable identifier so clients do not match on message text.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// The status line is already gone; all we can do is record it
		slog.Error("failed to encode response body", "status", statusCode, "error", err)
	}
}

// RespondError writes a JSON error body with only a message.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// RespondErrorWithCode writes a JSON error body with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message, Code: code}, statusCode)
}
