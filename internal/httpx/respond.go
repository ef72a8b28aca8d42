package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sundayezeilo/tasklinks/internal/errx"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left but to log.
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// WriteServiceError converts an errx-classified error into a JSON error response.
// Server-side kinds get a generic message so store internals never reach clients.
func WriteServiceError(w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)
	status := ErrorKindToStatus(kind)
	code := ErrorKindToCode(kind)

	if status >= http.StatusInternalServerError {
		msg := "an unexpected error occurred"
		switch kind {
		case errx.Unavailable:
			msg = "the service is temporarily unavailable, please try again"
		case errx.Exhausted:
			msg = "could not allocate a short code, please try again later"
		}
		WriteError(w, status, code, msg, nil)
		return
	}

	if fe, ok := errx.FieldOf(err); ok {
		WriteError(w, status, code, fe.Message, map[string]string{"field": fe.Field})
		return
	}

	WriteError(w, status, code, clientMessage(err), nil)
}

// clientMessage strips errx op prefixes and returns the root cause message.
func clientMessage(err error) string {
	for {
		var e *errx.Error
		if !errors.As(err, &e) || e.Err == nil {
			return err.Error()
		}
		err = e.Err
	}
}

// WriteNoContent writes an empty 204 response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WritePNG writes raw PNG bytes.
func WritePNG(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}
