package httpx

import (
	"net/http"

	"github.com/sundayezeilo/tasklinks/internal/errx"
)

type kindResponse struct {
	status int
	code   string
}

// kindResponses is the wire contract for every error kind. Kinds missing
// here, Unknown included, are reported as internal errors.
var kindResponses = map[errx.Kind]kindResponse{
	errx.NotFound:    {http.StatusNotFound, "not_found"},
	errx.Conflict:    {http.StatusConflict, "conflict"},
	errx.Invalid:     {http.StatusBadRequest, "invalid_input"},
	errx.Unavailable: {http.StatusServiceUnavailable, "unavailable"},
	errx.Internal:    {http.StatusInternalServerError, "internal_error"},
	errx.Exhausted:   {http.StatusInternalServerError, "code_space_exhausted"},
}

func responseFor(kind errx.Kind) kindResponse {
	if resp, ok := kindResponses[kind]; ok {
		return resp
	}
	return kindResponse{http.StatusInternalServerError, "internal_error"}
}

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
func ErrorKindToStatus(kind errx.Kind) int {
	return responseFor(kind).status
}

// ErrorKindToCode maps errx.Kind to the "error" field of JSON error bodies.
func ErrorKindToCode(kind errx.Kind) string {
	return responseFor(kind).code
}
