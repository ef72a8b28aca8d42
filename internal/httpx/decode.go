package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sundayezeilo/tasklinks/internal/errx"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (1MB).
	MaxRequestBodySize = 1 << 20
)

// DecodeJSON decodes a single JSON object from the request body.
// Every failure is returned as an errx.Invalid error.
func DecodeJSON[T any](r *http.Request) (T, error) {
	const op = "httpx.DecodeJSON"
	var zero T

	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer func() {
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var v T
	if err := decoder.Decode(&v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return zero, errx.E(op, errx.Invalid, fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset))
		case errors.As(err, &unmarshalErr):
			return zero, errx.Field(op, unmarshalErr.Field, fmt.Sprintf("invalid value for field %q", unmarshalErr.Field))
		case errors.As(err, &maxBytesErr):
			return zero, errx.E(op, errx.Invalid, fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize))
		case errors.Is(err, io.EOF):
			return zero, errx.E(op, errx.Invalid, errors.New("request body is empty"))
		case errors.Is(err, io.ErrUnexpectedEOF):
			return zero, errx.E(op, errx.Invalid, errors.New("malformed JSON: unexpected end of input"))
		default:
			return zero, errx.E(op, errx.Invalid, fmt.Errorf("failed to decode JSON: %w", err))
		}
	}

	if decoder.More() {
		return zero, errx.E(op, errx.Invalid, errors.New("request body contains multiple JSON objects"))
	}

	return v, nil
}
