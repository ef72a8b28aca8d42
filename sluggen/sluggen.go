// Package sluggen generates short codes and picks free ones.
// Generators should be safe for concurrent use.
package sluggen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// maxUnbiased is the largest multiple of 62 that fits in a byte.
	// Bytes at or above it are discarded so every character is equally likely.
	maxUnbiased = 256 - 256%len(base62Chars)
)

// ErrExhausted is returned by Unique when every attempt collided.
var ErrExhausted = errors.New("sluggen: no free code within retry bound")

// Generator generates URL codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// base62Generator implements Generator over the base62 alphabet.
type base62Generator struct{}

// NewBase62 returns a new base62 code generator backed by crypto/rand.
func NewBase62() Generator {
	return &base62Generator{}
}

// Generate returns a uniformly random base62 string of the given length.
func (g *base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, base62Chars[int(b)%len(base62Chars)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// IsBase62 reports whether s is non-empty and drawn only from the base62 alphabet.
func IsBase62(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

// ExistsFunc reports whether a code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Unique draws candidates from gen until exists reports a free one, calling
// exists at most maxAttempts times. It reserves nothing: the caller persists
// the code and must treat a later uniqueness violation as a collision.
func Unique(ctx context.Context, gen Generator, length, maxAttempts int, exists ExistsFunc) (string, error) {
	if maxAttempts <= 0 {
		return "", errors.New("max attempts must be positive")
	}

	for range maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := gen.Generate(length)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code %q: %w", code, err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w (%d attempts, length %d)", ErrExhausted, maxAttempts, length)
}
