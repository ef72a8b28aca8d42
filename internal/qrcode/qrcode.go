// Package qrcode renders payloads as scannable PNG images.
package qrcode

import (
	"errors"
	"fmt"
	"image/color"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize    = 256
	MaxPayloadSize = 2048
)

// Renderer maps a payload and a foreground color to PNG bytes.
// Implementations must not have side effects.
type Renderer interface {
	Render(payload string, fg color.Color) ([]byte, error)
}

// PNGRenderer renders QR codes with low error correction on a white background.
type PNGRenderer struct {
	size int
}

// NewPNGRenderer returns a renderer producing size x size images.
// Non-positive sizes fall back to DefaultSize.
func NewPNGRenderer(size int) *PNGRenderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &PNGRenderer{size: size}
}

func (r *PNGRenderer) Render(payload string, fg color.Color) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("payload cannot be empty")
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too long (max %d bytes)", MaxPayloadSize)
	}
	if fg == nil {
		fg = color.Black
	}

	q, err := goqrcode.New(payload, goqrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	q.ForegroundColor = fg
	q.BackgroundColor = color.White

	png, err := q.PNG(r.size)
	if err != nil {
		return nil, fmt.Errorf("render qr png: %w", err)
	}
	return png, nil
}
