package qrcode

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// DefaultColor is the foreground used when no color is requested.
const DefaultColor = "#000000"

// ParseColor accepts "#RRGGBB", "RRGGBB", "#RGB" or "RGB". Empty means DefaultColor.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultColor
	}
	hex := strings.TrimPrefix(s, "#")

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return color.RGBA{}, fmt.Errorf("invalid color %q (want #RRGGBB or #RGB)", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q (want #RRGGBB or #RGB)", s)
	}

	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}

// FormatColor renders c as lowercase "rrggbb" without the leading '#',
// which is safe to place in a query string.
func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}
