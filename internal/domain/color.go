package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ErrInvalidColor is returned for text that is neither a hex color nor a
// known color name.
var ErrInvalidColor = errors.New("invalid color")

// DefaultColor is the brush color a participant starts with.
const DefaultColor Color = "red"

// Color is a validated stroke color. The text the participant chose is kept
// verbatim so the relay can forward it unchanged.
type Color string

// ParseColor validates s as "#rgb", "#rgba", "#rrggbb", "#rrggbbaa" or a
// CSS/SVG color name. Matching is case-insensitive.
func ParseColor(s string) (Color, error) {
	if _, err := parseRGBA(s); err != nil {
		return "", err
	}
	return Color(s), nil
}

// MustParseColor is ParseColor for constants; it panics on invalid input.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the color text as given.
func (c Color) String() string { return string(c) }

// Valid reports whether c parses.
func (c Color) Valid() bool {
	_, err := parseRGBA(string(c))
	return err == nil
}

// RGBA resolves the color to non-premultiplied RGBA. Invalid colors resolve
// to opaque black.
func (c Color) RGBA() color.NRGBA {
	rgba, err := parseRGBA(string(c))
	if err != nil {
		return color.NRGBA{A: 0xff}
	}
	return rgba
}

// UnmarshalJSON accepts only valid color strings.
func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func parseRGBA(s string) (color.NRGBA, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	if text == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}

	if strings.HasPrefix(text, "#") {
		return parseHex(text[1:], s)
	}

	named, ok := colornames.Map[text]
	if !ok {
		return color.NRGBA{}, fmt.Errorf("%w: unknown name %q", ErrInvalidColor, s)
	}
	return color.NRGBA{R: named.R, G: named.G, B: named.B, A: named.A}, nil
}

func parseHex(hex, orig string) (color.NRGBA, error) {
	switch len(hex) {
	case 3, 4:
		// #rgb and #rgba expand each digit: "f" -> "ff"
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: bad hex length %q", ErrInvalidColor, orig)
	}
	if len(hex) == 6 {
		hex += "ff"
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: bad hex %q", ErrInvalidColor, orig)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
