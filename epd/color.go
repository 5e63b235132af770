package epd

import (
	"fmt"
	"strings"
)

// Panel geometry of the 2.13" (D) flexible display.
const (
	Width  = 104
	Height = 212
)

// FrameLen is the size in bytes of a full frame buffer.
const FrameLen = (Width + 7) / 8 * Height

// BufferLen returns the number of bytes needed to hold a width x height
// 1bpp image, with each row padded to a whole byte.
func BufferLen(width, height int) int {
	return (width + 7) / 8 * height
}

// Color is the state of a single pixel.
type Color uint8

const (
	White Color = iota
	Black
)

// Byte returns the value of a byte whose eight pixels all have color c.
func (c Color) Byte() byte {
	if c == Black {
		return 0x00
	}
	return 0xff
}

// Inverse returns the other color.
func (c Color) Inverse() Color {
	if c == Black {
		return White
	}
	return Black
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// ParseColor accepts "white" or "black", case insensitive.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white":
		return White, nil
	case "black":
		return Black, nil
	}
	return White, fmt.Errorf("unknown color %q", s)
}

// RefreshMode selects the waveform family used on the next refresh.
type RefreshMode uint8

const (
	// Full redraws the whole panel with the slow, ghost free waveform. It is
	// the zero value, so an unspecified mode resolves to it.
	Full RefreshMode = iota
	// Quick uses the short partial refresh waveform.
	Quick
)

func (m RefreshMode) String() string {
	if m == Quick {
		return "quick"
	}
	return "full"
}
