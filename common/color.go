package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Color is an RGBA color with float components in [0, 1], stored in sRGB space.
type Color struct {
	R, G, B, A float64
}

// Palette colors used by the renderer. Values are sRGB.
var (
	// MildBlack is the first of the two alternating clear colors.
	MildBlack = Color{R: 0x1e / 255.0, G: 0x1e / 255.0, B: 0x1e / 255.0, A: 1}
	// NearBlack is the second of the two alternating clear colors.
	NearBlack = Color{R: 0x12 / 255.0, G: 0x12 / 255.0, B: 0x12 / 255.0, A: 1}
)

// Linear converts the color from sRGB to linear space. Alpha is left untouched.
//
// Returns:
//   - Color: the linear-space color
func (c Color) Linear() Color {
	return Color{
		R: srgbToLinear(c.R),
		G: srgbToLinear(c.G),
		B: srgbToLinear(c.B),
		A: Clamp(c.A, 0, 1),
	}
}

// WGPU converts the color into a wgpu clear value in linear space, which is what an sRGB surface expects.
//
// Returns:
//   - wgpu.Color: the linear clear value
func (c Color) WGPU() wgpu.Color {
	l := c.Linear()
	return wgpu.Color{R: l.R, G: l.G, B: l.B, A: l.A}
}

// Hex formats the color as #rrggbbaa.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", channelByte(c.R), channelByte(c.G), channelByte(c.B), channelByte(c.A))
}

// ParseHexColor parses #rgb, #rrggbb or #rrggbbaa (the leading # is optional) into an sRGB Color.
//
// Parameters:
//   - s: the hex color string
//
// Returns:
//   - Color: the parsed color, alpha 1 when omitted
//   - error: an error if s is not a valid hex color
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return Color{
		R: float64((v>>24)&0xff) / 255,
		G: float64((v>>16)&0xff) / 255,
		B: float64((v>>8)&0xff) / 255,
		A: float64(v&0xff) / 255,
	}, nil
}

func srgbToLinear(v float64) float64 {
	v = Clamp(v, 0, 1)
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func channelByte(v float64) uint8 {
	return uint8(math.Round(Clamp(v, 0, 1) * 255))
}
