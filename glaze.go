package glaze

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at render submission time.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is an opaque white, the identity for tinting.
var ColorWhite = Color{1, 1, 1, 1}

// ColorTransparent is fully transparent black.
var ColorTransparent = Color{0, 0, 0, 0}

// ParseColor parses "#rgb", "#rrggbb", or "#aarrggbb" hex notation.
func ParseColor(s string) (Color, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return Color{}, fmt.Errorf("glaze: color %q missing # prefix", s)
	}
	comp := func(sub string) (float64, error) {
		if len(sub) == 1 {
			sub += sub
		}
		v, err := strconv.ParseUint(sub, 16, 8)
		return float64(v) / 255, err
	}
	var parts []string
	switch len(hex) {
	case 3:
		parts = []string{"ff", hex[0:1], hex[1:2], hex[2:3]}
	case 6:
		parts = []string{"ff", hex[0:2], hex[2:4], hex[4:6]}
	case 8:
		parts = []string{hex[0:2], hex[2:4], hex[4:6], hex[6:8]}
	default:
		return Color{}, fmt.Errorf("glaze: color %q has %d hex digits, want 3, 6, or 8", s, len(hex))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := comp(p)
		if err != nil {
			return Color{}, fmt.Errorf("glaze: color %q: %w", s, err)
		}
		vals[i] = v
	}
	return Color{A: vals[0], R: vals[1], G: vals[2], B: vals[3]}, nil
}

// ToRGBA converts the color to a premultiplied color.RGBA.
func (c Color) ToRGBA() color.RGBA {
	p := c.toRGBA()
	return color.RGBA{R: p.R, G: p.G, B: p.B, A: p.A}
}

// toRGBA converts a glaze Color to a color.RGBA (premultiplied).
func (c Color) toRGBA() colorRGBA {
	return colorRGBA{
		R: uint8(clamp01(c.R*c.A) * 255),
		G: uint8(clamp01(c.G*c.A) * 255),
		B: uint8(clamp01(c.B*c.A) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

// colorRGBA implements the color.Color interface for image.Fill.
type colorRGBA struct {
	R, G, B, A uint8
}

func (c colorRGBA) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R) * 0x101
	g = uint32(c.G) * 0x101
	b = uint32(c.B) * 0x101
	a = uint32(c.A) * 0x101
	return
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BlendMode selects a compositing operation. Each maps to a specific ebiten.Blend value.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendMultiply                  // multiply (source * destination; only darkens)
	BlendScreen                    // screen (1 - (1-src)*(1-dst); only brightens)
	BlendLighten                   // per-channel max
	BlendDarken                    // per-channel min
	BlendErase                     // destination-out (punch transparent holes)
	BlendMask                      // clip destination to source alpha
	BlendBelow                     // destination-over (draw behind existing content)
	BlendNone                      // opaque copy (skip blending)
)

// EbitenBlend returns the ebiten.Blend value corresponding to this BlendMode.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendNormal:
		return ebiten.BlendSourceOver
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendMultiply:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendScreen:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendLighten:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOne,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOne,
			BlendOperationRGB:           ebiten.BlendOperationMax,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendDarken:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOne,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOne,
			BlendOperationRGB:           ebiten.BlendOperationMin,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendErase:
		return ebiten.BlendDestinationOut
	case BlendMask:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorZero,
			BlendFactorSourceAlpha:      ebiten.BlendFactorZero,
			BlendFactorDestinationRGB:   ebiten.BlendFactorSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendBelow:
		return ebiten.BlendDestinationOver
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}

// Placement controls which side of a two-input merge the argument pipeline
// lands on. The default places the argument in the foreground.
type Placement uint8

const (
	PlacementForeground Placement = iota // argument draws over the receiver
	PlacementBackground                  // argument draws under the receiver
)

// DPIMode controls how decoded images are scaled for the display.
type DPIMode uint8

const (
	DPISource    DPIMode = iota // use stored pixels as-is
	DPILogical96                // treat stored pixels as 96-DPI logical units
	DPIDisplay                  // resample for the monitor's device scale factor
)

// CacheMode controls whether a decoded image may be served from the
// compositor's image cache.
type CacheMode uint8

const (
	CacheDefault CacheMode = iota // reuse a previously decoded image for the same URI
	CacheNone                     // always decode fresh
)
