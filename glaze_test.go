package glaze

import (
	"math"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want Color
	}{
		{"#fff", Color{1, 1, 1, 1}},
		{"#000", Color{0, 0, 0, 1}},
		{"#ff0000", Color{1, 0, 0, 1}},
		{"#00ff00", Color{0, 1, 0, 1}},
		{"#80000000", Color{0, 0, 0, float64(0x80) / 255}},
		{"#ffffffff", Color{1, 1, 1, 1}},
	}
	for _, tc := range cases {
		got, err := ParseColor(tc.in)
		if err != nil {
			t.Errorf("ParseColor(%q) error: %v", tc.in, err)
			continue
		}
		if math.Abs(got.R-tc.want.R) > 1e-9 || math.Abs(got.G-tc.want.G) > 1e-9 ||
			math.Abs(got.B-tc.want.B) > 1e-9 || math.Abs(got.A-tc.want.A) > 1e-9 {
			t.Errorf("ParseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseColorErrors(t *testing.T) {
	for _, in := range []string{"", "fff", "#ff", "#fffff", "#gggggg", "red"} {
		if _, err := ParseColor(in); err == nil {
			t.Errorf("ParseColor(%q) accepted invalid input", in)
		}
	}
}

func TestColorToRGBAPremultiplies(t *testing.T) {
	c := Color{R: 1, G: 0.5, B: 0, A: 0.5}.toRGBA()
	if c.R != 127 || c.A != 127 {
		t.Errorf("premultiplied = %+v, want R=127 A=127", c)
	}
	if c.G != 63 {
		t.Errorf("G = %d, want 63", c.G)
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(-0.5) != 0 || clamp01(1.5) != 1 || clamp01(0.25) != 0.25 {
		t.Error("clamp01 misbehaves")
	}
}

func TestEbitenBlendMapping(t *testing.T) {
	if BlendNormal.EbitenBlend() != ebiten.BlendSourceOver {
		t.Error("BlendNormal should map to source-over")
	}
	if BlendAdd.EbitenBlend() != ebiten.BlendLighter {
		t.Error("BlendAdd should map to lighter")
	}
	if BlendErase.EbitenBlend() != ebiten.BlendDestinationOut {
		t.Error("BlendErase should map to destination-out")
	}
	if BlendBelow.EbitenBlend() != ebiten.BlendDestinationOver {
		t.Error("BlendBelow should map to destination-over")
	}
	if BlendNone.EbitenBlend() != ebiten.BlendCopy {
		t.Error("BlendNone should map to copy")
	}
	if BlendLighten.EbitenBlend().BlendOperationRGB != ebiten.BlendOperationMax {
		t.Error("BlendLighten should use the max operation")
	}
	if BlendDarken.EbitenBlend().BlendOperationRGB != ebiten.BlendOperationMin {
		t.Error("BlendDarken should use the min operation")
	}
	if BlendMode(250).EbitenBlend() != ebiten.BlendSourceOver {
		t.Error("unknown modes should fall back to source-over")
	}
}

func TestDebugToggle(t *testing.T) {
	orig := Debug()
	defer SetDebug(orig)

	SetDebug(true)
	if !Debug() {
		t.Error("Debug() = false after SetDebug(true)")
	}
	SetDebug(false)
	if Debug() {
		t.Error("Debug() = true after SetDebug(false)")
	}
}
