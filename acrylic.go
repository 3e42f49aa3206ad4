package glaze

// Acrylic-style starters: a blurred backdrop sample tinted toward a color,
// with an optional tiled noise texture layered on top to break up banding.

// AcrylicOptions configures the acrylic starters. Zero values pick the
// defaults noted per field.
type AcrylicOptions struct {
	// Tint is the color mixed over the blurred backdrop.
	Tint Color
	// TintMix is the tint strength, strictly inside (0, 1). Zero defaults
	// to 0.4.
	TintMix float64
	// BlurAmount is the backdrop blur in pixels. Zero defaults to 16.
	BlurAmount float64
	// NoiseURI optionally names a tileable noise texture. Empty skips the
	// noise layer.
	NoiseURI string
	// NoiseOpacity is the noise layer strength. Zero defaults to 0.04.
	NoiseOpacity float64
}

func (o AcrylicOptions) withDefaults() AcrylicOptions {
	if o.TintMix == 0 {
		o.TintMix = 0.4
	}
	if o.TintMix < 0 || o.TintMix >= 1 {
		panic(&RangeError{Op: "Acrylic TintMix", Value: o.TintMix, Min: 0, Max: 1, Exclusive: true})
	}
	if o.BlurAmount == 0 {
		o.BlurAmount = 16
	}
	if o.NoiseOpacity == 0 {
		o.NoiseOpacity = 0.04
	}
	return o
}

// FromBackdropAcrylic starts an acrylic pipeline over the app-local
// backdrop: backdrop → blur → tint → optional noise blend.
func FromBackdropAcrylic(opts AcrylicOptions) Pipeline {
	return acrylic(FromBackdropBrush(), opts)
}

// FromHostBackdropAcrylic starts an acrylic pipeline over the host/screen
// backdrop.
func FromHostBackdropAcrylic(opts AcrylicOptions) Pipeline {
	return acrylic(FromHostBackdropBrush(), opts)
}

func acrylic(base Pipeline, opts AcrylicOptions) Pipeline {
	opts = opts.withDefaults()
	// Tint's factor weights the content side, so tint strength inverts.
	p := base.Blur(opts.BlurAmount).Tint(opts.Tint, 1-opts.TintMix)
	if opts.NoiseURI == "" {
		return p
	}
	noise := FromTiles(opts.NoiseURI, CacheDefault, DPISource).Opacity(opts.NoiseOpacity)
	return p.Blend(noise, BlendAdd)
}
