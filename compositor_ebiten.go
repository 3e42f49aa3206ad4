package glaze

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
)

// surfaceSource is implemented by resources that expose a paintable surface
// (decoded images and backdrop samples).
type surfaceSource interface {
	Image() *ebiten.Image
}

// --- Surface pool ---

// surfacePool manages reusable offscreen ebiten.Images keyed by power-of-two
// dimensions. Used only from Paint, which runs on the render thread, so no
// locking.
type surfacePool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// acquire returns a cleared offscreen image with at least (w, h) pixels.
// Dimensions are rounded up to the next power of two; callers track their
// logical size separately.
func (p *surfacePool) acquire(w, h int) *ebiten.Image {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			img.Clear()
			return img
		}
	}

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, pw, ph),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// release returns an image to the pool. Images are cleared on the next
// acquire, not here.
func (p *surfacePool) release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())

	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

// --- Backdrop sample ---

// BackdropSample is a shared surface representing what is visually behind a
// brush. The application refreshes its contents each frame by drawing the
// occluded content into Image; brushes sourced from the sample pick the new
// contents up on their next Paint. Samples are created through the package
// caches, one live instance per display context and kind.
type BackdropSample struct {
	kind     BackdropKind
	img      *ebiten.Image
	disposed bool
}

// Kind reports whether this sample covers app-local or host/screen content.
func (s *BackdropSample) Kind() BackdropKind {
	return s.kind
}

// Alive reports whether the sample is still usable.
func (s *BackdropSample) Alive() bool {
	return !s.disposed && s.img != nil
}

// Dispose deallocates the sample surface.
func (s *BackdropSample) Dispose() {
	if s.img != nil {
		s.img.Deallocate()
		s.img = nil
	}
	s.disposed = true
}

// Image returns the sample surface. The application draws occluded content
// into it; brushes read from it.
func (s *BackdropSample) Image() *ebiten.Image {
	return s.img
}

// --- Compositor ---

// contextSerial mints display-context identities, one per compositor.
var contextSerial atomic.Uint64

// EbitenCompositor is the default Compositor: it realizes description trees
// into Ebitengine draws. Construction is cheap; one compositor should exist
// per display context.
type EbitenCompositor struct {
	id     uint64
	loader imageLoader

	mu                   sync.Mutex
	backdropW, backdropH int
}

// NewEbitenCompositor creates a compositor bound to a fresh display context
// identity. Backdrop samples default to 256×256 until SetBackdropSize.
func NewEbitenCompositor() *EbitenCompositor {
	return &EbitenCompositor{
		id:        contextSerial.Add(1),
		backdropW: 256,
		backdropH: 256,
	}
}

// ContextID identifies this compositor's display context.
func (c *EbitenCompositor) ContextID() uint64 {
	return c.id
}

// SetBackdropSize sets the dimensions of subsequently created backdrop
// samples, typically the window size in device pixels.
func (c *EbitenCompositor) SetBackdropSize(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	c.mu.Lock()
	c.backdropW, c.backdropH = w, h
	c.mu.Unlock()
}

// DecodeImage loads the image at uri through the loader, honoring the DPI
// and cache modes. Decode failure binds a transparent placeholder.
func (c *EbitenCompositor) DecodeImage(ctx context.Context, uri string, dpi DPIMode, cache CacheMode) (Resource, error) {
	return c.loader.load(ctx, uri, dpi, cache)
}

// CreateBackdropSample creates a fresh backdrop surface of the given kind.
func (c *EbitenCompositor) CreateBackdropSample(kind BackdropKind) (Resource, error) {
	if kind != BackdropAppLocal && kind != BackdropHostScreen {
		return nil, fmt.Errorf("glaze: invalid backdrop kind %d", kind)
	}
	c.mu.Lock()
	w, h := c.backdropW, c.backdropH
	c.mu.Unlock()
	return &BackdropSample{kind: kind, img: ebiten.NewImage(w, h)}, nil
}

// CreateEffectFactory compiles a realized description tree into a brush
// factory. The tree must be custom-free and structurally valid.
func (c *EbitenCompositor) CreateEffectFactory(desc *Description, animatable []string) (EffectFactory, error) {
	if err := validateRealized(desc); err != nil {
		return nil, err
	}
	return &ebitenEffectFactory{
		desc:       desc.clone(),
		animatable: append([]string(nil), animatable...),
	}, nil
}

// validateRealized checks that a tree handed to the factory is fully
// realized: known kinds, correct input arity, no custom nodes left.
func validateRealized(d *Description) error {
	if d == nil {
		return ErrInvalidDescription
	}
	var want int
	switch d.Kind {
	case OpColor, OpSource:
		want = 0
	case OpBlur, OpSaturation, OpOpacity:
		want = 1
	case OpArithmetic, OpCrossFade, OpBlend:
		want = 2
	case OpCustom:
		return fmt.Errorf("%w: unresolved custom node", ErrInvalidDescription)
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidDescription, d.Kind)
	}
	if len(d.Inputs) != want {
		return fmt.Errorf("%w: %s has %d inputs, want %d", ErrInvalidDescription, d.Kind, len(d.Inputs), want)
	}
	for _, in := range d.Inputs {
		if err := validateRealized(in); err != nil {
			return err
		}
	}
	return nil
}

type ebitenEffectFactory struct {
	desc       *Description
	animatable []string
}

// CreateBrush instantiates a brush over the factory's description tree. The
// tree is cloned per brush so parameter overrides never leak between
// brushes built from one factory.
func (f *ebitenEffectFactory) CreateBrush() (BrushHandle, error) {
	params := make(map[string]float64)
	collectParameterValues(f.desc, params)
	return &ebitenBrush{
		desc:    f.desc.clone(),
		params:  params,
		sources: make(map[string]surfaceSource),
	}, nil
}

// --- Brush handle ---

// ebitenBrush renders a realized description tree into a destination
// surface. Paint must run on the render thread; SetParameter and
// BindNamedResource may be called from anywhere.
type ebitenBrush struct {
	desc *Description

	mu      sync.Mutex
	params  map[string]float64
	sources map[string]surfaceSource

	pool      surfacePool
	blurTemps []*ebiten.Image
	imgOp     ebiten.DrawImageOptions
}

// BindNamedResource binds a resolved resource into the named slot. The
// resource must expose a paintable surface.
func (b *ebitenBrush) BindNamedResource(name string, r Resource) error {
	if r == nil {
		return fmt.Errorf("glaze: bind %q: nil resource", name)
	}
	src, ok := r.(surfaceSource)
	if !ok {
		return fmt.Errorf("glaze: bind %q: resource %T exposes no surface", name, r)
	}
	b.mu.Lock()
	b.sources[name] = src
	b.mu.Unlock()
	return nil
}

// SetParameter overrides an animatable value used on the next Paint.
func (b *ebitenBrush) SetParameter(path string, v float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.params[path]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, path)
	}
	b.params[path] = v
	return nil
}

// value returns the effective amount/factor for a node, honoring parameter
// overrides.
func (b *ebitenBrush) value(d *Description, fallback float64) float64 {
	if d.AnimPath == "" {
		return fallback
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.params[d.AnimPath]; ok {
		return v
	}
	return fallback
}

// source returns the bound surface for a placeholder name, or nil when the
// slot is unbound (the slot then renders transparent).
func (b *ebitenBrush) source(name string) surfaceSource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sources[name]
}

// Paint renders the brush into dst at dst's full size.
func (b *ebitenBrush) Paint(dst *ebiten.Image) {
	bounds := dst.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return
	}
	out := b.render(b.desc, w, h)
	op := &b.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Translate(float64(bounds.Min.X), float64(bounds.Min.Y))
	op.Blend = ebiten.BlendSourceOver
	op.Filter = ebiten.FilterNearest
	dst.DrawImage(clipLogical(out, w, h), op)
	b.pool.release(out)
}

// clipLogical returns the (w, h) sub-image of a pooled pow2 surface.
func clipLogical(img *ebiten.Image, w, h int) *ebiten.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return img.SubImage(image.Rect(b.Min.X, b.Min.Y, b.Min.X+w, b.Min.Y+h)).(*ebiten.Image)
}

// render realizes one node into a pooled surface of logical size (w, h).
// Callers release the returned surface.
func (b *ebitenBrush) render(d *Description, w, h int) *ebiten.Image {
	switch d.Kind {
	case OpColor:
		out := b.pool.acquire(w, h)
		clipLogical(out, w, h).Fill(d.Color.toRGBA())
		return out

	case OpSource:
		return b.renderSource(d, w, h)

	case OpBlur:
		src := b.render(d.Inputs[0], w, h)
		out := b.pool.acquire(w, h)
		b.kawaseBlur(clipLogical(src, w, h), clipLogical(out, w, h), b.value(d, d.Amount))
		b.pool.release(src)
		return out

	case OpSaturation:
		src := b.render(d.Inputs[0], w, h)
		out := b.pool.acquire(w, h)
		b.drawColorMatrix(clipLogical(out, w, h), clipLogical(src, w, h), saturationMatrix(clamp01(b.value(d, d.Amount))))
		b.pool.release(src)
		return out

	case OpOpacity:
		src := b.render(d.Inputs[0], w, h)
		out := b.pool.acquire(w, h)
		op := &b.imgOp
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Blend = ebiten.BlendSourceOver
		op.Filter = ebiten.FilterNearest
		op.ColorScale.ScaleAlpha(float32(clamp01(b.value(d, d.Amount))))
		clipLogical(out, w, h).DrawImage(clipLogical(src, w, h), op)
		b.pool.release(src)
		return out

	case OpArithmetic, OpCrossFade:
		// Both realize as a weighted additive composite:
		// out = fg*factor + bg*(1-factor).
		factor := clamp01(b.value(d, d.Factor))
		fg := b.render(d.Inputs[0], w, h)
		bg := b.render(d.Inputs[1], w, h)
		out := b.pool.acquire(w, h)
		target := clipLogical(out, w, h)
		op := &b.imgOp
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Filter = ebiten.FilterNearest
		wBg := float32(1 - factor)
		op.ColorScale.Scale(wBg, wBg, wBg, wBg)
		op.Blend = ebiten.BlendSourceOver
		target.DrawImage(clipLogical(bg, w, h), op)
		op.ColorScale.Reset()
		wFg := float32(factor)
		op.ColorScale.Scale(wFg, wFg, wFg, wFg)
		op.Blend = ebiten.BlendLighter
		target.DrawImage(clipLogical(fg, w, h), op)
		b.pool.release(fg)
		b.pool.release(bg)
		return out

	case OpBlend:
		out := b.render(d.Inputs[1], w, h)
		fg := b.render(d.Inputs[0], w, h)
		op := &b.imgOp
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Filter = ebiten.FilterNearest
		op.Blend = d.Mode.EbitenBlend()
		clipLogical(out, w, h).DrawImage(clipLogical(fg, w, h), op)
		b.pool.release(fg)
		return out

	default:
		// Unreachable for factory-validated trees.
		debugf("paint skipped unexpected node %s", d.Kind)
		return b.pool.acquire(w, h)
	}
}

// renderSource fills a surface from a bound placeholder: stretched for plain
// images and backdrops, repeated for tiles. An unbound slot stays
// transparent, the documented missing-asset fallback.
func (b *ebitenBrush) renderSource(d *Description, w, h int) *ebiten.Image {
	out := b.pool.acquire(w, h)
	src := b.source(d.Param)
	if src == nil {
		debugf("source %q unbound, rendering transparent", d.Param)
		return out
	}
	img := src.Image()
	if img == nil {
		return out
	}
	target := clipLogical(out, w, h)
	sb := img.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw <= 0 || sh <= 0 {
		return out
	}

	op := &b.imgOp
	if d.Wrap {
		op.ColorScale.Reset()
		op.Blend = ebiten.BlendSourceOver
		op.Filter = ebiten.FilterNearest
		for y := 0; y < h; y += sh {
			for x := 0; x < w; x += sw {
				op.GeoM.Reset()
				op.GeoM.Translate(float64(x), float64(y))
				target.DrawImage(img, op)
			}
		}
		return out
	}

	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Scale(float64(w)/float64(sw), float64(h)/float64(sh))
	op.Blend = ebiten.BlendSourceOver
	op.Filter = ebiten.FilterLinear
	target.DrawImage(img, op)
	return out
}

// --- Kawase blur ---

// kawaseBlur approximates a gaussian blur with iterative downscale/upscale
// passes; bilinear filtering during DrawImage does the smoothing work.
// Temp images persist on the brush and are resized as needed.
func (b *ebitenBrush) kawaseBlur(src, dst *ebiten.Image, radius float64) {
	op := &b.imgOp
	if radius <= 0 {
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Blend = ebiten.BlendSourceOver
		op.Filter = ebiten.FilterNearest
		dst.DrawImage(src, op)
		return
	}

	// Number of iterations: log2(radius), minimum 1.
	passes := int(math.Ceil(math.Log2(radius)))
	if passes < 1 {
		passes = 1
	}

	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()

	for len(b.blurTemps) < passes {
		b.blurTemps = append(b.blurTemps, nil)
	}
	for i := passes; i < len(b.blurTemps); i++ {
		if b.blurTemps[i] != nil {
			b.blurTemps[i].Deallocate()
			b.blurTemps[i] = nil
		}
	}
	b.blurTemps = b.blurTemps[:passes]

	// Downscale passes: each half-size.
	current := src
	for i := 0; i < passes; i++ {
		w = max(w/2, 1)
		h = max(h/2, 1)
		if b.blurTemps[i] == nil || b.blurTemps[i].Bounds().Dx() != w || b.blurTemps[i].Bounds().Dy() != h {
			if b.blurTemps[i] != nil {
				b.blurTemps[i].Deallocate()
			}
			b.blurTemps[i] = ebiten.NewImage(w, h)
		} else {
			b.blurTemps[i].Clear()
		}
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Blend = ebiten.BlendSourceOver
		sw := float64(current.Bounds().Dx())
		sh := float64(current.Bounds().Dy())
		op.GeoM.Scale(float64(w)/sw, float64(h)/sh)
		op.Filter = ebiten.FilterLinear
		b.blurTemps[i].DrawImage(current, op)
		current = b.blurTemps[i]
	}

	// Upscale passes back up the chain.
	for i := passes - 2; i >= 0; i-- {
		b.blurTemps[i].Clear()
		op.GeoM.Reset()
		op.ColorScale.Reset()
		sw := float64(current.Bounds().Dx())
		sh := float64(current.Bounds().Dy())
		tw := float64(b.blurTemps[i].Bounds().Dx())
		th := float64(b.blurTemps[i].Bounds().Dy())
		op.GeoM.Scale(tw/sw, th/sh)
		op.Filter = ebiten.FilterLinear
		b.blurTemps[i].DrawImage(current, op)
		current = b.blurTemps[i]
	}

	// Final upscale to dst.
	op.GeoM.Reset()
	op.ColorScale.Reset()
	sw := float64(current.Bounds().Dx())
	sh := float64(current.Bounds().Dy())
	tw := float64(dst.Bounds().Dx())
	th := float64(dst.Bounds().Dy())
	op.GeoM.Scale(tw/sw, th/sh)
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(current, op)
}

// --- Color matrix ---

// Kage shader applying a 4x5 color matrix (row-major, offsets in elements
// 4, 9, 14, 19). Ebitengine uses premultiplied alpha; the shader
// un-premultiplies before processing and re-premultiplies the output.
const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// Shader compilation is deferred to first Paint; Paint runs on the render
// thread but brushes may be built concurrently, hence OnceValue.
var colorMatrixShader = sync.OnceValue(func() *ebiten.Shader {
	s, err := ebiten.NewShader([]byte(colorMatrixShaderSrc))
	if err != nil {
		panic("glaze: failed to compile color matrix shader: " + err.Error())
	}
	return s
})

// saturationMatrix returns the 4x5 matrix for a saturation adjustment.
// s=1 is unchanged, 0 is grayscale.
func saturationMatrix(s float64) [20]float64 {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	return [20]float64{
		sr + s, sg, sb, 0, 0,
		sr, sg + s, sb, 0, 0,
		sr, sg, sb + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// drawColorMatrix renders src into dst through the color matrix shader.
func (b *ebitenBrush) drawColorMatrix(dst, src *ebiten.Image, m [20]float64) {
	m32 := make([]float32, 20)
	for i, v := range m {
		m32[i] = float32(v)
	}
	bounds := src.Bounds()
	var op ebiten.DrawRectShaderOptions
	op.Images[0] = src
	op.Uniforms = map[string]any{"Matrix": m32}
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), colorMatrixShader(), &op)
}
