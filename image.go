package glaze

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/hajimehoshi/ebiten/v2"

	// Registers the webp decoder alongside imaging's built-in formats.
	_ "golang.org/x/image/webp"
)

// imageResource is a decoded image surface. Implements Resource.
type imageResource struct {
	img      *ebiten.Image
	disposed bool
}

// Alive reports whether the surface is still usable.
func (r *imageResource) Alive() bool {
	return !r.disposed && r.img != nil
}

// Dispose deallocates the surface. The resource should not be used after.
func (r *imageResource) Dispose() {
	if r.img != nil {
		r.img.Deallocate()
		r.img = nil
	}
	r.disposed = true
}

// Image returns the underlying surface for rendering.
func (r *imageResource) Image() *ebiten.Image {
	return r.img
}

// placeholderResource is the documented decode-failure fallback: a 1×1
// transparent surface bound in place of the missing image, so downstream
// composition proceeds instead of failing the build.
func placeholderResource() *imageResource {
	return &imageResource{img: ebiten.NewImage(1, 1)}
}

// imageLoader decodes image URIs into surfaces with optional caching.
type imageLoader struct {
	mu    sync.Mutex
	cache map[imageKey]*imageResource
}

type imageKey struct {
	uri   string
	dpi   DPIMode
	scale float64
}

// load decodes the image at uri, applying the DPI policy. Decode failure
// degrades to a transparent placeholder with one diagnostic line; only a
// cancelled context is a hard error.
func (l *imageLoader) load(ctx context.Context, uri string, dpi DPIMode, cache CacheMode) (Resource, error) {
	scale := 1.0
	if dpi == DPIDisplay {
		scale = displayScale()
	}
	return l.loadScaled(ctx, uri, dpi, cache, scale)
}

// loadScaled is load with the device scale already resolved. The scale is
// part of the cache key, so a DPIDisplay entry decoded under one monitor
// scale is not served after the monitor scale changes.
func (l *imageLoader) loadScaled(ctx context.Context, uri string, dpi DPIMode, cache CacheMode, scale float64) (Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := imageKey{uri: uri, dpi: dpi, scale: scale}
	if cache == CacheDefault {
		l.mu.Lock()
		if r, ok := l.cache[key]; ok && r.Alive() {
			l.mu.Unlock()
			debugf("image cache hit %q", uri)
			return r, nil
		}
		l.mu.Unlock()
	}

	src, err := imaging.Open(uri)
	if err != nil {
		debugf("image %q failed to decode, binding transparent placeholder: %v", uri, err)
		return placeholderResource(), nil
	}
	src = scaleImage(src, scale)

	res := &imageResource{img: ebiten.NewImageFromImage(src)}
	if cache == CacheDefault {
		l.mu.Lock()
		if l.cache == nil {
			l.cache = make(map[imageKey]*imageResource)
		}
		l.cache[key] = res
		l.mu.Unlock()
	}
	return res, nil
}

// displayScale reads the monitor's device scale factor, defaulting to 1 when
// no monitor is available yet.
func displayScale() float64 {
	s := ebiten.Monitor().DeviceScaleFactor()
	if s <= 0 {
		return 1
	}
	return s
}

// scaleImage resamples a decoded image by the resolved device scale. DPISource
// and DPILogical96 always arrive here with scale 1 (Go's decoders do not
// surface embedded DPI metadata, so both treat pixels as logical units).
func scaleImage(img image.Image, scale float64) image.Image {
	if scale == 1 {
		return img
	}
	b := img.Bounds()
	w := dpiScaledSize(b.Dx(), scale)
	h := dpiScaledSize(b.Dy(), scale)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// dpiScaledSize rounds a scaled dimension to the nearest pixel, minimum 1.
func dpiScaledSize(n int, scale float64) int {
	s := int(math.Round(float64(n) * scale))
	if s < 1 {
		return 1
	}
	return s
}
