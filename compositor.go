package glaze

import (
	"context"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// BackdropKind selects which shared backdrop resource a pipeline samples.
type BackdropKind uint8

const (
	// BackdropNone marks a source node that is not a backdrop sample.
	BackdropNone BackdropKind = iota
	// BackdropAppLocal samples visual content from within the application.
	BackdropAppLocal
	// BackdropHostScreen samples the full screen behind the application.
	BackdropHostScreen
)

// Resource is a non-owning handle to a platform brush resource (a decoded
// image surface or a backdrop sample). Liveness is checked through the
// handle-validity query, never by probing for failures.
type Resource interface {
	// Alive reports whether the underlying platform object is still usable.
	Alive() bool
	// Dispose releases the underlying platform object. After Dispose, Alive
	// reports false.
	Dispose()
}

// Compositor is the consumed platform interface: everything glaze needs from
// the composition/graphics framework. The default implementation is
// EbitenCompositor; tests substitute fakes.
//
// All methods except DecodeImage may be context-affine. A Compositor that
// also implements Dispatcher has resource creation routed through
// RunOnContext.
type Compositor interface {
	// ContextID identifies the display context this compositor is bound to.
	// Shared backdrop resources are reused only between pipelines built
	// against the same context ID.
	ContextID() uint64

	// DecodeImage loads the image at uri into a paintable resource. Decode
	// failure degrades to a placeholder resource rather than an error; a
	// non-nil error means the platform itself failed.
	DecodeImage(ctx context.Context, uri string, dpi DPIMode, cache CacheMode) (Resource, error)

	// CreateBackdropSample creates a fresh shared backdrop resource of the
	// given kind. Callers go through the package caches instead of calling
	// this directly.
	CreateBackdropSample(kind BackdropKind) (Resource, error)

	// CreateEffectFactory compiles a realized description tree into a brush
	// factory, declaring every listed parameter path as independently
	// animatable. animatable is nil when the pipeline exposes none.
	CreateEffectFactory(desc *Description, animatable []string) (EffectFactory, error)
}

// EffectFactory produces brush handles from one compiled description tree.
type EffectFactory interface {
	CreateBrush() (BrushHandle, error)
}

// BrushHandle is the platform-side materialized brush.
type BrushHandle interface {
	// BindNamedResource binds a resolved resource into the named slot.
	BindNamedResource(name string, r Resource) error
	// SetParameter updates an animatable parameter path.
	SetParameter(path string, v float64) error
	// Paint renders the brush into dst at dst's full size.
	Paint(dst *ebiten.Image)
}

// Dispatcher is the dispatch-protection escape hatch. A Compositor whose
// platform objects are thread-affine implements it to marshal creation onto
// the owning context; the resource caches route through it when present.
type Dispatcher interface {
	RunOnContext(fn func() error) error
}

var (
	defaultCompositorMu sync.Mutex
	defaultCompositor   Compositor
)

// SetCompositor replaces the package default compositor used by
// Pipeline.Build. Pass nil to restore the lazily created EbitenCompositor.
func SetCompositor(c Compositor) {
	defaultCompositorMu.Lock()
	defaultCompositor = c
	defaultCompositorMu.Unlock()
}

// DefaultCompositor returns the package default compositor, creating the
// Ebitengine-backed one on first use.
func DefaultCompositor() Compositor {
	defaultCompositorMu.Lock()
	defer defaultCompositorMu.Unlock()
	if defaultCompositor == nil {
		defaultCompositor = NewEbitenCompositor()
	}
	return defaultCompositor
}
