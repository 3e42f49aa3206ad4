package glaze

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/errgroup"
)

// Brush is a materialized, fully bound effects pipeline. It wraps the
// platform brush handle together with the pipeline's animatable parameter
// table.
type Brush struct {
	handle BrushHandle

	mu     sync.Mutex
	params map[string]float64
	order  []string
}

// Handle returns the underlying platform brush handle.
func (b *Brush) Handle() BrushHandle {
	return b.handle
}

// Paint renders the brush into dst at dst's full size.
func (b *Brush) Paint(dst *ebiten.Image) {
	b.handle.Paint(dst)
}

// Parameters returns the animatable parameter paths, in pipeline order.
func (b *Brush) Parameters() []string {
	return append([]string(nil), b.order...)
}

// Parameter returns the current value of an animatable parameter path.
func (b *Brush) Parameter(path string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.params[path]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, path)
	}
	return v, nil
}

// SetParameter updates an animatable parameter path on the brush.
func (b *Brush) SetParameter(path string, v float64) error {
	b.mu.Lock()
	if _, ok := b.params[path]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownParameter, path)
	}
	b.params[path] = v
	b.mu.Unlock()
	return b.handle.SetParameter(path, v)
}

// Build materializes the pipeline into a brush using the package default
// compositor. See BuildWith.
func (p Pipeline) Build(ctx context.Context) (*Brush, error) {
	return p.BuildWith(ctx, DefaultCompositor())
}

// BuildWith materializes the pipeline: it realizes the description tree,
// compiles the platform effect factory (declaring the animatable parameter
// paths), creates a brush, resolves and binds every lazy parameter, and
// prunes the shared resource caches. The five steps run strictly in order;
// lazy parameters resolve concurrently with each other inside step four.
//
// A failed build never exposes a partially bound brush: no brush exists
// until the description has resolved, and the brush is only returned once
// every parameter is bound.
func (p Pipeline) BuildWith(ctx context.Context, comp Compositor) (*Brush, error) {
	if comp == nil {
		return nil, ErrNoCompositor
	}
	start := time.Now()

	// Step 1: resolve the description tree. Failure here aborts before any
	// platform object is created.
	desc, err := realize(p.root)
	if err != nil {
		return nil, err
	}

	// Step 2: compile the effect factory. The animatable declaration is a
	// distinct platform path, skipped entirely when nothing is animatable.
	var animatable []string
	if len(p.anim) > 0 {
		animatable = append([]string(nil), p.anim...)
	}
	factory, err := comp.CreateEffectFactory(desc, animatable)
	if err != nil {
		return nil, fmt.Errorf("glaze: create effect factory: %w", err)
	}

	// Step 3: create the brush instance.
	handle, err := factory.CreateBrush()
	if err != nil {
		return nil, fmt.Errorf("glaze: create brush: %w", err)
	}

	// Step 4: resolve and bind every lazy parameter. Resolutions are
	// independent by construction (names are disjoint), so they run
	// concurrently; binds are serialized because brush handles are not
	// required to accept concurrent writes.
	var bindMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, lp := range p.lazy {
		g.Go(func() error {
			res, rerr := lp.resolve(gctx, comp)
			if rerr != nil {
				return fmt.Errorf("glaze: resolve parameter %q: %w", lp.name, rerr)
			}
			bindMu.Lock()
			defer bindMu.Unlock()
			if berr := handle.BindNamedResource(lp.name, res); berr != nil {
				return fmt.Errorf("glaze: bind parameter %q: %w", lp.name, berr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Step 5: opportunistic cache maintenance.
	backdropCache.cleanup()
	hostBackdropCache.cleanup()

	params := make(map[string]float64, len(p.anim))
	collectParameterValues(desc, params)
	debugf("built brush: %d lazy parameters, %d animatable, %v", len(p.lazy), len(p.anim), time.Since(start))

	return &Brush{
		handle: handle,
		params: params,
		order:  append([]string(nil), p.anim...),
	}, nil
}
