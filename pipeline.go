package glaze

import (
	"context"
	"math"
)

// Pipeline is an immutable, lazily materialized effects pipeline. It holds
// only deferred descriptions — no live platform resource — until Build
// executes. Every composition call allocates and returns a new Pipeline; the
// receiver stays valid and independently buildable, so one base pipeline may
// be reused as the basis for divergent pipelines from any goroutine.
type Pipeline struct {
	root *Description
	lazy []lazyParameter
	anim []string
}

// lazyParameter maps a minted resource-placeholder name to the deferred
// factory that produces the platform resource bound at that name during
// Build. Names are unique per pipeline lineage.
type lazyParameter struct {
	name    string
	resolve func(ctx context.Context, comp Compositor) (Resource, error)
}

// --- Starters ---

// FromColor starts a one-node pipeline with a solid color leaf. No lazy
// parameters, no animatable parameters. Never fails.
func FromColor(c Color) Pipeline {
	return Pipeline{root: &Description{Kind: OpColor, Color: c}}
}

// FromImage starts a pipeline whose root samples the image at uri. The
// decoded surface is registered as a lazy parameter resolved at build time;
// a failed decode binds a transparent placeholder (see DecodeImage).
func FromImage(uri string, cache CacheMode, dpi DPIMode) Pipeline {
	return imageSource(uri, cache, dpi, false, "image")
}

// FromTiles is FromImage with the source wrapped in a tiling transform: the
// decoded image repeats to fill the brush instead of stretching.
func FromTiles(uri string, cache CacheMode, dpi DPIMode) Pipeline {
	return imageSource(uri, cache, dpi, true, "tile")
}

func imageSource(uri string, cache CacheMode, dpi DPIMode, wrap bool, prefix string) Pipeline {
	name := mintName(prefix)
	return Pipeline{
		root: &Description{
			Kind:  OpSource,
			Param: name,
			Wrap:  wrap,
			URI:   uri,
			DPI:   dpi,
			Cache: cache,
		},
		lazy: []lazyParameter{{
			name: name,
			resolve: func(ctx context.Context, comp Compositor) (Resource, error) {
				return comp.DecodeImage(ctx, uri, dpi, cache)
			},
		}},
	}
}

// FromBackdropBrush starts a pipeline sourced from the shared app-local
// backdrop sample. Pipelines built on the same display context reuse one
// live resource; a different context gets a fresh instance.
func FromBackdropBrush() Pipeline {
	return backdropSource(BackdropAppLocal, &backdropCache, "backdrop")
}

// FromHostBackdropBrush starts a pipeline sourced from the shared
// host/screen backdrop sample.
func FromHostBackdropBrush() Pipeline {
	return backdropSource(BackdropHostScreen, &hostBackdropCache, "hostbackdrop")
}

func backdropSource(kind BackdropKind, cache *resourceCache, prefix string) Pipeline {
	name := mintName(prefix)
	return Pipeline{
		root: &Description{
			Kind:     OpSource,
			Param:    name,
			Backdrop: kind,
		},
		lazy: []lazyParameter{{
			name: name,
			resolve: func(_ context.Context, comp Compositor) (Resource, error) {
				return cache.getOrCreate(comp, func() (Resource, error) {
					return comp.CreateBackdropSample(kind)
				})
			},
		}},
	}
}

// --- Unary composition ---

// Blur appends a blur of the given pixel amount. The amount is animatable
// after build. Panics with *RangeError if amount is negative.
func (p Pipeline) Blur(amount float64) Pipeline {
	if amount < 0 || math.IsNaN(amount) {
		panic(&RangeError{Op: "Blur", Value: amount, Min: 0, Max: math.Inf(1)})
	}
	return p.unary(OpBlur, "blur", amount)
}

// Saturation appends a saturation adjustment. 1 is unchanged, 0 is
// grayscale. The amount is animatable after build. Panics with *RangeError
// if amount is outside [0, 1].
func (p Pipeline) Saturation(amount float64) Pipeline {
	if amount < 0 || amount > 1 || math.IsNaN(amount) {
		panic(&RangeError{Op: "Saturation", Value: amount, Min: 0, Max: 1})
	}
	return p.unary(OpSaturation, "saturation", amount)
}

// Opacity appends an opacity multiplier. The amount is animatable after
// build. Panics with *RangeError if amount is outside [0, 1].
func (p Pipeline) Opacity(amount float64) Pipeline {
	if amount < 0 || amount > 1 || math.IsNaN(amount) {
		panic(&RangeError{Op: "Opacity", Value: amount, Min: 0, Max: 1})
	}
	return p.unary(OpOpacity, "opacity", amount)
}

func (p Pipeline) unary(kind OpKind, prefix string, amount float64) Pipeline {
	path := mintName(prefix) + ".Amount"
	return Pipeline{
		root: &Description{
			Kind:     kind,
			Amount:   amount,
			AnimPath: path,
			Inputs:   []*Description{p.root},
		},
		lazy: p.lazy,
		anim: appendAnim(p.anim, path),
	}
}

// Tint mixes a solid color under the pipeline: result = p*mix + c*(1-mix).
// It is sugar for FromColor(c).Mix(p, mix), with the pipeline as the
// foreground side, not an independent implementation, so the mix factor
// stays animatable and the equivalence is exact.
func (p Pipeline) Tint(c Color, mix float64) Pipeline {
	return FromColor(c).Mix(p, mix)
}

// Effect wraps the pipeline root in a deferred user transform over the
// resolved effect description. Parameter sets are unchanged. fn runs at
// build time on a private copy of the input; returning nil or an error fails
// the build.
func (p Pipeline) Effect(fn func(*Description) (*Description, error)) Pipeline {
	return Pipeline{
		root: &Description{
			Kind:   OpCustom,
			Inputs: []*Description{p.root},
			custom: fn,
		},
		lazy: p.lazy,
		anim: p.anim,
	}
}

// --- Binary composition ---

// Blend composites other over the receiver using the given blend mode.
// placement selects which side is the syntactic foreground (default: other).
// Panics with *CollisionError if the two pipelines share lineage (any lazy
// or animatable parameter name appears on both sides).
func (p Pipeline) Blend(other Pipeline, mode BlendMode, placement ...Placement) Pipeline {
	lazy, anim := mergeParams(p, other, "Blend")
	fg, bg := orient(p, other, placement)
	return Pipeline{
		root: &Description{
			Kind:   OpBlend,
			Mode:   mode,
			Inputs: []*Description{fg, bg},
		},
		lazy: lazy,
		anim: anim,
	}
}

// Mix linearly interpolates other over the receiver:
// result = fg*ratio + bg*(1-ratio). The ratio is animatable after build.
// Panics with *RangeError unless ratio lies strictly inside (0, 1); a ratio
// of exactly 0 or 1 means the combinator is the wrong tool — use Opacity or
// the plain source instead.
func (p Pipeline) Mix(other Pipeline, ratio float64, placement ...Placement) Pipeline {
	if ratio <= 0 || ratio >= 1 || math.IsNaN(ratio) {
		panic(&RangeError{Op: "Mix", Value: ratio, Min: 0, Max: 1, Exclusive: true})
	}
	return p.interpolate(other, OpArithmetic, "mix", ratio, placement)
}

// CrossFade cross-fades other over the receiver by factor through the
// platform cross-fade primitive. Same boundary-exclusion contract as Mix.
func (p Pipeline) CrossFade(other Pipeline, factor float64, placement ...Placement) Pipeline {
	if factor <= 0 || factor >= 1 || math.IsNaN(factor) {
		panic(&RangeError{Op: "CrossFade", Value: factor, Min: 0, Max: 1, Exclusive: true})
	}
	return p.interpolate(other, OpCrossFade, "crossfade", factor, placement)
}

func (p Pipeline) interpolate(other Pipeline, kind OpKind, prefix string, factor float64, placement []Placement) Pipeline {
	op := "Mix"
	if kind == OpCrossFade {
		op = "CrossFade"
	}
	lazy, anim := mergeParams(p, other, op)
	path := mintName(prefix) + ".Factor"
	fg, bg := orient(p, other, placement)
	return Pipeline{
		root: &Description{
			Kind:     kind,
			Factor:   factor,
			AnimPath: path,
			Inputs:   []*Description{fg, bg},
		},
		lazy: lazy,
		anim: appendAnim(anim, path),
	}
}

// MergeWith combines the receiver and other through an arbitrary user
// transform over the two resolved effect descriptions. Parameter sets merge
// under the same disjoint-union contract as Blend. fn runs at build time on
// private copies of its inputs.
func (p Pipeline) MergeWith(fn func(fg, bg *Description) (*Description, error), other Pipeline, placement ...Placement) Pipeline {
	lazy, anim := mergeParams(p, other, "MergeWith")
	fg, bg := orient(p, other, placement)
	return Pipeline{
		root: &Description{
			Kind:    OpCustom,
			Inputs:  []*Description{fg, bg},
			custom2: fn,
		},
		lazy: lazy,
		anim: anim,
	}
}

// orient returns (foreground, background) roots honoring placement.
func orient(p, other Pipeline, placement []Placement) (fg, bg *Description) {
	fg, bg = other.root, p.root
	if len(placement) > 0 && placement[0] == PlacementBackground {
		fg, bg = bg, fg
	}
	return fg, bg
}

// mergeParams builds the disjoint union of both sides' lazy and animatable
// parameter sets. Any overlap panics with *CollisionError at the merge call:
// overlapping names can only mean the two sides share lineage, and two
// independently sourced placeholders must never alias one resource slot.
func mergeParams(a, b Pipeline, op string) ([]lazyParameter, []string) {
	seen := make(map[string]struct{}, len(a.lazy)+len(b.lazy))
	lazy := make([]lazyParameter, 0, len(a.lazy)+len(b.lazy))
	for _, lp := range a.lazy {
		seen[lp.name] = struct{}{}
		lazy = append(lazy, lp)
	}
	for _, lp := range b.lazy {
		if _, dup := seen[lp.name]; dup {
			panic(&CollisionError{Op: op, Name: lp.name})
		}
		seen[lp.name] = struct{}{}
		lazy = append(lazy, lp)
	}

	seenAnim := make(map[string]struct{}, len(a.anim)+len(b.anim))
	anim := make([]string, 0, len(a.anim)+len(b.anim))
	for _, path := range a.anim {
		seenAnim[path] = struct{}{}
		anim = append(anim, path)
	}
	for _, path := range b.anim {
		if _, dup := seenAnim[path]; dup {
			panic(&CollisionError{Op: op, Name: path})
		}
		seenAnim[path] = struct{}{}
		anim = append(anim, path)
	}
	return lazy, anim
}

// appendAnim copies before appending so sibling pipelines never share a
// backing array.
func appendAnim(anim []string, path string) []string {
	out := make([]string, len(anim), len(anim)+1)
	copy(out, anim)
	return append(out, path)
}

// --- Introspection ---

// AnimatableParameters returns the dotted parameter paths that remain
// independently animatable on a brush built from this pipeline.
func (p Pipeline) AnimatableParameters() []string {
	return append([]string(nil), p.anim...)
}

// LazyParameterNames returns the resource-placeholder names that will be
// resolved and bound during Build, in registration order.
func (p Pipeline) LazyParameterNames() []string {
	names := make([]string, len(p.lazy))
	for i, lp := range p.lazy {
		names[i] = lp.name
	}
	return names
}
