package glaze

import (
	"fmt"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// AnimationBuilder queues declarative parameter animations for a
// materialized brush: schedule steps with the fluent methods, then replay
// them in order through Start. Builders are plain command queues with no
// interesting invariants; they are not safe for concurrent use.
type AnimationBuilder struct {
	steps []animStep
}

type animStep struct {
	path     string
	to       float64
	duration float32
	fn       ease.TweenFunc
}

// Animate returns an empty animation builder.
func Animate() *AnimationBuilder {
	return &AnimationBuilder{}
}

// Parameter queues an animation of the given parameter path to the target
// value over duration seconds.
func (b *AnimationBuilder) Parameter(path string, to float64, duration float32, fn ease.TweenFunc) *AnimationBuilder {
	if fn == nil {
		fn = ease.Linear
	}
	b.steps = append(b.steps, animStep{path: path, to: to, duration: duration, fn: fn})
	return b
}

// Start validates every queued path against the brush and returns a player
// that replays the steps in scheduled order. The builder may be reused to
// start players on other brushes.
func (b *AnimationBuilder) Start(brush *Brush) (*AnimationPlayer, error) {
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("glaze: animation has no steps")
	}
	for _, s := range b.steps {
		if _, err := brush.Parameter(s.path); err != nil {
			return nil, err
		}
	}
	return &AnimationPlayer{
		brush: brush,
		steps: append([]animStep(nil), b.steps...),
	}, nil
}

// AnimationPlayer replays queued parameter animations on a brush. Call
// Update(dt) each frame; steps run one after another, each tween starting
// from the parameter's value at that moment. Done is set once every step
// has finished.
type AnimationPlayer struct {
	brush   *Brush
	steps   []animStep
	idx     int
	current *gween.Tween
	Done    bool
}

// Update advances the player by dt seconds, writing values through
// Brush.SetParameter. Safe to call after completion.
func (p *AnimationPlayer) Update(dt float32) {
	if p.Done {
		return
	}

	for dt >= 0 {
		if p.current == nil {
			if p.idx >= len(p.steps) {
				p.Done = true
				return
			}
			s := p.steps[p.idx]
			from, err := p.brush.Parameter(s.path)
			if err != nil {
				// Parameter validated at Start; a failure here means the
				// brush changed underneath us. Stop quietly.
				debugf("animation stopped: %v", err)
				p.Done = true
				return
			}
			p.current = gween.New(float32(from), float32(s.to), s.duration, s.fn)
		}

		s := p.steps[p.idx]
		val, finished := p.current.Update(dt)
		_ = p.brush.SetParameter(s.path, float64(val))
		if !finished {
			return
		}
		// Step complete; the remainder of dt rolls into the next step.
		dt = p.current.Overflow
		p.current = nil
		p.idx++
	}
}
