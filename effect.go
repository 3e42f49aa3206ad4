package glaze

import (
	"fmt"
	"sync/atomic"
)

// OpKind identifies one step in an effect description tree.
type OpKind uint8

const (
	OpColor      OpKind = iota // solid color leaf
	OpSource                   // named resource placeholder leaf (image, tile, backdrop)
	OpBlur                     // gaussian-style blur of one input
	OpSaturation               // saturation adjustment of one input
	OpOpacity                  // opacity multiplier on one input
	OpArithmetic               // linear mix of two inputs: fg*Factor + bg*(1-Factor)
	OpCrossFade                // cross-fade between two inputs by Factor
	OpBlend                    // blend fg over bg with a BlendMode
	OpCustom                   // deferred user transform, evaluated at build time
)

// String returns the lowercase kind name used in wire and config forms.
func (k OpKind) String() string {
	switch k {
	case OpColor:
		return "color"
	case OpSource:
		return "source"
	case OpBlur:
		return "blur"
	case OpSaturation:
		return "saturation"
	case OpOpacity:
		return "opacity"
	case OpArithmetic:
		return "mix"
	case OpCrossFade:
		return "crossfade"
	case OpBlend:
		return "blend"
	case OpCustom:
		return "custom"
	default:
		return fmt.Sprintf("opkind(%d)", uint8(k))
	}
}

// Description is one node of an effect description tree: a declarative
// account of a single graphics operation prior to materialization. Trees are
// built eagerly by Pipeline composition calls and treated as immutable once
// referenced by a Pipeline; combinators wrap existing nodes, they never edit
// them.
//
// Inputs is ordered foreground first for binary kinds.
type Description struct {
	Kind OpKind `msgpack:"kind"`

	// OpColor
	Color Color `msgpack:"color"`

	// OpSource: the lazy-parameter name bound at materialization, plus the
	// fields needed to reconstruct the resolver from a wire description.
	Param    string       `msgpack:"param"`
	Wrap     bool         `msgpack:"wrap"`
	URI      string       `msgpack:"uri"`
	DPI      DPIMode      `msgpack:"dpi"`
	Cache    CacheMode    `msgpack:"cache"`
	Backdrop BackdropKind `msgpack:"backdrop"`

	// OpBlur, OpSaturation, OpOpacity
	Amount float64 `msgpack:"amount"`

	// OpArithmetic, OpCrossFade
	Factor float64 `msgpack:"factor"`

	// OpBlend
	Mode BlendMode `msgpack:"mode"`

	// AnimPath is the minted animatable parameter path for this node, empty
	// when the node exposes nothing to animate.
	AnimPath string `msgpack:"animPath"`

	Inputs []*Description `msgpack:"inputs"`

	// Deferred user transforms. Exactly one is set on an OpCustom node;
	// custom2 consumes Inputs[0] and Inputs[1].
	custom  func(*Description) (*Description, error)
	custom2 func(fg, bg *Description) (*Description, error)
}

// paramSerial mints process-unique parameter names and animatable paths.
// Name-based placeholder binding with generated serials removes any
// possibility of accidental string collision between independently built
// pipelines.
var paramSerial atomic.Uint64

func mintName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, paramSerial.Add(1))
}

// clone returns a deep copy of the tree. Used before handing nodes to user
// transforms so an escape hatch cannot mutate a shared pipeline.
func (d *Description) clone() *Description {
	if d == nil {
		return nil
	}
	cp := *d
	if len(d.Inputs) > 0 {
		cp.Inputs = make([]*Description, len(d.Inputs))
		for i, in := range d.Inputs {
			cp.Inputs[i] = in.clone()
		}
	}
	return &cp
}

// realize evaluates a description tree bottom-up into a pure tree with all
// custom transforms applied. The result shares no nodes with the input, so
// the pipeline remains independently buildable afterward.
func realize(d *Description) (*Description, error) {
	if d == nil {
		return nil, ErrEmptyPipeline
	}

	inputs := make([]*Description, len(d.Inputs))
	for i, in := range d.Inputs {
		out, err := realize(in)
		if err != nil {
			return nil, err
		}
		inputs[i] = out
	}

	switch d.Kind {
	case OpCustom:
		var out *Description
		var err error
		switch {
		case d.custom2 != nil:
			if len(inputs) != 2 {
				return nil, fmt.Errorf("%w: custom merge with %d inputs", ErrInvalidDescription, len(inputs))
			}
			out, err = d.custom2(inputs[0], inputs[1])
		case d.custom != nil:
			if len(inputs) != 1 {
				return nil, fmt.Errorf("%w: custom transform with %d inputs", ErrInvalidDescription, len(inputs))
			}
			out, err = d.custom(inputs[0])
		default:
			return nil, fmt.Errorf("%w: custom node without a transform", ErrInvalidDescription)
		}
		if err != nil {
			return nil, fmt.Errorf("glaze: custom transform: %w", err)
		}
		if out == nil {
			return nil, fmt.Errorf("%w: custom transform returned nil", ErrInvalidDescription)
		}
		// The transform may itself return custom nodes; resolve them too.
		return realize(out)
	case OpColor, OpSource:
		if len(inputs) != 0 {
			return nil, fmt.Errorf("%w: %s leaf with inputs", ErrInvalidDescription, d.Kind)
		}
	case OpBlur, OpSaturation, OpOpacity:
		if len(inputs) != 1 || inputs[0] == nil {
			return nil, fmt.Errorf("%w: %s requires one input", ErrInvalidDescription, d.Kind)
		}
	case OpArithmetic, OpCrossFade, OpBlend:
		if len(inputs) != 2 || inputs[0] == nil || inputs[1] == nil {
			return nil, fmt.Errorf("%w: %s requires two inputs", ErrInvalidDescription, d.Kind)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidDescription, d.Kind)
	}

	cp := *d
	cp.Inputs = inputs
	return &cp, nil
}

// collectParameterValues walks a realized tree recording the current value of
// every animatable parameter path. These seed the materialized brush's
// parameter table.
func collectParameterValues(d *Description, into map[string]float64) {
	if d == nil {
		return
	}
	if d.AnimPath != "" {
		switch d.Kind {
		case OpBlur, OpSaturation, OpOpacity:
			into[d.AnimPath] = d.Amount
		case OpArithmetic, OpCrossFade:
			into[d.AnimPath] = d.Factor
		}
	}
	for _, in := range d.Inputs {
		collectParameterValues(in, into)
	}
}
