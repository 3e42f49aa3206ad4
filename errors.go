package glaze

import (
	"errors"
	"fmt"
)

// Build-time errors.
var (
	// ErrEmptyPipeline is returned by Build when the pipeline has no effect
	// nodes at its root. A pipeline that degenerates to no visual description
	// is a programmer error, not a recoverable runtime state.
	ErrEmptyPipeline = errors.New("glaze: pipeline has no effect nodes")

	// ErrInvalidDescription is returned by Build when the root resolves to
	// something that is not a usable effect description (for example a custom
	// transform returning nil).
	ErrInvalidDescription = errors.New("glaze: effect description is not usable")

	// ErrNoCompositor is returned by Build when no compositor is configured.
	ErrNoCompositor = errors.New("glaze: no compositor configured")

	// ErrUnknownParameter is returned when a parameter path does not exist on
	// the materialized brush.
	ErrUnknownParameter = errors.New("glaze: unknown animatable parameter")

	// ErrNotSerializable is returned by Describe/FromDescription when a
	// description cannot be carried across the wire codec.
	ErrNotSerializable = errors.New("glaze: description is not serializable")
)

// RangeError reports an out-of-range amount passed to a composition call.
// It is raised via panic at the call site, before any effect node is created;
// range violations are never deferred into Build.
type RangeError struct {
	Op       string
	Value    float64
	Min, Max float64
	// Exclusive marks the bounds themselves as invalid (Mix and CrossFade
	// ratios must lie strictly inside the interval).
	Exclusive bool
}

func (e *RangeError) Error() string {
	if e.Exclusive {
		return fmt.Sprintf("glaze: %s amount %v outside open interval (%v, %v)", e.Op, e.Value, e.Min, e.Max)
	}
	return fmt.Sprintf("glaze: %s amount %v outside [%v, %v]", e.Op, e.Value, e.Min, e.Max)
}

// CollisionError reports a duplicate lazy-parameter or animatable-parameter
// name across the two sides of a merge. Two independently sourced resource
// placeholders must never alias, so this is raised via panic at the merge
// call rather than silently resolved.
type CollisionError struct {
	Op   string
	Name string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("glaze: %s would merge duplicate parameter %q; both sides share pipeline lineage", e.Op, e.Name)
}
