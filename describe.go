package glaze

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Effect descriptions are declarative and serializable. Describe realizes a
// pipeline into a pure description tree; EncodeDescription and
// DecodeDescription carry trees across the wire; FromDescription rebuilds a
// buildable pipeline, re-minting its lazy-parameter resolvers from the
// source fields carried on each node.

// Describe realizes the pipeline into a pure, serializable description
// tree. Custom transforms are applied during realization; a transform that
// fails makes the description unrepresentable.
func (p Pipeline) Describe() (*Description, error) {
	d, err := realize(p.root)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// EncodeDescription serializes a realized description tree.
func EncodeDescription(d *Description) ([]byte, error) {
	if err := validateRealized(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}
	out, err := msgpack.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("glaze: encode description: %w", err)
	}
	return out, nil
}

// DecodeDescription deserializes a description tree.
func DecodeDescription(data []byte) (*Description, error) {
	var d Description
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("glaze: decode description: %w", err)
	}
	if err := validateRealized(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// FromDescription rebuilds a buildable pipeline from a realized description
// tree. Source nodes regain their deferred resolvers (image decode or
// backdrop cache lookup) under their stored placeholder names; animatable
// paths are collected back into the pipeline. Duplicate placeholder names
// in the tree are a data error, reported as ErrNotSerializable rather than
// a panic since wire input is data, not code.
func FromDescription(d *Description) (Pipeline, error) {
	if err := validateRealized(d); err != nil {
		return Pipeline{}, err
	}

	root := d.clone()
	var lazy []lazyParameter
	var anim []string
	seen := make(map[string]struct{})

	var walk func(n *Description) error
	walk = func(n *Description) error {
		if n.Kind == OpSource {
			if _, dup := seen[n.Param]; dup {
				return fmt.Errorf("%w: duplicate parameter %q", ErrNotSerializable, n.Param)
			}
			seen[n.Param] = struct{}{}
			lazy = append(lazy, descriptionResolver(n))
		}
		if n.AnimPath != "" {
			if _, dup := seen[n.AnimPath]; dup {
				return fmt.Errorf("%w: duplicate parameter %q", ErrNotSerializable, n.AnimPath)
			}
			seen[n.AnimPath] = struct{}{}
			anim = append(anim, n.AnimPath)
		}
		for _, in := range n.Inputs {
			if err := walk(in); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return Pipeline{}, err
	}

	return Pipeline{root: root, lazy: lazy, anim: anim}, nil
}

// descriptionResolver rebuilds the deferred resource factory for one source
// node out of its stored fields.
func descriptionResolver(n *Description) lazyParameter {
	lp := lazyParameter{name: n.Param}
	switch {
	case n.Backdrop == BackdropAppLocal:
		lp.resolve = cacheResolver(&backdropCache, BackdropAppLocal)
	case n.Backdrop == BackdropHostScreen:
		lp.resolve = cacheResolver(&hostBackdropCache, BackdropHostScreen)
	default:
		uri, dpi, cache := n.URI, n.DPI, n.Cache
		lp.resolve = func(ctx context.Context, comp Compositor) (Resource, error) {
			return comp.DecodeImage(ctx, uri, dpi, cache)
		}
	}
	return lp
}

func cacheResolver(rc *resourceCache, kind BackdropKind) func(context.Context, Compositor) (Resource, error) {
	return func(_ context.Context, comp Compositor) (Resource, error) {
		return rc.getOrCreate(comp, func() (Resource, error) {
			return comp.CreateBackdropSample(kind)
		})
	}
}
