// Package config loads glaze pipelines from HCL definitions.
//
// A pipeline file declares one source block and an ordered list of effect
// blocks:
//
//	pipeline {
//	  source "image" {
//	    uri = "assets/photo.png"
//	  }
//	  effect "blur" {
//	    amount = 8
//	  }
//	  effect "tint" {
//	    color = "#803366ff"
//	    mix   = 0.3
//	  }
//	}
//
// Source kinds: color, image, tiles, backdrop, host_backdrop. Effect kinds:
// blur, saturation, opacity, tint. Amount violations that would panic in
// fluent code surface as returned errors here, since config input is data,
// not code.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/phanxgames/glaze"
)

type hclFile struct {
	Pipeline *hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	Source  *hclSource   `hcl:"source,block"`
	Effects []*hclEffect `hcl:"effect,block"`
}

type hclSource struct {
	Kind  string  `hcl:"kind,label"`
	Color *string `hcl:"color,optional"`
	URI   *string `hcl:"uri,optional"`
	DPI   *string `hcl:"dpi,optional"`
	Cache *string `hcl:"cache,optional"`
}

type hclEffect struct {
	Kind   string   `hcl:"kind,label"`
	Amount *float64 `hcl:"amount,optional"`
	Color  *string  `hcl:"color,optional"`
	Mix    *float64 `hcl:"mix,optional"`
}

// Load reads and builds the pipeline declared in an HCL file.
func Load(path string) (glaze.Pipeline, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return glaze.Pipeline{}, fmt.Errorf("config: parse %s: %w", path, diags)
	}
	return decode(file.Body, nil)
}

// Parse builds the pipeline declared in HCL source text. filename appears
// in diagnostics only.
func Parse(src []byte, filename string) (glaze.Pipeline, error) {
	return ParseWithVariables(src, filename, nil)
}

// ParseWithVariables is Parse with a variable scope: values are exposed to
// expressions as var.<name>.
func ParseWithVariables(src []byte, filename string, vars map[string]cty.Value) (glaze.Pipeline, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return glaze.Pipeline{}, fmt.Errorf("config: parse %s: %w", filename, diags)
	}
	var evalCtx *hcl.EvalContext
	if len(vars) > 0 {
		evalCtx = &hcl.EvalContext{
			Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
		}
	}
	return decode(file.Body, evalCtx)
}

func decode(body hcl.Body, evalCtx *hcl.EvalContext) (glaze.Pipeline, error) {
	var f hclFile
	if diags := gohcl.DecodeBody(body, evalCtx, &f); diags.HasErrors() {
		return glaze.Pipeline{}, fmt.Errorf("config: decode: %w", diags)
	}
	if f.Pipeline == nil {
		return glaze.Pipeline{}, fmt.Errorf("config: missing pipeline block")
	}
	return buildPipeline(f.Pipeline)
}

// buildPipeline assembles the fluent chain. Construction-time panics from
// out-of-range amounts are converted to returned errors at this boundary.
func buildPipeline(pl *hclPipeline) (p glaze.Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("config: %w", e)
				return
			}
			panic(r)
		}
	}()

	p, err = buildSource(pl.Source)
	if err != nil {
		return glaze.Pipeline{}, err
	}
	for _, e := range pl.Effects {
		p, err = applyEffect(p, e)
		if err != nil {
			return glaze.Pipeline{}, err
		}
	}
	return p, nil
}

func buildSource(s *hclSource) (glaze.Pipeline, error) {
	if s == nil {
		return glaze.Pipeline{}, fmt.Errorf("config: missing source block")
	}
	switch s.Kind {
	case "color":
		c, err := requireColor(s.Color, "source \"color\"")
		if err != nil {
			return glaze.Pipeline{}, err
		}
		return glaze.FromColor(c), nil
	case "image", "tiles":
		if s.URI == nil || *s.URI == "" {
			return glaze.Pipeline{}, fmt.Errorf("config: source %q requires uri", s.Kind)
		}
		dpi, err := dpiMode(s.DPI)
		if err != nil {
			return glaze.Pipeline{}, err
		}
		cache, err := cacheMode(s.Cache)
		if err != nil {
			return glaze.Pipeline{}, err
		}
		if s.Kind == "tiles" {
			return glaze.FromTiles(*s.URI, cache, dpi), nil
		}
		return glaze.FromImage(*s.URI, cache, dpi), nil
	case "backdrop":
		return glaze.FromBackdropBrush(), nil
	case "host_backdrop":
		return glaze.FromHostBackdropBrush(), nil
	default:
		return glaze.Pipeline{}, fmt.Errorf("config: unknown source kind %q", s.Kind)
	}
}

func applyEffect(p glaze.Pipeline, e *hclEffect) (glaze.Pipeline, error) {
	switch e.Kind {
	case "blur":
		amount, err := requireAmount(e.Amount, "effect \"blur\"")
		if err != nil {
			return glaze.Pipeline{}, err
		}
		return p.Blur(amount), nil
	case "saturation":
		amount, err := requireAmount(e.Amount, "effect \"saturation\"")
		if err != nil {
			return glaze.Pipeline{}, err
		}
		return p.Saturation(amount), nil
	case "opacity":
		amount, err := requireAmount(e.Amount, "effect \"opacity\"")
		if err != nil {
			return glaze.Pipeline{}, err
		}
		return p.Opacity(amount), nil
	case "tint":
		c, err := requireColor(e.Color, "effect \"tint\"")
		if err != nil {
			return glaze.Pipeline{}, err
		}
		if e.Mix == nil {
			return glaze.Pipeline{}, fmt.Errorf("config: effect %q requires mix", e.Kind)
		}
		return p.Tint(c, *e.Mix), nil
	default:
		return glaze.Pipeline{}, fmt.Errorf("config: unknown effect kind %q", e.Kind)
	}
}

func requireAmount(v *float64, where string) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("config: %s requires amount", where)
	}
	return *v, nil
}

func requireColor(v *string, where string) (glaze.Color, error) {
	if v == nil {
		return glaze.Color{}, fmt.Errorf("config: %s requires color", where)
	}
	c, err := glaze.ParseColor(*v)
	if err != nil {
		return glaze.Color{}, fmt.Errorf("config: %s: %w", where, err)
	}
	return c, nil
}

func dpiMode(v *string) (glaze.DPIMode, error) {
	if v == nil {
		return glaze.DPISource, nil
	}
	switch *v {
	case "source", "":
		return glaze.DPISource, nil
	case "logical96":
		return glaze.DPILogical96, nil
	case "display":
		return glaze.DPIDisplay, nil
	default:
		return 0, fmt.Errorf("config: unknown dpi mode %q", *v)
	}
}

func cacheMode(v *string) (glaze.CacheMode, error) {
	if v == nil {
		return glaze.CacheDefault, nil
	}
	switch *v {
	case "default", "":
		return glaze.CacheDefault, nil
	case "none":
		return glaze.CacheNone, nil
	default:
		return 0, fmt.Errorf("config: unknown cache mode %q", *v)
	}
}
