// Package filter is the stock filter library: blurs, color controls and
// tone effects, each one graph node.
//
// Parameters are clamped into the documented range instead of being
// rejected. Input validation that refuses out-of-range values happens
// earlier, at the command boundary (see domain.Step.Validate); both layers
// exist on purpose.
package filter

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/dunamismax/pixelgraph/internal/graph"
)

// Range is the documented domain of one filter parameter.
type Range struct {
	Min, Max, Default float64
}

func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Default
	}
	return math.Min(math.Max(v, r.Min), r.Max)
}

func (r Range) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= r.Min && v <= r.Max
}

// stock is the single Filter implementation behind every library entry.
type stock struct {
	name   string
	params map[string]float64
	apply  func(src *image.NRGBA, p map[string]float64) *image.NRGBA
}

func (s *stock) Name() string { return s.name }

func (s *stock) Params() map[string]float64 {
	out := make(map[string]float64, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

func (s *stock) Apply(src *image.NRGBA) *image.NRGBA {
	return s.apply(src, s.params)
}

func (s *stock) String() string {
	keys := make([]string, 0, len(s.params))
	for k := range s.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := s.name
	for _, k := range keys {
		out += fmt.Sprintf(" %s=%g", k, s.params[k])
	}
	return out
}

// entry is one catalog filter: its parameter ranges and how to run it.
type entry struct {
	params map[string]Range
	apply  func(src *image.NRGBA, p map[string]float64) *image.NRGBA
}

func build(name string, values map[string]float64) *stock {
	sp, ok := catalog[name]
	if !ok {
		panic("filter: unknown stock filter " + name)
	}
	params := make(map[string]float64, len(sp.params))
	for key, r := range sp.params {
		v, given := values[key]
		if !given {
			v = r.Default
		}
		params[key] = r.Clamp(v)
	}
	return &stock{name: name, params: params, apply: sp.apply}
}

// Apply wraps f as one node on top of n.
func Apply(n *graph.Node, f graph.Filter) *graph.Node {
	return n.Apply(graph.FilterOp{Filter: f})
}

// ByName builds a library filter from its name and raw parameter values.
// Missing parameters take their default; out-of-range values are clamped.
// Unknown filter or parameter names are reported as invalid parameters.
func ByName(name string, values map[string]float64) (graph.Filter, error) {
	sp, ok := catalog[name]
	if !ok {
		return nil, graph.Errorf(graph.KindInvalidParameter, "filter", "unknown filter %q", name)
	}
	for key := range values {
		if _, known := sp.params[key]; !known {
			return nil, graph.Errorf(graph.KindInvalidParameter, "filter", "filter %q has no parameter %q", name, key)
		}
	}
	return build(name, values), nil
}

// Names lists the library in sorted order.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Ranges returns the documented parameter ranges of a filter.
func Ranges(name string) (map[string]Range, bool) {
	sp, ok := catalog[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]Range, len(sp.params))
	for k, r := range sp.params {
		out[k] = r
	}
	return out, true
}
