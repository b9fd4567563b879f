package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dunamismax/pixelgraph/internal/codec"
	"github.com/dunamismax/pixelgraph/internal/filter"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

const (
	ActionResize      = "resize"
	ActionCrop        = "crop"
	ActionRotate      = "rotate"
	ActionFlip        = "flip"
	ActionFilter      = "filter"
	ActionPerspective = "perspective"
	ActionAlign       = "align"

	ItemStatusSucceeded = "succeeded"
	ItemStatusFailed    = "failed"
	ItemStatusSkipped   = "skipped"
)

// ErrEmptyBatch is returned when a batch has nothing to process.
var ErrEmptyBatch = errors.New("batch contains no inputs")

// Recipe is an ordered list of steps applied to every input, plus the
// output encoding.
type Recipe struct {
	Name    string `json:"name,omitempty" toml:"name"`
	Steps   []Step `json:"steps" toml:"steps"`
	Format  string `json:"format,omitempty" toml:"format"`
	Quality int    `json:"quality,omitempty" toml:"quality"`
}

// Step is one user-facing operation. Which fields apply depends on Action.
// Pixel coordinates are display pixels (origin top-left) and angles are
// clockwise degrees, the same conventions as the CLI flags.
type Step struct {
	ID     string `json:"id,omitempty" toml:"id"`
	Action string `json:"action" toml:"action"`

	Width   int     `json:"width,omitempty" toml:"width"`
	Height  int     `json:"height,omitempty" toml:"height"`
	Scale   float64 `json:"scale,omitempty" toml:"scale"`
	Stretch bool    `json:"stretch,omitempty" toml:"stretch"`

	X float64 `json:"x,omitempty" toml:"x"`
	Y float64 `json:"y,omitempty" toml:"y"`

	Angle    float64 `json:"angle,omitempty" toml:"angle"`
	NoExpand bool    `json:"no_expand,omitempty" toml:"no_expand"`

	Horizontal bool `json:"horizontal,omitempty" toml:"horizontal"`
	Vertical   bool `json:"vertical,omitempty" toml:"vertical"`

	Filter string             `json:"filter,omitempty" toml:"filter"`
	Params map[string]float64 `json:"params,omitempty" toml:"params"`

	Corners    *Corners `json:"corners,omitempty" toml:"corners"`
	Confidence float64  `json:"confidence,omitempty" toml:"confidence"`

	OffsetX float64 `json:"offset_x,omitempty" toml:"offset_x"`
	OffsetY float64 `json:"offset_y,omitempty" toml:"offset_y"`
}

// Corners is a detected quadrilateral in detector-normalized coordinates,
// each corner an [x, y] pair in [0,1].
type Corners struct {
	TopLeft     [2]float64 `json:"top_left" toml:"top_left"`
	TopRight    [2]float64 `json:"top_right" toml:"top_right"`
	BottomRight [2]float64 `json:"bottom_right" toml:"bottom_right"`
	BottomLeft  [2]float64 `json:"bottom_left" toml:"bottom_left"`
}

func (c Corners) all() [4][2]float64 {
	return [4][2]float64{c.TopLeft, c.TopRight, c.BottomRight, c.BottomLeft}
}

func (r Recipe) Validate() error {
	if len(r.Steps) == 0 {
		return invalid("recipe must contain at least one step")
	}
	for i, step := range r.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	if r.Format != "" {
		if _, err := codec.ParseFormat(r.Format); err != nil {
			return invalid("format: %v", err)
		}
	}
	if r.Quality < 0 || r.Quality > 100 {
		return invalid("quality must be within 0..100, got %d", r.Quality)
	}
	return nil
}

// Validate rejects out-of-range input before any node is built. The filter
// library clamps instead; this is the stricter boundary policy.
func (s Step) Validate() error {
	switch s.ActionName() {
	case "":
		return invalid("action is required")
	case ActionResize:
		return s.validateResize()
	case ActionCrop:
		if !finite(s.X, s.Y) {
			return invalid("crop origin must be finite")
		}
		if s.X < 0 || s.Y < 0 {
			return invalid("crop origin must be >= 0, got (%g, %g)", s.X, s.Y)
		}
		if s.Width <= 0 || s.Height <= 0 {
			return invalid("crop requires width > 0 and height > 0")
		}
	case ActionRotate:
		if !finite(s.Angle) {
			return invalid("rotate angle must be finite")
		}
	case ActionFlip:
		if !s.Horizontal && !s.Vertical {
			return invalid("flip requires horizontal or vertical")
		}
	case ActionFilter:
		return s.validateFilter()
	case ActionPerspective:
		return s.validatePerspective()
	case ActionAlign:
		if !finite(s.OffsetX, s.OffsetY) {
			return invalid("align offset must be finite")
		}
	default:
		return invalid("unsupported action %q", s.Action)
	}
	return nil
}

// ActionName is Action trimmed and lower-cased.
func (s Step) ActionName() string {
	return strings.ToLower(strings.TrimSpace(s.Action))
}

func (s Step) validateResize() error {
	if s.Width < 0 || s.Height < 0 {
		return invalid("resize width and height must not be negative")
	}
	if !finite(s.Scale) || s.Scale < 0 {
		return invalid("resize scale must be a positive number")
	}
	if s.Scale > 0 && (s.Width > 0 || s.Height > 0) {
		return invalid("resize takes either scale or width/height, not both")
	}
	if s.Scale == 0 && s.Width == 0 && s.Height == 0 {
		return invalid("resize requires width, height or scale")
	}
	return nil
}

func (s Step) validateFilter() error {
	ranges, ok := filter.Ranges(s.Filter)
	if !ok {
		return invalid("unknown filter %q", s.Filter)
	}
	for key, v := range s.Params {
		r, known := ranges[key]
		if !known {
			return invalid("filter %q has no parameter %q", s.Filter, key)
		}
		if !r.Contains(v) {
			return invalid("filter %q parameter %q=%g outside %g..%g", s.Filter, key, v, r.Min, r.Max)
		}
	}
	return nil
}

func (s Step) validatePerspective() error {
	if s.Corners == nil {
		return invalid("perspective requires corners")
	}
	for i, c := range s.Corners.all() {
		if !finite(c[0], c[1]) || c[0] < 0 || c[0] > 1 || c[1] < 0 || c[1] > 1 {
			return invalid("corner %d must be within the unit square, got %v", i, c)
		}
	}
	if !finite(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return invalid("confidence must be within 0..1")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return graph.Errorf(graph.KindInvalidParameter, "validate", format, args...)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
