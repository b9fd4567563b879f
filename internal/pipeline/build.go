package pipeline

import (
	"fmt"

	"github.com/dunamismax/pixelgraph/internal/coords"
	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/filter"
	"github.com/dunamismax/pixelgraph/internal/geometry"
	"github.com/dunamismax/pixelgraph/internal/graph"
	"github.com/dunamismax/pixelgraph/internal/perspective"
)

// DefaultMinConfidence is the confidence floor for perspective steps that
// carry a detector confidence.
const DefaultMinConfidence = 0.5

// Build validates steps and composes them on top of n. Nothing is
// rendered.
func Build(n *graph.Node, steps []domain.Step) (*graph.Node, error) {
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Action, err)
		}
		next, err := BuildStep(n, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Action, err)
		}
		n = next
	}
	return n, nil
}

// BuildStep adds the node for one already validated step.
func BuildStep(n *graph.Node, step domain.Step) (*graph.Node, error) {
	switch step.ActionName() {
	case domain.ActionResize:
		if step.Scale > 0 {
			return geometry.Scale(n, step.Scale), nil
		}
		return geometry.Resize(n, geometry.ResizeOptions{
			Width:               step.Width,
			Height:              step.Height,
			MaintainAspectRatio: !step.Stretch,
		}), nil
	case domain.ActionCrop:
		rect := coords.Rect{X: step.X, Y: step.Y, W: float64(step.Width), H: float64(step.Height)}
		return geometry.CropDisplay(n, rect), nil
	case domain.ActionRotate:
		return geometry.RotateAroundCenter(n, step.Angle, !step.NoExpand), nil
	case domain.ActionFlip:
		return geometry.Flip(n, step.Horizontal, step.Vertical), nil
	case domain.ActionFilter:
		f, err := filter.ByName(step.Filter, step.Params)
		if err != nil {
			return nil, err
		}
		return filter.Apply(n, f), nil
	case domain.ActionPerspective:
		if step.Corners == nil {
			return nil, graph.Errorf(graph.KindInvalidParameter, "perspective", "corners are required")
		}
		quad := QuadFromCorners(*step.Corners)
		if step.Confidence > 0 {
			return perspective.CorrectObservation(n, perspective.Observation{Quad: quad, Confidence: step.Confidence}, DefaultMinConfidence)
		}
		return perspective.Correct(n, quad)
	case domain.ActionAlign:
		return perspective.AlignTranslation(n, coords.Point{X: step.OffsetX, Y: step.OffsetY}, coords.DisplayPixel)
	default:
		return nil, graph.Errorf(graph.KindInvalidParameter, "build", "unsupported action %q", step.Action)
	}
}

// QuadFromCorners labels recipe corners as a detector-normalized quad.
func QuadFromCorners(c domain.Corners) coords.Quad {
	pt := func(v [2]float64) coords.Point { return coords.Point{X: v[0], Y: v[1]} }
	return coords.Quad{
		TopLeft:     pt(c.TopLeft),
		TopRight:    pt(c.TopRight),
		BottomRight: pt(c.BottomRight),
		BottomLeft:  pt(c.BottomLeft),
		Space:       coords.DetectorNormalized,
	}
}
