// Package perspective derives projective corrections from detected
// quadrilaterals and builds them into the graph as warp nodes.
//
// Corners arrive in detector-normalized space and are converted to
// render-pixel space against the node's extent through package coords. The
// correction maps the quadrilateral onto its own axis-aligned bounding
// rectangle, so the output extent is that rectangle. Degenerate input is
// rejected when the node is built; the renderer checks the matrix again
// before sampling.
package perspective

import (
	"errors"
	"fmt"
	"math"

	"github.com/dunamismax/pixelgraph/internal/coords"
	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

const (
	// colinearTolerance is the triangle area, relative to the squared span
	// of the quad, below which three corners count as colinear.
	colinearTolerance = 1e-3

	LabelPerspective = "perspective"
	LabelAlign       = "align"
)

// ErrLowConfidence is returned for detector observations below the
// caller's confidence floor.
var ErrLowConfidence = errors.New("observation confidence below threshold")

// Observation is one detector result: a document or region outline plus
// the detector's confidence in [0,1].
type Observation struct {
	Quad       coords.Quad
	Confidence float64
}

// CorrectObservation corrects n using obs when its confidence reaches
// minConfidence.
func CorrectObservation(n *graph.Node, obs Observation, minConfidence float64) (*graph.Node, error) {
	if math.IsNaN(obs.Confidence) || obs.Confidence < minConfidence {
		return nil, fmt.Errorf("%w: %.3f < %.3f", ErrLowConfidence, obs.Confidence, minConfidence)
	}
	return Correct(n, obs.Quad)
}

// Correct maps quad onto its axis-aligned bounding rectangle. quad is
// normally in DetectorNormalized space; any space the coordinate table
// knows is accepted.
func Correct(n *graph.Node, quad coords.Quad) (*graph.Node, error) {
	ext := n.Extent()
	size := coords.Size{W: float64(ext.W), H: float64(ext.H)}
	rq, err := coords.ConvertQuad(quad, coords.RenderPixel, size)
	if err != nil {
		return nil, graph.NewError(graph.KindInvalidParameter, LabelPerspective, err)
	}

	offset := geom.Point{X: float64(ext.X), Y: float64(ext.Y)}
	tl := toGeom(rq.TopLeft).Add(offset)
	tr := toGeom(rq.TopRight).Add(offset)
	br := toGeom(rq.BottomRight).Add(offset)
	bl := toGeom(rq.BottomLeft).Add(offset)
	src := [4]geom.Point{tl, tr, br, bl}

	for i, p := range src {
		if !p.IsFinite() {
			return nil, graph.Errorf(graph.KindDegenerateGeometry, LabelPerspective, "corner %d is not finite", i)
		}
	}
	if geom.AnyColinear(src, colinearTolerance) {
		return nil, graph.Errorf(graph.KindDegenerateGeometry, LabelPerspective, "three or more corners are colinear")
	}

	bb := geom.BoundsOf(src[:]...)
	out := bb.Outer()
	if out.Empty() {
		return nil, graph.Errorf(graph.KindDegenerateGeometry, LabelPerspective, "bounding box %+v has no area", out)
	}

	// Render space is y-up, so the visual top edge sits at MaxY.
	dst := [4]geom.Point{
		{X: bb.MinX, Y: bb.MaxY},
		{X: bb.MaxX, Y: bb.MaxY},
		{X: bb.MaxX, Y: bb.MinY},
		{X: bb.MinX, Y: bb.MinY},
	}
	h, err := geom.Homography(src, dst)
	if err != nil {
		return nil, graph.NewError(graph.KindDegenerateGeometry, LabelPerspective, err)
	}

	return n.Apply(graph.WarpOp{Matrix: h, Out: out, Label: LabelPerspective}), nil
}

// AlignTranslation shifts n by offset, a displacement expressed in space.
// It is the translation-only special case of Correct: the extent is kept
// and content moved outside it is clipped. A zero offset returns n.
func AlignTranslation(n *graph.Node, offset coords.Point, space coords.Space) (*graph.Node, error) {
	ext := n.Extent()
	size := coords.Size{W: float64(ext.W), H: float64(ext.H)}
	v, err := coords.ConvertVector(offset, space, coords.RenderPixel, size)
	if err != nil {
		return nil, graph.NewError(graph.KindInvalidParameter, LabelAlign, err)
	}
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
		return nil, graph.Errorf(graph.KindInvalidParameter, LabelAlign, "offset %+v is not finite", offset)
	}
	if v.X == 0 && v.Y == 0 {
		return n, nil
	}
	m := geom.Translate(v.X, v.Y).Projective()
	return n.Apply(graph.WarpOp{Matrix: m, Out: ext, Label: LabelAlign}), nil
}

func toGeom(p coords.Point) geom.Point {
	return geom.Point{X: p.X, Y: p.Y}
}
