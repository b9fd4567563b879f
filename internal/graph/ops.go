package graph

import (
	"image"
	"math"

	"github.com/dunamismax/pixelgraph/internal/geom"
)

// Op is one graph operation. Extent is the operation's own extent rule; it
// reports false when the result would be empty or invalid.
type Op interface {
	Name() string
	Extent(in geom.Rect) (geom.Rect, bool)
}

// ResizeOp scales both the buffer and the extent origin.
type ResizeOp struct {
	ScaleX float64
	ScaleY float64
}

func (ResizeOp) Name() string { return "resize" }

func (o ResizeOp) Extent(in geom.Rect) (geom.Rect, bool) {
	if !validScale(o.ScaleX) || !validScale(o.ScaleY) {
		return geom.Rect{}, false
	}
	out := geom.Rect{
		X: int(math.Round(float64(in.X) * o.ScaleX)),
		Y: int(math.Round(float64(in.Y) * o.ScaleY)),
		W: int(math.Round(float64(in.W) * o.ScaleX)),
		H: int(math.Round(float64(in.H) * o.ScaleY)),
	}
	return out, !out.Empty()
}

func validScale(s float64) bool {
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}

// CropOp keeps the part of the input inside Rect (render-pixel space). The
// extent origin is preserved, so later crops keep using the same frame.
type CropOp struct {
	Rect geom.Rect
}

func (CropOp) Name() string { return "crop" }

func (o CropOp) Extent(in geom.Rect) (geom.Rect, bool) {
	out := in.Intersect(o.Rect)
	return out, !out.Empty()
}

// RotateOp rotates about the input's center. Radians is the primitive
// angle: counter-clockwise in the y-up render frame.
type RotateOp struct {
	Radians float64
	Expand  bool
}

func (RotateOp) Name() string { return "rotate" }

func (o RotateOp) Extent(in geom.Rect) (geom.Rect, bool) {
	if in.Empty() || math.IsNaN(o.Radians) || math.IsInf(o.Radians, 0) {
		return geom.Rect{}, false
	}
	if !o.Expand {
		return in, true
	}
	rot := geom.RotateAbout(o.Radians, in.Center())
	c := in.Corners()
	bb := geom.BoundsOf(rot.Apply(c[0]), rot.Apply(c[1]), rot.Apply(c[2]), rot.Apply(c[3]))
	out := geom.Rect{W: geom.CeilSize(bb.Width()), H: geom.CeilSize(bb.Height())}
	return out, !out.Empty()
}

// Transform maps input render coordinates to output render coordinates:
// the input center lands on the output center.
func (o RotateOp) Transform(in, out geom.Rect) geom.Affine {
	ic, oc := in.Center(), out.Center()
	return geom.Translate(oc.X, oc.Y).Mul(geom.Rotate(o.Radians)).Mul(geom.Translate(-ic.X, -ic.Y))
}

// QuarterTurns reports the rotation as a whole number of counter-clockwise
// quarter turns in [0,3], or false when it is not a right angle.
func (o RotateOp) QuarterTurns() (int, bool) {
	q := o.Radians / (math.Pi / 2)
	r := math.Round(q)
	if math.Abs(q-r) > 1e-9 {
		return 0, false
	}
	n := int(r) % 4
	if n < 0 {
		n += 4
	}
	return n, true
}

// FlipOp mirrors about the input's own center lines.
type FlipOp struct {
	Horizontal bool
	Vertical   bool
}

func (FlipOp) Name() string { return "flip" }

func (o FlipOp) Extent(in geom.Rect) (geom.Rect, bool) {
	return in, (o.Horizontal || o.Vertical) && !in.Empty()
}

// WarpOp applies a homography. Matrix maps input render coordinates to
// output render coordinates; Out is fixed when the op is built.
type WarpOp struct {
	Matrix geom.Projective
	Out    geom.Rect
	// Label distinguishes perspective corrections from translations in
	// traces and metrics.
	Label string
}

func (o WarpOp) Name() string {
	if o.Label != "" {
		return o.Label
	}
	return "warp"
}

func (o WarpOp) Extent(in geom.Rect) (geom.Rect, bool) {
	if in.Empty() || o.Out.Empty() || !o.Matrix.IsFinite() {
		return geom.Rect{}, false
	}
	return o.Out, true
}

// Filter is a per-pixel or neighbourhood effect that keeps the extent.
// Apply must not modify src.
type Filter interface {
	Name() string
	Params() map[string]float64
	Apply(src *image.NRGBA) *image.NRGBA
}

type FilterOp struct {
	Filter Filter
}

func (o FilterOp) Name() string {
	if o.Filter == nil {
		return "filter"
	}
	return "filter:" + o.Filter.Name()
}

func (o FilterOp) Extent(in geom.Rect) (geom.Rect, bool) {
	return in, o.Filter != nil && !in.Empty()
}
