// Package coords converts points, rectangles and quadrilaterals between the
// three coordinate spaces the pipeline meets.
//
// # Spaces
//
//   - DetectorNormalized: unit square, origin top-left. Produced by vision
//     detectors (document corners, face boxes).
//   - RenderPixel: pixels, origin bottom-left, Y increasing upward. Used by
//     graph extents and every operation in the render core.
//   - DisplayPixel: pixels, origin top-left, Y increasing downward. Used by
//     decoded buffers and user-facing CLI arguments.
//
// Any conversion that crosses between a top-left and a bottom-left space
// reflects the Y axis: y' = H - y for points and y' = H - y - h for
// rectangles. The conversion table is exhaustive; an unknown space is an
// error, never an implicit identity. Every caller names both spaces
// explicitly, including same-space conversions, so the flip is never
// inferred from call order.
//
// All functions are pure and safe for concurrent use.
package coords

import (
	"errors"
	"fmt"
)

// ErrUnsupportedConversion is returned for a space pair the table does not
// cover.
var ErrUnsupportedConversion = errors.New("unsupported coordinate conversion")

type Space int

const (
	DetectorNormalized Space = iota + 1
	RenderPixel
	DisplayPixel
)

func (s Space) String() string {
	switch s {
	case DetectorNormalized:
		return "detector-normalized"
	case RenderPixel:
		return "render-pixel"
	case DisplayPixel:
		return "display-pixel"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

func (s Space) valid() bool {
	return s == DetectorNormalized || s == RenderPixel || s == DisplayPixel
}

// topLeft reports whether the space has its origin at the top-left corner.
func (s Space) topLeft() bool {
	return s == DetectorNormalized || s == DisplayPixel
}

// normalized reports whether the space is unit-scaled.
func (s Space) normalized() bool {
	return s == DetectorNormalized
}

// Size is the pixel size of the image a coordinate refers to.
type Size struct {
	W, H float64
}

func (s Size) valid() bool {
	return s.W > 0 && s.H > 0
}

type Point struct {
	X, Y float64
}

// Rect is an origin plus extent. In top-left spaces the origin is the
// top-left corner of the rectangle; in RenderPixel it is the bottom-left.
type Rect struct {
	X, Y, W, H float64
}

// Quad is a detected quadrilateral. Corner labels keep their meaning across
// conversions: TopLeft is the visually top-left corner in every space.
type Quad struct {
	TopLeft     Point
	TopRight    Point
	BottomLeft  Point
	BottomRight Point
	Space       Space
}

// Corners returns the corners in TopLeft, TopRight, BottomRight, BottomLeft
// order (clockwise on screen).
func (q Quad) Corners() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

type conversion struct {
	from, to Space
}

// table lists every supported space pair. Each entry maps a point in the
// source space to the target space for an image of the given size.
var table = map[conversion]func(Point, Size) Point{
	{DetectorNormalized, DetectorNormalized}: func(p Point, _ Size) Point { return p },
	{DetectorNormalized, DisplayPixel}: func(p Point, s Size) Point {
		return Point{X: p.X * s.W, Y: p.Y * s.H}
	},
	{DetectorNormalized, RenderPixel}: func(p Point, s Size) Point {
		return Point{X: p.X * s.W, Y: s.H - p.Y*s.H}
	},
	{DisplayPixel, DisplayPixel}: func(p Point, _ Size) Point { return p },
	{DisplayPixel, DetectorNormalized}: func(p Point, s Size) Point {
		return Point{X: p.X / s.W, Y: p.Y / s.H}
	},
	{DisplayPixel, RenderPixel}: func(p Point, s Size) Point {
		return Point{X: p.X, Y: s.H - p.Y}
	},
	{RenderPixel, RenderPixel}: func(p Point, _ Size) Point { return p },
	{RenderPixel, DisplayPixel}: func(p Point, s Size) Point {
		return Point{X: p.X, Y: s.H - p.Y}
	},
	{RenderPixel, DetectorNormalized}: func(p Point, s Size) Point {
		return Point{X: p.X / s.W, Y: (s.H - p.Y) / s.H}
	},
}

func lookup(from, to Space, size Size) (func(Point, Size) Point, error) {
	if !from.valid() || !to.valid() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedConversion, from, to)
	}
	fn, ok := table[conversion{from, to}]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedConversion, from, to)
	}
	if from != to && !size.valid() {
		return nil, fmt.Errorf("%w: %s -> %s needs a positive image size, got %vx%v",
			ErrUnsupportedConversion, from, to, size.W, size.H)
	}
	return fn, nil
}

// Convert maps p from one space to another for an image of the given size.
func Convert(p Point, from, to Space, size Size) (Point, error) {
	fn, err := lookup(from, to, size)
	if err != nil {
		return Point{}, err
	}
	return fn(p, size), nil
}

// ToRenderPixel maps p into RenderPixel space. Crossing from a top-left
// space yields y = H - y.
func ToRenderPixel(p Point, from Space, size Size) (Point, error) {
	return Convert(p, from, RenderPixel, size)
}

// ScaleNormalizedToPixels multiplies a DetectorNormalized point by the image
// size, flipping Y as well when target is RenderPixel. target must be a
// pixel space.
func ScaleNormalizedToPixels(p Point, size Size, target Space) (Point, error) {
	if target.normalized() {
		return Point{}, fmt.Errorf("%w: scale target must be a pixel space, got %s", ErrUnsupportedConversion, target)
	}
	return Convert(p, DetectorNormalized, target, size)
}

// ConvertRect maps r between spaces. Crossing the Y orientation moves the
// origin to the opposite horizontal edge: y' = H - y - h.
func ConvertRect(r Rect, from, to Space, size Size) (Rect, error) {
	fn, err := lookup(from, to, size)
	if err != nil {
		return Rect{}, err
	}
	if from == to {
		return r, nil
	}
	// Convert the far corner along Y so the result keeps a bottom-left or
	// top-left origin matching the target space.
	originY := r.Y
	if from.topLeft() != to.topLeft() {
		originY = r.Y + r.H
	}
	o := fn(Point{X: r.X, Y: originY}, size)
	far := fn(Point{X: r.X + r.W, Y: r.Y + r.H}, size)
	w := far.X - o.X
	h := r.H
	switch {
	case from.normalized() && !to.normalized():
		h = r.H * size.H
	case !from.normalized() && to.normalized():
		h = r.H / size.H
	}
	return Rect{X: o.X, Y: o.Y, W: w, H: h}, nil
}

// ConvertQuad maps each corner of q into target. Corner labels are kept.
func ConvertQuad(q Quad, to Space, size Size) (Quad, error) {
	fn, err := lookup(q.Space, to, size)
	if err != nil {
		return Quad{}, err
	}
	return Quad{
		TopLeft:     fn(q.TopLeft, size),
		TopRight:    fn(q.TopRight, size),
		BottomLeft:  fn(q.BottomLeft, size),
		BottomRight: fn(q.BottomRight, size),
		Space:       to,
	}, nil
}

// ConvertVector maps a displacement rather than a position: scale applies,
// and crossing the Y orientation negates dy without adding H.
func ConvertVector(v Point, from, to Space, size Size) (Point, error) {
	if _, err := lookup(from, to, size); err != nil {
		return Point{}, err
	}
	out := v
	switch {
	case from.normalized() && !to.normalized():
		out = Point{X: v.X * size.W, Y: v.Y * size.H}
	case !from.normalized() && to.normalized():
		out = Point{X: v.X / size.W, Y: v.Y / size.H}
	}
	if from.topLeft() != to.topLeft() {
		out.Y = -out.Y
	}
	return out, nil
}
