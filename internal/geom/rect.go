package geom

import "math"

// Rect is an integer pixel rectangle: origin plus width and height. The
// package does not fix an axis orientation; callers tag the space.
type Rect struct {
	X, Y int
	W, H int
}

func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) MaxX() int { return r.X + r.W }
func (r Rect) MaxY() int { return r.Y + r.H }

// Intersect returns the overlap of r and o, or the zero Rect when they do
// not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.MaxX(), o.MaxX())
	y1 := min(r.MaxY(), o.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.MaxX() <= r.MaxX() && o.MaxY() <= r.MaxY()
}

func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

func (r Rect) Center() Point {
	return Point{X: float64(r.X) + float64(r.W)/2, Y: float64(r.Y) + float64(r.H)/2}
}

// Corners lists the four corners counter-clockwise starting at the origin.
func (r Rect) Corners() [4]Point {
	x0, y0 := float64(r.X), float64(r.Y)
	x1, y1 := float64(r.MaxX()), float64(r.MaxY())
	return [4]Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// Point is a continuous 2D coordinate.
type Point struct {
	X, Y float64
}

func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Bounds is the float bounding box of a point set.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

func BoundsOf(pts ...Point) Bounds {
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range pts {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// snapEpsilon absorbs float noise from trigonometry so that, for example,
// a 90 degree rotation of a 60px edge is not widened to 61px.
const snapEpsilon = 1e-6

// Outer returns the smallest integer Rect enclosing b.
func (b Bounds) Outer() Rect {
	x0 := int(math.Floor(b.MinX + snapEpsilon))
	y0 := int(math.Floor(b.MinY + snapEpsilon))
	x1 := int(math.Ceil(b.MaxX - snapEpsilon))
	y1 := int(math.Ceil(b.MaxY - snapEpsilon))
	return Rect{X: x0, Y: y0, W: max(0, x1-x0), H: max(0, y1-y0)}
}

// CeilSize rounds a float size up to whole pixels, tolerating float noise.
func CeilSize(v float64) int {
	return int(math.Ceil(v - snapEpsilon))
}
