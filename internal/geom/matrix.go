package geom

import (
	"errors"
	"math"

	"golang.org/x/image/math/f64"
)

// ErrSingular is returned when a matrix has no inverse.
var ErrSingular = errors.New("singular matrix")

// detEpsilon is the smallest determinant treated as invertible.
const detEpsilon = 1e-10

// Affine is a 2x3 matrix in row-major order:
//
//	x' = A[0]*x + A[1]*y + A[2]
//	y' = A[3]*x + A[4]*y + A[5]
//
// The layout matches f64.Aff3 so it can be handed to x/image/draw directly.
type Affine [6]float64

func Identity() Affine {
	return Affine{1, 0, 0, 0, 1, 0}
}

func Translate(dx, dy float64) Affine {
	return Affine{1, 0, dx, 0, 1, dy}
}

func Scale(sx, sy float64) Affine {
	return Affine{sx, 0, 0, 0, sy, 0}
}

// Rotate is a counter-clockwise rotation by radians in a y-up frame.
func Rotate(radians float64) Affine {
	sin, cos := math.Sincos(radians)
	return Affine{cos, -sin, 0, sin, cos, 0}
}

// RotateAbout rotates by radians about c.
func RotateAbout(radians float64, c Point) Affine {
	return Translate(c.X, c.Y).Mul(Rotate(radians)).Mul(Translate(-c.X, -c.Y))
}

// Mul returns m*o, the transform that applies o first and then m.
func (m Affine) Mul(o Affine) Affine {
	return Affine{
		m[0]*o[0] + m[1]*o[3],
		m[0]*o[1] + m[1]*o[4],
		m[0]*o[2] + m[1]*o[5] + m[2],
		m[3]*o[0] + m[4]*o[3],
		m[3]*o[1] + m[4]*o[4],
		m[3]*o[2] + m[4]*o[5] + m[5],
	}
}

func (m Affine) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

func (m Affine) Det() float64 {
	return m[0]*m[4] - m[1]*m[3]
}

func (m Affine) Invert() (Affine, error) {
	det := m.Det()
	if math.Abs(det) < detEpsilon {
		return Affine{}, ErrSingular
	}
	inv := 1 / det
	a := m[4] * inv
	b := -m[1] * inv
	d := -m[3] * inv
	e := m[0] * inv
	return Affine{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}, nil
}

func (m Affine) Aff3() f64.Aff3 {
	return f64.Aff3(m)
}

// Projective promotes m to a 3x3 homography.
func (m Affine) Projective() Projective {
	return Projective{m[0], m[1], m[2], m[3], m[4], m[5], 0, 0, 1}
}

// Projective is a 3x3 homography in row-major order. Points map as
// (x, y, 1) -> (x'/w, y'/w).
type Projective [9]float64

func ProjectiveIdentity() Projective {
	return Projective{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func (h Projective) Mul(o Projective) Projective {
	var r Projective
	for i := range 3 {
		for j := range 3 {
			r[i*3+j] = h[i*3]*o[j] + h[i*3+1]*o[3+j] + h[i*3+2]*o[6+j]
		}
	}
	return r
}

// Apply maps p. The second result is false when p maps to infinity.
func (h Projective) Apply(p Point) (Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < detEpsilon {
		return Point{}, false
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

func (h Projective) Det() float64 {
	return h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
}

func (h Projective) Invert() (Projective, error) {
	det := h.Det()
	if math.Abs(det) < detEpsilon || math.IsNaN(det) {
		return Projective{}, ErrSingular
	}
	inv := 1 / det
	return Projective{
		(h[4]*h[8] - h[5]*h[7]) * inv,
		(h[2]*h[7] - h[1]*h[8]) * inv,
		(h[1]*h[5] - h[2]*h[4]) * inv,
		(h[5]*h[6] - h[3]*h[8]) * inv,
		(h[0]*h[8] - h[2]*h[6]) * inv,
		(h[2]*h[3] - h[0]*h[5]) * inv,
		(h[3]*h[7] - h[4]*h[6]) * inv,
		(h[1]*h[6] - h[0]*h[7]) * inv,
		(h[0]*h[4] - h[1]*h[3]) * inv,
	}, nil
}

// IsFinite reports whether every coefficient is a real number.
func (h Projective) IsFinite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
