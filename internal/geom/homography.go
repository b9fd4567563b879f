package geom

import "math"

// pivotEpsilon is the smallest pivot accepted by the 8x8 elimination.
const pivotEpsilon = 1e-12

// Homography solves for the projective transform that maps each src[i]
// onto dst[i]. It returns ErrSingular when the correspondence does not
// determine a unique transform, which happens when three of the points in
// either set are colinear.
func Homography(src, dst [4]Point) (Projective, error) {
	// Eight unknowns h0..h7 with h8 fixed at 1:
	//   x' = (h0 x + h1 y + h2) / (h6 x + h7 y + 1)
	//   y' = (h3 x + h4 y + h5) / (h6 x + h7 y + 1)
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		r := 2 * i
		a[r] = [8]float64{x, y, 1, 0, 0, 0, -x * u, -y * u}
		b[r] = u
		a[r+1] = [8]float64{0, 0, 0, x, y, 1, -x * v, -y * v}
		b[r+1] = v
	}

	h, ok := solve8(a, b)
	if !ok {
		return Projective{}, ErrSingular
	}
	out := Projective{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}
	if !out.IsFinite() {
		return Projective{}, ErrSingular
	}

	// A solvable system can still describe a rank-deficient map when the
	// input is degenerate; such a map cannot reproduce the correspondence.
	bb := BoundsOf(dst[:]...)
	tol := 1e-4 * math.Max(1, math.Max(bb.Width(), bb.Height()))
	for i := range 4 {
		p, ok := out.Apply(src[i])
		if !ok || math.Abs(p.X-dst[i].X) > tol || math.Abs(p.Y-dst[i].Y) > tol {
			return Projective{}, ErrSingular
		}
	}
	return out, nil
}

// solve8 is Gauss-Jordan elimination with partial pivoting. The pivot
// threshold is relative to the largest coefficient so that pixel-sized and
// unit-sized inputs behave alike.
func solve8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	scale := 0.0
	for i := range 8 {
		for j := range 8 {
			scale = math.Max(scale, math.Abs(a[i][j]))
		}
	}
	if scale == 0 {
		return [8]float64{}, false
	}

	for col := range 8 {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < pivotEpsilon*scale {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		p := a[col][col]
		for j := col; j < 8; j++ {
			a[col][j] /= p
		}
		b[col] /= p

		for row := range 8 {
			if row == col {
				continue
			}
			f := a[row][col]
			if f == 0 {
				continue
			}
			for j := col; j < 8; j++ {
				a[row][j] -= f * a[col][j]
			}
			b[row] -= f * b[col]
		}
	}
	return b, true
}

// Cross is the z component of (b-a) x (c-a): twice the signed area of the
// triangle abc.
func Cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// AnyColinear reports whether any three of the four points are colinear
// within tol, measured as triangle area relative to the squared span of the
// point set.
func AnyColinear(pts [4]Point, tol float64) bool {
	bb := BoundsOf(pts[:]...)
	span := math.Max(bb.Width(), bb.Height())
	if span == 0 {
		return true
	}
	limit := tol * span * span
	triples := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, t := range triples {
		if math.Abs(Cross(pts[t[0]], pts[t[1]], pts[t[2]])) <= limit {
			return true
		}
	}
	return false
}
