package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/dunamismax/pixelgraph/internal/coords"
	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

func loadBlank(t *testing.T, w, h int) *graph.Node {
	t.Helper()
	return graph.Load(image.NewNRGBA(image.Rect(0, 0, w, h)))
}

func TestResizeRules(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		opts ResizeOptions
		want geom.Rect
	}{
		{"identity", 1000, 500, ResizeOptions{}, geom.NewRect(0, 0, 1000, 500)},
		{"width only keeps aspect", 1000, 500, ResizeOptions{Width: 300}, geom.NewRect(0, 0, 300, 150)},
		{"height only keeps aspect", 1000, 500, ResizeOptions{Height: 100}, geom.NewRect(0, 0, 200, 100)},
		{"fit within undershoots height", 1000, 500, ResizeOptions{Width: 400, Height: 400, MaintainAspectRatio: true}, geom.NewRect(0, 0, 400, 200)},
		{"fit within undershoots width", 1000, 500, ResizeOptions{Width: 900, Height: 100, MaintainAspectRatio: true}, geom.NewRect(0, 0, 200, 100)},
		{"stretch", 1000, 500, ResizeOptions{Width: 400, Height: 400}, geom.NewRect(0, 0, 400, 400)},
		{"negative treated as absent", 1000, 500, ResizeOptions{Width: -5, Height: 250}, geom.NewRect(0, 0, 500, 250)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resize(loadBlank(t, tt.w, tt.h), tt.opts).Extent()
			if got != tt.want {
				t.Fatalf("extent: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResizeIdentityReturnsSameNode(t *testing.T) {
	n := loadBlank(t, 10, 10)
	if Resize(n, ResizeOptions{}) != n {
		t.Fatal("expected identity resize to return the input node")
	}
	if Scale(n, 1) != n {
		t.Fatal("expected unit scale to return the input node")
	}
}

func TestResizeSingleDimensionKeepsAspectRatio(t *testing.T) {
	sizes := [][2]int{{1000, 500}, {640, 480}, {333, 777}, {1920, 1080}}
	for _, s := range sizes {
		n := loadBlank(t, s[0], s[1])
		out := Resize(n, ResizeOptions{Width: 257}).Extent()
		src := float64(s[0]) / float64(s[1])
		got := float64(out.W) / float64(out.H)
		// One pixel of rounding on the derived side bounds the error.
		tol := src / float64(out.H)
		if math.Abs(got-src) > tol {
			t.Fatalf("%dx%d: aspect %v, want %v within %v", s[0], s[1], got, src, tol)
		}
	}
}

func TestScaleHalf(t *testing.T) {
	got := Scale(loadBlank(t, 1000, 500), 0.5).Extent()
	if got != geom.NewRect(0, 0, 500, 250) {
		t.Fatalf("extent: got %+v", got)
	}
}

func TestScaleToNothingIsNoOp(t *testing.T) {
	n := loadBlank(t, 10, 10)
	if Scale(n, 0.01) != n {
		t.Fatal("expected scale that rounds to zero pixels to be a no-op")
	}
	if Scale(n, -2) != n {
		t.Fatal("expected negative scale to be a no-op")
	}
}

func TestCropIntersection(t *testing.T) {
	n := loadBlank(t, 800, 600)
	got := Crop(n, geom.NewRect(700, 500, 200, 200)).Extent()
	if got != geom.NewRect(700, 500, 100, 100) {
		t.Fatalf("extent: got %+v", got)
	}
}

func TestCropSupersetIsIdentity(t *testing.T) {
	n := loadBlank(t, 80, 60)
	if Crop(n, geom.NewRect(-10, -10, 200, 200)) != n {
		t.Fatal("expected covering crop to return the input node")
	}
}

func TestCropEmptyIntersectionIsNoOp(t *testing.T) {
	n := loadBlank(t, 80, 60)
	if Crop(n, geom.NewRect(500, 500, 10, 10)) != n {
		t.Fatal("expected disjoint crop to return the input node")
	}
	if Crop(n, geom.NewRect(10, 10, 0, 5)) != n {
		t.Fatal("expected zero-width crop to return the input node")
	}
}

func TestCropNormalizedFlipsY(t *testing.T) {
	n := loadBlank(t, 800, 600)
	// Top quarter strip of the image on screen.
	got := CropNormalized(n, coords.Rect{X: 0, Y: 0, W: 1, H: 0.25}).Extent()
	if got != geom.NewRect(0, 450, 800, 150) {
		t.Fatalf("extent: got %+v", got)
	}
}

func TestCropDisplayFlipsY(t *testing.T) {
	n := loadBlank(t, 800, 600)
	got := CropDisplay(n, coords.Rect{X: 700, Y: 0, W: 200, H: 100}).Extent()
	if got != geom.NewRect(700, 500, 100, 100) {
		t.Fatalf("extent: got %+v", got)
	}
}

func TestCropAfterCropUsesSameFrame(t *testing.T) {
	n := Crop(loadBlank(t, 800, 600), geom.NewRect(100, 100, 400, 400))
	got := Crop(n, geom.NewRect(450, 0, 100, 150)).Extent()
	if got != geom.NewRect(450, 100, 50, 50) {
		t.Fatalf("extent: got %+v", got)
	}
}

func TestRotateAroundCenterExpands(t *testing.T) {
	got := RotateAroundCenter(loadBlank(t, 100, 100), 45, true).Extent()
	if got != geom.NewRect(0, 0, 142, 142) {
		t.Fatalf("extent: got %+v", got)
	}
}

func TestRotateFullTurnKeepsExtentAtOrigin(t *testing.T) {
	got := RotateAroundCenter(loadBlank(t, 120, 80), 360, true).Extent()
	if got != geom.NewRect(0, 0, 120, 80) {
		t.Fatalf("extent: got %+v", got)
	}
}

func TestRotateThereAndBackRestoresDimensions(t *testing.T) {
	n := loadBlank(t, 100, 60)
	tests := []struct {
		deg    float64
		expand bool
	}{
		{30, true},
		{45, true},
		{90, true},
		{-90, true},
		{137.5, true},
		{180, true},
		{270, true},
		{13, false},
		{45, false},
		{137.5, false},
	}
	for _, tt := range tests {
		back := RotateAroundCenter(RotateAroundCenter(n, tt.deg, tt.expand), -tt.deg, tt.expand).Extent()
		if back.W != 100 || back.H != 60 {
			t.Fatalf("%v degrees (expand=%v): got %dx%d", tt.deg, tt.expand, back.W, back.H)
		}
	}
}

func TestRotateFoldsConsecutiveExpandingTurns(t *testing.T) {
	n := loadBlank(t, 100, 60)
	if got := RotateAroundCenter(RotateAroundCenter(n, 30, true), -30, true); got != n {
		t.Fatal("net-zero rotation should return the original node")
	}

	folded := RotateAroundCenter(RotateAroundCenter(n, 30, true), 60, true)
	if folded.Parent() != n {
		t.Fatal("expected a single rotation on the original node")
	}
	if got := folded.Extent(); got.W != 60 || got.H != 100 {
		t.Fatalf("30+60 degrees: got %dx%d, want 60x100", got.W, got.H)
	}
	op := folded.Op().(graph.RotateOp)
	if math.Abs(op.Radians+math.Pi/2) > 1e-12 {
		t.Fatalf("net primitive angle: got %v", op.Radians)
	}

	clipped := RotateAroundCenter(RotateAroundCenter(n, 30, false), 30, true)
	if clipped.Parent().Parent() != n {
		t.Fatal("a clipped rotation must not be folded")
	}
}

func TestRotateSignIsExplicit(t *testing.T) {
	n := RotateAroundCenter(loadBlank(t, 10, 10), 90, true)
	op, ok := n.Op().(graph.RotateOp)
	if !ok {
		t.Fatalf("expected RotateOp, got %T", n.Op())
	}
	if math.Abs(op.Radians+math.Pi/2) > 1e-12 {
		t.Fatalf("clockwise 90 should become -pi/2 primitive, got %v", op.Radians)
	}
}

func TestFlipNoFlagsIsNoOp(t *testing.T) {
	n := loadBlank(t, 10, 10)
	if Flip(n, false, false) != n {
		t.Fatal("expected no-op flip")
	}
	f := Flip(n, true, false)
	if f == n || f.Extent() != n.Extent() {
		t.Fatal("expected new node with unchanged extent")
	}
}
