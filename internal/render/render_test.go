package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dunamismax/pixelgraph/internal/coords"
	"github.com/dunamismax/pixelgraph/internal/filter"
	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/geometry"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

func buildTestImage(t testing.TB, w, h int) *image.NRGBA {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(17 * x), G: uint8(29 * y), B: uint8(x * y), A: 255})
		}
	}
	return img
}

func newSoftwareContext(t testing.TB, opts ...Option) *Context {
	t.Helper()

	c, err := New(append([]Option{WithPreferHardware(false)}, opts...)...)
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func mustRender(t testing.TB, c *Context, n *graph.Node) *image.NRGBA {
	t.Helper()

	out, err := c.Render(context.Background(), n)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return out
}

func assertSamePixels(t *testing.T, got, want *image.NRGBA) {
	t.Helper()

	if got.Bounds() != want.Bounds() {
		t.Fatalf("bounds: got %v, want %v", got.Bounds(), want.Bounds())
	}
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g, w := got.NRGBAAt(x, y), want.NRGBAAt(x, y); g != w {
				t.Fatalf("pixel (%d,%d): got %+v, want %+v", x, y, g, w)
			}
		}
	}
}

func TestSoftwareBackendSelected(t *testing.T) {
	c := newSoftwareContext(t)
	if c.IsHardwareAccelerated() {
		t.Fatal("expected software backend")
	}
	if c.BackendName() != "software" {
		t.Fatalf("backend name: %s", c.BackendName())
	}
}

func TestRenderLeafReturnsCopy(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 6, 4)
	n := graph.Load(src)

	out := mustRender(t, c, n)
	assertSamePixels(t, out, src)

	out.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	again := mustRender(t, c, n)
	assertSamePixels(t, again, src)
}

func TestRenderNilNode(t *testing.T) {
	c := newSoftwareContext(t)
	if _, err := c.Render(context.Background(), nil); !errors.Is(err, graph.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestFlipTwiceIsIdentity(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 7, 5)
	n := graph.Load(src)

	for _, flags := range [][2]bool{{true, false}, {false, true}, {true, true}} {
		twice := geometry.Flip(geometry.Flip(n, flags[0], flags[1]), flags[0], flags[1])
		assertSamePixels(t, mustRender(t, c, twice), src)
	}
}

func TestFlipHorizontalMirrorsColumns(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 5, 3)
	out := mustRender(t, c, geometry.Flip(graph.Load(src), true, false))
	if got, want := out.NRGBAAt(0, 1), src.NRGBAAt(4, 1); got != want {
		t.Fatalf("mirrored pixel: got %+v, want %+v", got, want)
	}
}

func TestRotateFullTurnReproducesInput(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 9, 4)
	for _, deg := range []float64{360, -360, 720} {
		out := mustRender(t, c, geometry.RotateAroundCenter(graph.Load(src), deg, true))
		assertSamePixels(t, out, src)
	}
}

func TestRotateClockwiseQuarterTurn(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 6, 4)
	out := mustRender(t, c, geometry.RotateAroundCenter(graph.Load(src), 90, true))

	if out.Bounds() != image.Rect(0, 0, 4, 6) {
		t.Fatalf("bounds: %v", out.Bounds())
	}
	// Clockwise on screen: the top-left source pixel ends up top-right.
	if got, want := out.NRGBAAt(3, 0), src.NRGBAAt(0, 0); got != want {
		t.Fatalf("corner pixel: got %+v, want %+v", got, want)
	}
	if got, want := out.NRGBAAt(0, 0), src.NRGBAAt(0, 3); got != want {
		t.Fatalf("corner pixel: got %+v, want %+v", got, want)
	}
}

func TestRotateArbitraryAngleExpandsCanvas(t *testing.T) {
	c := newSoftwareContext(t)
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	out := mustRender(t, c, geometry.RotateAroundCenter(graph.Load(src), 45, true))
	if out.Bounds() != image.Rect(0, 0, 142, 142) {
		t.Fatalf("bounds: %v", out.Bounds())
	}
	if a := out.NRGBAAt(0, 0).A; a != 0 {
		t.Fatalf("expected transparent corner, alpha=%d", a)
	}
	if a := out.NRGBAAt(71, 71).A; a == 0 {
		t.Fatal("expected opaque center")
	}
}

func TestRotateWithoutExpandKeepsSize(t *testing.T) {
	c := newSoftwareContext(t)
	out := mustRender(t, c, geometry.RotateAroundCenter(graph.Load(buildTestImage(t, 12, 8)), 90, false))
	if out.Bounds() != image.Rect(0, 0, 12, 8) {
		t.Fatalf("bounds: %v", out.Bounds())
	}
}

func TestCropDisplayRendersSubImage(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 4, 3)
	n := geometry.CropDisplay(graph.Load(src), coords.Rect{X: 1, Y: 0, W: 2, H: 2})

	out := mustRender(t, c, n)
	if out.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds: %v", out.Bounds())
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if got, want := out.NRGBAAt(x, y), src.NRGBAAt(x+1, y); got != want {
				t.Fatalf("pixel (%d,%d): got %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestResizeRendersExtentSize(t *testing.T) {
	c := newSoftwareContext(t)
	n := geometry.Resize(graph.Load(buildTestImage(t, 40, 20)), geometry.ResizeOptions{Width: 10})
	out := mustRender(t, c, n)
	if out.Bounds() != image.Rect(0, 0, 10, 5) {
		t.Fatalf("bounds: %v", out.Bounds())
	}
}

func TestIdentityWarpReproducesInput(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 8, 6)
	n := graph.Load(src)
	warped := n.Apply(graph.WarpOp{Matrix: geom.ProjectiveIdentity(), Out: n.Extent()})

	assertSamePixels(t, mustRender(t, c, warped), src)
}

func TestTranslationWarpShiftsPixels(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 5, 3)
	n := graph.Load(src)
	shifted := n.Apply(graph.WarpOp{Matrix: geom.Translate(1, 0).Projective(), Out: n.Extent()})

	out := mustRender(t, c, shifted)
	if a := out.NRGBAAt(0, 1).A; a != 0 {
		t.Fatalf("expected uncovered column to be transparent, alpha=%d", a)
	}
	if got, want := out.NRGBAAt(3, 1), src.NRGBAAt(2, 1); got != want {
		t.Fatalf("shifted pixel: got %+v, want %+v", got, want)
	}
}

func TestSingularWarpIsDegenerate(t *testing.T) {
	c := newSoftwareContext(t)
	n := graph.Load(buildTestImage(t, 4, 4))
	bad := n.Apply(graph.WarpOp{Matrix: geom.Projective{}, Out: n.Extent()})
	if bad == n {
		t.Fatal("expected warp node to be built")
	}

	out, err := c.Render(context.Background(), bad)
	if !errors.Is(err, graph.ErrDegenerateGeometry) {
		t.Fatalf("expected degenerate geometry, got %v", err)
	}
	if out != nil {
		t.Fatal("expected no buffer on failure")
	}
}

func TestPixelBudgetFailure(t *testing.T) {
	c := newSoftwareContext(t, WithMaxPixels(100))
	n := graph.Load(buildTestImage(t, 20, 20))

	out, err := c.Render(context.Background(), n)
	if !errors.Is(err, graph.ErrRenderBackendFailure) {
		t.Fatalf("expected backend failure, got %v", err)
	}
	if out != nil {
		t.Fatal("expected no buffer on failure")
	}
}

type panicFilter struct{}

func (panicFilter) Name() string                     { return "panic" }
func (panicFilter) Params() map[string]float64       { return nil }
func (panicFilter) Apply(*image.NRGBA) *image.NRGBA { panic("boom") }

type shrinkFilter struct{}

func (shrinkFilter) Name() string               { return "shrink" }
func (shrinkFilter) Params() map[string]float64 { return nil }
func (shrinkFilter) Apply(*image.NRGBA) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, 1, 1))
}

func TestBackendFaultsBecomeTypedFailures(t *testing.T) {
	c := newSoftwareContext(t)
	n := graph.Load(buildTestImage(t, 4, 4))

	for _, f := range []graph.Filter{panicFilter{}, shrinkFilter{}} {
		out, err := c.Render(context.Background(), filter.Apply(n, f))
		if !errors.Is(err, graph.ErrRenderBackendFailure) {
			t.Fatalf("%s: expected backend failure, got %v", f.Name(), err)
		}
		if out != nil {
			t.Fatalf("%s: expected no buffer on failure", f.Name())
		}
	}
}

func TestFilterRender(t *testing.T) {
	c := newSoftwareContext(t)
	src := buildTestImage(t, 3, 3)
	out := mustRender(t, c, filter.Apply(graph.Load(src), filter.Invert()))
	want := src.NRGBAAt(2, 1)
	got := out.NRGBAAt(2, 1)
	if got.R != 255-want.R || got.G != 255-want.G || got.B != 255-want.B || got.A != want.A {
		t.Fatalf("inverted pixel: got %+v from %+v", got, want)
	}
}

func TestConcurrentRendersMatchSerial(t *testing.T) {
	c := newSoftwareContext(t)
	n := graph.Load(buildTestImage(t, 32, 24))
	n = geometry.Flip(n, true, false)
	n = geometry.RotateAroundCenter(n, 30, true)
	n = filter.Apply(n, filter.Brightness(10))

	want := mustRender(t, c, n)

	var wg sync.WaitGroup
	results := make([]*image.NRGBA, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Render(context.Background(), n)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("render %d: %v", i, errs[i])
		}
		assertSamePixels(t, results[i], want)
	}
}

func TestClearCaches(t *testing.T) {
	c := newSoftwareContext(t)
	n := graph.Load(buildTestImage(t, 10, 10))
	n = geometry.Flip(n, true, false)
	n = geometry.Crop(n, geom.NewRect(0, 0, 5, 5))
	n = filter.Apply(n, filter.Invert())

	first := mustRender(t, c, n)
	if c.cache.Len() == 0 {
		t.Fatal("expected intermediates to be cached")
	}

	c.ClearCaches()
	if c.cache.Len() != 0 {
		t.Fatalf("cache not empty: %d", c.cache.Len())
	}
	assertSamePixels(t, mustRender(t, c, n), first)
}

func TestCachedIntermediateIsNotHandedOut(t *testing.T) {
	c := newSoftwareContext(t)
	base := geometry.Flip(graph.Load(buildTestImage(t, 6, 6)), true, false)
	top := filter.Apply(base, filter.Invert())
	mustRender(t, c, top)

	out := mustRender(t, c, base)
	out.SetNRGBA(0, 0, color.NRGBA{})
	again := mustRender(t, c, top)
	if again.NRGBAAt(0, 0).A == 0 {
		t.Fatal("cached intermediate was modified through a returned buffer")
	}
}

type fallbackBackend struct{ calls int }

func (*fallbackBackend) name() string { return "fake" }
func (*fallbackBackend) close()       {}
func (b *fallbackBackend) apply(graph.Op, *image.NRGBA, geom.Rect, geom.Rect) (*image.NRGBA, error) {
	b.calls++
	return nil, errFallback
}

func TestAcceleratedFallbackRunsSoftware(t *testing.T) {
	metrics := NewMetrics()
	c := newSoftwareContext(t, WithCacheEntries(0), WithMetrics(metrics))
	fake := &fallbackBackend{}
	c.accel = fake

	src := buildTestImage(t, 5, 5)
	twice := geometry.Flip(geometry.Flip(graph.Load(src), true, false), true, false)
	assertSamePixels(t, mustRender(t, c, twice), src)

	if fake.calls != 2 {
		t.Fatalf("accelerated backend calls: %d", fake.calls)
	}
	if !c.IsHardwareAccelerated() || c.BackendName() != "fake" {
		t.Fatal("expected fake accelerated backend to be reported")
	}

	path := filepath.Join(t.TempDir(), "render.prom")
	if err := metrics.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, name := range []string{"pixelgraph_render_total", "pixelgraph_render_fallbacks_total"} {
		if !strings.Contains(string(data), name) {
			t.Fatalf("textfile missing %s", name)
		}
	}
}

func BenchmarkRenderChain(b *testing.B) {
	c := newSoftwareContext(b, WithCacheEntries(0))
	n := graph.Load(buildTestImage(b, 256, 256))
	n = geometry.Scale(n, 0.5)
	n = geometry.RotateAroundCenter(n, 90, true)
	n = filter.Apply(n, filter.Contrast(15))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Render(context.Background(), n); err != nil {
			b.Fatalf("render: %v", err)
		}
	}
}
