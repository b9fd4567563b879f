package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/pixelgraph/internal/codec"
	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/graph"
	"github.com/dunamismax/pixelgraph/internal/render"
)

func newTestRenderer(t testing.TB) *render.Context {
	t.Helper()

	rc, err := render.New(render.WithPreferHardware(false))
	if err != nil {
		t.Fatalf("new render context: %v", err)
	}
	t.Cleanup(rc.Close)
	return rc
}

func TestLocalProcessor_FileInTransformFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 240, 120)
	if err := os.WriteFile(inputPath, srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor(newTestRenderer(t), outputDir)
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	req := Request{
		ItemID: "item/local 1",
		Input:  inputPath,
		Recipe: domain.Recipe{
			Steps: []domain.Step{
				{Action: domain.ActionResize, Width: 80},
				{Action: domain.ActionRotate, Angle: 90},
				{Action: domain.ActionFilter, Filter: "sepia"},
			},
			Format:  "jpeg",
			Quality: 75,
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	out := result.Output
	if out.Format != "jpeg" || filepath.Base(out.Path) != "item_local_1.jpg" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.Width != 40 || out.Height != 80 {
		t.Fatalf("expected 40x80 after resize and rotate, got %dx%d", out.Width, out.Height)
	}
	verifyImageSize(t, out.Path, 40, 80)

	if result.Usage.PixelsProcessed != 40*80 || result.Usage.BytesWritten != int64(out.Bytes) {
		t.Fatalf("usage: %+v", result.Usage)
	}
}

func TestLocalProcessor_KeepsSourceFormat(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	if err := os.WriteFile(inputPath, buildTestPNG(t, 30, 20), 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor(newTestRenderer(t), tmp)
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}
	result, err := processor.Process(context.Background(), Request{
		ItemID: "flip",
		Input:  inputPath,
		Recipe: domain.Recipe{Steps: []domain.Step{{Action: domain.ActionFlip, Vertical: true}}},
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}
	if result.Output.Format != "png" {
		t.Fatalf("expected png output, got %s", result.Output.Format)
	}
}

func TestLocalProcessor_WebPSourceWithoutFormat(t *testing.T) {
	if codec.CanEncode(codec.FormatWebP) {
		t.Skip("this build encodes webp; the source format is kept")
	}
	processor, err := NewLocalProcessor(newTestRenderer(t), t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		ItemID: "gopher",
		Input:  filepath.Join("testdata", "gopher.lossless.webp"),
		Recipe: domain.Recipe{Steps: []domain.Step{{Action: domain.ActionFlip, Horizontal: true}}},
	})
	if err != nil {
		t.Fatalf("process webp source: %v", err)
	}
	if result.Output.Format != codec.FormatPNG || filepath.Base(result.Output.Path) != "gopher.png" {
		t.Fatalf("expected png fallback, got %+v", result.Output)
	}
	verifyImageSize(t, result.Output.Path, 75, 100)
}

func TestLocalProcessor_MissingInput(t *testing.T) {
	processor, err := NewLocalProcessor(newTestRenderer(t), t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		ItemID: "missing",
		Recipe: domain.Recipe{Steps: []domain.Step{{Action: domain.ActionResize, Width: 10}}},
	})
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestLocalProcessor_RejectsInvalidRecipe(t *testing.T) {
	processor, err := NewLocalProcessor(newTestRenderer(t), t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}
	processor.fetcher = staticFetcher{data: buildTestPNG(t, 10, 10)}

	_, err = processor.Process(context.Background(), Request{
		ItemID: "bad",
		Recipe: domain.Recipe{Steps: []domain.Step{{Action: domain.ActionFilter, Filter: "brightness", Params: map[string]float64{"amount": 500}}}},
	})
	if !errors.Is(err, graph.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestLocalProcessor_DegenerateScan(t *testing.T) {
	processor, err := NewLocalProcessor(newTestRenderer(t), t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}
	processor.fetcher = staticFetcher{data: buildTestPNG(t, 50, 50)}
	processor.emitter = discardEmitter{}

	_, err = processor.Process(context.Background(), Request{
		ItemID: "scan",
		Recipe: domain.Recipe{Steps: []domain.Step{{
			Action: domain.ActionPerspective,
			Corners: &domain.Corners{
				TopLeft:     [2]float64{0, 0},
				TopRight:    [2]float64{0.5, 0.5},
				BottomRight: [2]float64{1, 1},
				BottomLeft:  [2]float64{0, 1},
			},
		}}},
	})
	if !errors.Is(err, graph.ErrDegenerateGeometry) {
		t.Fatalf("expected degenerate geometry, got %v", err)
	}
}

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func verifyImageSize(t *testing.T, path string, wantW, wantH int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}

	if got := img.Bounds(); got.Dx() != wantW || got.Dy() != wantH {
		t.Fatalf("expected %dx%d, got %dx%d", wantW, wantH, got.Dx(), got.Dy())
	}
}
