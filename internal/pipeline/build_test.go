package pipeline

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

func TestBuildComposesSteps(t *testing.T) {
	leaf := graph.Load(image.NewNRGBA(image.Rect(0, 0, 800, 600)))
	n, err := Build(leaf, []domain.Step{
		{Action: domain.ActionCrop, X: 700, Y: 0, Width: 200, Height: 200},
		{Action: domain.ActionResize, Scale: 0.5},
		{Action: domain.ActionFlip, Horizontal: true},
		{Action: domain.ActionAlign, OffsetX: 3},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if n.Depth() != 4 {
		t.Fatalf("depth: got %d", n.Depth())
	}
	// Crop lands at (700,400) in render space; halving scales the origin too.
	if n.Extent() != geom.NewRect(350, 200, 50, 100) {
		t.Fatalf("extent: %+v", n.Extent())
	}
}

func TestBuildRejectsInvalidStepBeforeBuilding(t *testing.T) {
	leaf := graph.Load(image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	_, err := Build(leaf, []domain.Step{{Action: domain.ActionRotate, Angle: 10}, {Action: domain.ActionFlip}})
	if !errors.Is(err, graph.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestBuildPerspectiveLowConfidence(t *testing.T) {
	leaf := graph.Load(image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	_, err := Build(leaf, []domain.Step{{
		Action:     domain.ActionPerspective,
		Corners:    &domain.Corners{TopRight: [2]float64{1, 0}, BottomRight: [2]float64{1, 1}, BottomLeft: [2]float64{0, 1}},
		Confidence: 0.2,
	}})
	if err == nil {
		t.Fatal("expected low confidence error")
	}
}

func TestLoadRecipeTOMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "thumbs.toml")
	tomlData := []byte(`
name = "thumbs"
format = "jpeg"
quality = 70

[[steps]]
action = "resize"
width = 320

[[steps]]
action = "filter"
filter = "gaussian_blur"
params = { radius = 2.0 }
`)
	if err := os.WriteFile(tomlPath, tomlData, 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	r, err := LoadRecipe(tomlPath)
	if err != nil {
		t.Fatalf("load toml recipe: %v", err)
	}
	if r.Name != "thumbs" || len(r.Steps) != 2 || r.Steps[1].Params["radius"] != 2 {
		t.Fatalf("unexpected recipe: %+v", r)
	}

	jsonPath := filepath.Join(dir, "scan.json")
	jsonData := []byte(`{"steps":[{"action":"rotate","angle":-90,"no_expand":true}],"format":"png"}`)
	if err := os.WriteFile(jsonPath, jsonData, 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	r, err = LoadRecipe(jsonPath)
	if err != nil {
		t.Fatalf("load json recipe: %v", err)
	}
	if r.Steps[0].Angle != -90 || !r.Steps[0].NoExpand {
		t.Fatalf("unexpected recipe: %+v", r)
	}
}

func TestLoadRecipeRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"steps":[{"action":"flip","horizontal":true,"mirror":1}]}`), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	if _, err := LoadRecipe(path); err == nil {
		t.Fatal("expected unknown key error")
	}

	if _, err := LoadRecipe(filepath.Join(dir, "recipe.yaml")); err == nil {
		t.Fatal("expected unsupported extension error")
	}
}
