package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/dunamismax/pixelgraph/internal/graph"
)

func TestRecipeValidate(t *testing.T) {
	valid := Recipe{
		Steps: []Step{
			{Action: ActionResize, Width: 300},
			{Action: "Rotate", Angle: 90},
			{Action: ActionFilter, Filter: "gaussian_blur", Params: map[string]float64{"radius": 3}},
		},
		Format: "jpeg",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid recipe, got error: %v", err)
	}

	if err := (Recipe{}).Validate(); err == nil {
		t.Fatal("expected validation error for empty recipe")
	}

	badQuality := valid
	badQuality.Quality = 101
	if err := badQuality.Validate(); err == nil {
		t.Fatal("expected validation error for quality")
	}

	badFormat := valid
	badFormat.Format = "gif"
	if err := badFormat.Validate(); !errors.Is(err, graph.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter for unknown format, got %v", err)
	}
}

func TestStepValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{"missing action", Step{}},
		{"unknown action", Step{Action: "swirl"}},
		{"negative width", Step{Action: ActionResize, Width: -1}},
		{"scale and width", Step{Action: ActionResize, Width: 10, Scale: 0.5}},
		{"no resize target", Step{Action: ActionResize}},
		{"zero crop", Step{Action: ActionCrop, Width: 0, Height: 10}},
		{"negative crop x", Step{Action: ActionCrop, X: -5, Width: 1, Height: 1}},
		{"negative crop y", Step{Action: ActionCrop, Y: -0.5, Width: 1, Height: 1}},
		{"nan angle", Step{Action: ActionRotate, Angle: math.NaN()}},
		{"flip without axis", Step{Action: ActionFlip}},
		{"unknown filter", Step{Action: ActionFilter, Filter: "swirl"}},
		{"filter out of range", Step{Action: ActionFilter, Filter: "brightness", Params: map[string]float64{"amount": 250}}},
		{"filter unknown param", Step{Action: ActionFilter, Filter: "brightness", Params: map[string]float64{"radius": 2}}},
		{"perspective without corners", Step{Action: ActionPerspective}},
		{"corner outside unit square", Step{Action: ActionPerspective, Corners: &Corners{TopLeft: [2]float64{-0.1, 0}}}},
		{"infinite offset", Step{Action: ActionAlign, OffsetX: math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if !errors.Is(err, graph.ErrInvalidParameter) {
				t.Fatalf("expected invalid parameter, got %v", err)
			}
		})
	}
}

func TestStepValidateAcceptsBoundaries(t *testing.T) {
	steps := []Step{
		{Action: ActionFilter, Filter: "brightness", Params: map[string]float64{"amount": 100}},
		{Action: ActionPerspective, Corners: &Corners{TopRight: [2]float64{1, 0}, BottomRight: [2]float64{1, 1}, BottomLeft: [2]float64{0, 1}}, Confidence: 1},
		{Action: ActionCrop, X: 0, Y: 0, Width: 1, Height: 1},
		{Action: ActionCrop, X: 5000, Y: 5000, Width: 1, Height: 1},
		{Action: ActionAlign},
	}
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			t.Fatalf("%s: unexpected error %v", s.Action, err)
		}
	}
}

func TestUsageAdd(t *testing.T) {
	var total Usage
	total.Add(Usage{PixelsProcessed: 10, BytesWritten: 3, ComputeTime: 400_000})
	total.Add(Usage{PixelsProcessed: 5})
	if total.PixelsProcessed != 15 || total.BytesWritten != 3 {
		t.Fatalf("usage: %+v", total)
	}
	if total.ComputeTimeMS() != 1 {
		t.Fatalf("sub-millisecond compute should round up to 1, got %d", total.ComputeTimeMS())
	}
}
