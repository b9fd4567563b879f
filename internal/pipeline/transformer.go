package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelgraph/internal/codec"
	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/graph"
	"github.com/dunamismax/pixelgraph/internal/render"
)

// Transformer turns encoded source bytes into an encoded result.
type Transformer interface {
	Transform(ctx context.Context, input []byte, recipe domain.Recipe) (Encoded, error)
}

// graphTransformer decodes the input, builds the recipe's graph and renders
// it on a shared render context.
type graphTransformer struct {
	renderer *render.Context
}

func NewTransformer(renderer *render.Context) Transformer {
	return graphTransformer{renderer: renderer}
}

func (t graphTransformer) Transform(ctx context.Context, input []byte, recipe domain.Recipe) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}

	src, srcFormat, err := codec.DecodeBytes(input)
	if err != nil {
		return Encoded{}, err
	}

	node, err := Build(graph.Load(src), recipe.Steps)
	if err != nil {
		return Encoded{}, fmt.Errorf("build graph: %w", err)
	}

	out, err := t.renderer.Render(ctx, node)
	if err != nil {
		return Encoded{}, fmt.Errorf("render graph: %w", err)
	}

	// Without an explicit format the source format is kept when this build
	// can write it.
	format := codec.NormalizeFormat(recipe.Format)
	if recipe.Format == "" {
		format = codec.FormatPNG
		if codec.CanEncode(srcFormat) {
			format = codec.NormalizeFormat(srcFormat)
		}
	}

	data, err := codec.EncodeBytes(out, format, recipe.Quality)
	if err != nil {
		return Encoded{}, err
	}

	b := out.Bounds()
	return Encoded{Data: data, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}
