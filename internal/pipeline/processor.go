package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/pixelgraph/internal/codec"
	"github.com/dunamismax/pixelgraph/internal/domain"
	"github.com/dunamismax/pixelgraph/internal/render"
)

var ErrMissingInput = errors.New("input path is required")

// Request is one image to run through a recipe. ItemID names the output.
type Request struct {
	ItemID string
	Input  string
	Recipe domain.Recipe
}

// Encoded is a rendered image after encoding, before it is written.
type Encoded struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Pixels is the rendered area.
func (e Encoded) Pixels() int64 { return int64(e.Width) * int64(e.Height) }

// Output describes a written result.
type Output struct {
	ItemID string
	Format string
	Path   string
	Bytes  int
	Width  int
	Height int
}

type Result struct {
	Output Output
	Usage  domain.Usage
}

// Fetcher loads the encoded source image for a request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Emitter stores an encoded result.
type Emitter interface {
	Emit(ctx context.Context, req Request, enc Encoded) (Output, error)
}

// Processor runs the fetch, transform and emit stages for one request.
type Processor struct {
	fetcher     Fetcher
	transformer Transformer
	emitter     Emitter
}

// NewLocalProcessor reads inputs from disk and writes one file per item
// into outputDir.
func NewLocalProcessor(renderer *render.Context, outputDir string) (*Processor, error) {
	if renderer == nil {
		return nil, errors.New("render context is required")
	}
	return NewProcessor(LocalFileFetcher{}, NewTransformer(renderer), DirEmitter{Dir: outputDir}), nil
}

func NewProcessor(fetcher Fetcher, transformer Transformer, emitter Emitter) *Processor {
	return &Processor{fetcher: fetcher, transformer: transformer, emitter: emitter}
}

// Process validates the request and runs it. Errors carry the failing
// stage and item; the typed render and validation errors stay reachable
// through errors.Is.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ItemID) == "" {
		return Result{}, errors.New("item id is required")
	}
	if err := req.Recipe.Validate(); err != nil {
		return Result{}, fmt.Errorf("validate recipe: %w", err)
	}
	start := time.Now()

	src, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", req.ItemID, err)
	}

	enc, err := p.transformer.Transform(ctx, src, req.Recipe)
	if err != nil {
		return Result{}, fmt.Errorf("transform %s: %w", req.ItemID, err)
	}

	out, err := p.emitter.Emit(ctx, req, enc)
	if err != nil {
		return Result{}, fmt.Errorf("emit %s: %w", req.ItemID, err)
	}

	usage := domain.Usage{
		PixelsProcessed: enc.Pixels(),
		BytesWritten:    int64(out.Bytes),
		ComputeTime:     time.Since(start),
	}
	return Result{Output: out, Usage: usage}, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, ErrMissingInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(req.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// DirEmitter writes <Dir>/<item id><ext>, creating Dir as needed.
type DirEmitter struct {
	Dir string
}

func (e DirEmitter) Emit(ctx context.Context, req Request, enc Encoded) (Output, error) {
	if strings.TrimSpace(e.Dir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	name := FileToken(req.ItemID) + codec.Extension(enc.Format)
	return PathEmitter{Path: filepath.Join(e.Dir, name)}.Emit(ctx, req, enc)
}

// PathEmitter writes to one fixed path, for single-image commands.
type PathEmitter struct {
	Path string
}

func (e PathEmitter) Emit(ctx context.Context, req Request, enc Encoded) (Output, error) {
	if strings.TrimSpace(e.Path) == "" {
		return Output{}, errors.New("output path is required")
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if err := os.MkdirAll(filepath.Dir(e.Path), 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(e.Path, enc.Data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output: %w", err)
	}
	return Output{
		ItemID: req.ItemID,
		Format: codec.NormalizeFormat(enc.Format),
		Path:   e.Path,
		Bytes:  len(enc.Data),
		Width:  enc.Width,
		Height: enc.Height,
	}, nil
}

// FileToken is the file name stem DirEmitter uses for an item id: every
// rune outside [A-Za-z0-9_-] becomes '_'.
func FileToken(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
