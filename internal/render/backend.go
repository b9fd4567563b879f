package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

// errFallback is returned by the accelerated backend for ops it does not
// run. The software backend then runs that op alone.
var errFallback = errors.New("op not supported by backend")

// backend runs one op. in is the parent's buffer with extent inExt; the
// result must be exactly outExt's size. Backends must not modify in.
type backend interface {
	name() string
	apply(op graph.Op, in *image.NRGBA, inExt, outExt geom.Rect) (*image.NRGBA, error)
	close()
}

func (c *Context) applyOp(op graph.Op, in *image.NRGBA, inExt, outExt geom.Rect) (*image.NRGBA, error) {
	if c.accel != nil {
		out, err := runGuarded(c.accel, op, in, inExt, outExt)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, errFallback):
			c.logger.Debug("op falls back to software", "op", op.Name(), "reason", err)
			if c.metrics != nil {
				c.metrics.fallbacks.WithLabelValues(op.Name()).Inc()
			}
		default:
			return nil, err
		}
	}
	return runGuarded(c.software, op, in, inExt, outExt)
}

// runGuarded turns backend panics and malformed output into typed
// failures so a caller never sees a partial buffer.
func runGuarded(b backend, op graph.Op, in *image.NRGBA, inExt, outExt geom.Rect) (out *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = graph.Errorf(graph.KindRenderBackendFailure, op.Name(), "%s backend panic: %v", b.name(), r)
		}
	}()

	out, err = b.apply(op, in, inExt, outExt)
	if err != nil {
		if errors.Is(err, errFallback) || graph.KindOf(err) != 0 {
			return nil, err
		}
		return nil, graph.NewError(graph.KindRenderBackendFailure, op.Name(), fmt.Errorf("%s backend: %w", b.name(), err))
	}
	if out == nil {
		return nil, graph.Errorf(graph.KindRenderBackendFailure, op.Name(), "%s backend produced no output", b.name())
	}
	if got := out.Bounds(); got.Dx() != outExt.W || got.Dy() != outExt.H {
		return nil, graph.Errorf(graph.KindRenderBackendFailure, op.Name(),
			"%s backend produced %dx%d, want %dx%d", b.name(), got.Dx(), got.Dy(), outExt.W, outExt.H)
	}
	if got := out.Bounds(); got.Min != (image.Point{}) {
		out = rebase(out)
	}
	return out, nil
}

// rebase moves a buffer's bounds to start at the origin without copying.
func rebase(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	return &image.NRGBA{
		Pix:    img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		Stride: img.Stride,
		Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}
}
