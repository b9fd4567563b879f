//go:build govips && cgo

package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"github.com/dunamismax/pixelgraph/internal/filter"
	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

// libvips can be started once per process. Contexts share it and the last
// one to close shuts it down.
var (
	vipsMu      sync.Mutex
	vipsRefs    int
	vipsStopped bool
)

func newAcceleratedBackend() (backend, error) {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsStopped {
		return nil, errors.New("libvips already shut down in this process")
	}
	if vipsRefs == 0 {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})
	}
	vipsRefs++
	return &vipsBackend{}, nil
}

type vipsBackend struct {
	closeOnce sync.Once
}

func (*vipsBackend) name() string { return "libvips" }

func (b *vipsBackend) close() {
	b.closeOnce.Do(func() {
		vipsMu.Lock()
		defer vipsMu.Unlock()
		vipsRefs--
		if vipsRefs == 0 {
			vips.Shutdown()
			vipsStopped = true
		}
	})
}

func (b *vipsBackend) apply(op graph.Op, in *image.NRGBA, inExt, outExt geom.Rect) (*image.NRGBA, error) {
	run, ok := vipsOp(op, inExt, outExt)
	if !ok {
		return nil, errFallback
	}

	img, err := toVips(in)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if err := run(img); err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name(), err)
	}
	// libvips rounds sizes its own way; keep extents authoritative.
	if img.Width() != outExt.W || img.Height() != outExt.H {
		return nil, errFallback
	}
	return fromVips(img)
}

// vipsOp returns the libvips call for op, or false when the op is left to
// the software backend.
func vipsOp(op graph.Op, inExt, outExt geom.Rect) (func(*vips.ImageRef) error, bool) {
	switch o := op.(type) {
	case graph.ResizeOp:
		sx := float64(outExt.W) / float64(inExt.W)
		sy := float64(outExt.H) / float64(inExt.H)
		return func(img *vips.ImageRef) error {
			return img.ResizeWithVScale(sx, sy, vips.KernelLanczos3)
		}, true
	case graph.CropOp:
		r := bufferRect(inExt, outExt)
		return func(img *vips.ImageRef) error {
			return img.ExtractArea(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
		}, true
	case graph.FlipOp:
		return func(img *vips.ImageRef) error {
			if o.Horizontal {
				if err := img.Flip(vips.DirectionHorizontal); err != nil {
					return err
				}
			}
			if o.Vertical {
				return img.Flip(vips.DirectionVertical)
			}
			return nil
		}, true
	case graph.RotateOp:
		q, ok := o.QuarterTurns()
		if !ok || (q%2 == 1 && (outExt.W != inExt.H || outExt.H != inExt.W)) {
			return nil, false
		}
		// libvips angles turn clockwise; q counts counter-clockwise turns.
		angle := [4]vips.Angle{vips.Angle0, vips.Angle270, vips.Angle180, vips.Angle90}[q]
		return func(img *vips.ImageRef) error {
			if angle == vips.Angle0 {
				return nil
			}
			return img.Rotate(angle)
		}, true
	case graph.FilterOp:
		if o.Filter == nil || o.Filter.Name() != filter.NameGaussianBlur {
			return nil, false
		}
		sigma := o.Filter.Params()["radius"]
		if sigma <= 0 {
			return nil, false
		}
		return func(img *vips.ImageRef) error {
			return img.GaussianBlur(sigma)
		}, true
	default:
		return nil, false
	}
}

func toVips(in *image.NRGBA) (*vips.ImageRef, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, in); err != nil {
		return nil, fmt.Errorf("stage buffer for libvips: %w", err)
	}
	img, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load buffer into libvips: %w", err)
	}
	return img, nil
}

func fromVips(img *vips.ImageRef) (*image.NRGBA, error) {
	params := vips.NewPngExportParams()
	params.Compression = 0
	data, _, err := img.ExportPng(params)
	if err != nil {
		return nil, fmt.Errorf("export from libvips: %w", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode libvips output: %w", err)
	}
	return imaging.Clone(decoded), nil
}
