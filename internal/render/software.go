package render

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

// softwareBackend is the deterministic pure Go backend. It runs every op.
type softwareBackend struct{}

func (softwareBackend) name() string { return "software" }
func (softwareBackend) close()       {}

func (b softwareBackend) apply(op graph.Op, in *image.NRGBA, inExt, outExt geom.Rect) (*image.NRGBA, error) {
	switch o := op.(type) {
	case graph.ResizeOp:
		return imaging.Resize(in, outExt.W, outExt.H, imaging.Lanczos), nil
	case graph.CropOp:
		return imaging.Crop(in, bufferRect(inExt, outExt)), nil
	case graph.FlipOp:
		out := in
		if o.Horizontal {
			out = imaging.FlipH(out)
		}
		if o.Vertical {
			out = imaging.FlipV(out)
		}
		return out, nil
	case graph.RotateOp:
		return rotate(o, in, inExt, outExt)
	case graph.WarpOp:
		return warp(o, in, inExt, outExt)
	case graph.FilterOp:
		if o.Filter == nil {
			return nil, fmt.Errorf("filter op without filter")
		}
		return o.Filter.Apply(in), nil
	default:
		return nil, fmt.Errorf("unsupported op %T", op)
	}
}

// bufferRect converts r, given in the same render-space frame as ext, to
// pixel bounds inside ext's buffer. Buffer row 0 is the top edge, which in
// render space is ext.MaxY.
func bufferRect(ext, r geom.Rect) image.Rectangle {
	x := r.X - ext.X
	y := ext.MaxY() - r.MaxY()
	return image.Rect(x, y, x+r.W, y+r.H)
}

// toRender maps buffer coordinates of ext into render space. Its inverse
// maps back.
func toRender(ext geom.Rect) geom.Affine {
	return geom.Affine{1, 0, float64(ext.X), 0, -1, float64(ext.MaxY())}
}

func rotate(o graph.RotateOp, in *image.NRGBA, inExt, outExt geom.Rect) (*image.NRGBA, error) {
	// Right angles are exact pixel permutations when the canvas follows the
	// rotated dimensions.
	if q, ok := o.QuarterTurns(); ok {
		swaps := q%2 == 1
		fits := !swaps || (outExt.W == inExt.H && outExt.H == inExt.W)
		if fits {
			switch q {
			case 0:
				return imaging.Clone(in), nil
			case 1:
				return imaging.Rotate90(in), nil
			case 2:
				return imaging.Rotate180(in), nil
			default:
				return imaging.Rotate270(in), nil
			}
		}
	}

	t := o.Transform(inExt, outExt)
	return affine(in, inExt, outExt, t)
}

// affine resamples in through the render-space transform t.
func affine(in *image.NRGBA, inExt, outExt geom.Rect, t geom.Affine) (*image.NRGBA, error) {
	fromOut, err := toRender(outExt).Invert()
	if err != nil {
		return nil, err
	}
	s2d := fromOut.Mul(t).Mul(toRender(inExt))

	dst := image.NewNRGBA(image.Rect(0, 0, outExt.W, outExt.H))
	draw.CatmullRom.Transform(dst, s2d.Aff3(), in, in.Bounds(), draw.Src, nil)
	return dst, nil
}

// warp resamples in through a homography with bilinear sampling. Output
// pixels whose preimage falls outside the input stay transparent.
func warp(o graph.WarpOp, in *image.NRGBA, inExt, outExt geom.Rect) (*image.NRGBA, error) {
	inv, err := o.Matrix.Invert()
	if err != nil {
		return nil, graph.NewError(graph.KindDegenerateGeometry, o.Name(), err)
	}
	if !inv.IsFinite() {
		return nil, graph.Errorf(graph.KindDegenerateGeometry, o.Name(), "inverse matrix is not finite")
	}

	dst := image.NewNRGBA(image.Rect(0, 0, outExt.W, outExt.H))
	toOut := toRender(outExt)
	inTop := float64(inExt.MaxY())
	inLeft := float64(inExt.X)

	for by := 0; by < outExt.H; by++ {
		for bx := 0; bx < outExt.W; bx++ {
			p := toOut.Apply(geom.Point{X: float64(bx) + 0.5, Y: float64(by) + 0.5})
			q, ok := inv.Apply(p)
			if !ok {
				continue
			}
			u := q.X - inLeft - 0.5
			v := inTop - q.Y - 0.5
			if c, ok := bilinear(in, u, v); ok {
				i := dst.PixOffset(bx, by)
				copy(dst.Pix[i:i+4], c[:])
			}
		}
	}
	return dst, nil
}

// bilinear samples in at pixel-center coordinates (u, v). Samples beyond
// half a pixel outside the buffer are rejected; the border is clamped
// inside that margin.
func bilinear(in *image.NRGBA, u, v float64) ([4]uint8, bool) {
	b := in.Bounds()
	w, h := b.Dx(), b.Dy()
	if u < -0.5 || v < -0.5 || u > float64(w)-0.5 || v > float64(h)-0.5 {
		return [4]uint8{}, false
	}

	x0 := int(math.Floor(u))
	y0 := int(math.Floor(v))
	fx := u - float64(x0)
	fy := v - float64(y0)

	at := func(x, y int) []uint8 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		i := in.PixOffset(b.Min.X+x, b.Min.Y+y)
		return in.Pix[i : i+4]
	}
	p00, p10 := at(x0, y0), at(x0+1, y0)
	p01, p11 := at(x0, y0+1), at(x0+1, y0+1)

	var out [4]uint8
	for k := range 4 {
		top := float64(p00[k])*(1-fx) + float64(p10[k])*fx
		bot := float64(p01[k])*(1-fx) + float64(p11[k])*fx
		out[k] = uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return out, true
}
