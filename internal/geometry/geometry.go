// Package geometry builds resize, crop, rotate and flip nodes.
//
// Every function is a pure map from (node, params) to node. None of them
// touch a render context, allocate pixels or fail: parameters that would
// produce an empty or invalid extent turn the call into a no-op that
// returns the input node.
package geometry

import (
	"math"

	"github.com/dunamismax/pixelgraph/internal/coords"
	"github.com/dunamismax/pixelgraph/internal/geom"
	"github.com/dunamismax/pixelgraph/internal/graph"
)

// ResizeOptions describes a target size. Zero Width or Height means the
// dimension was not given.
type ResizeOptions struct {
	Width               int
	Height              int
	MaintainAspectRatio bool
}

// ScaleFactors computes the per-axis scale for opts against an extent.
// The second result is false when no resize is requested.
//
//   - neither dimension: identity
//   - one dimension: a single uniform scale from that dimension
//   - both, keeping aspect: min(sx, sy) on both axes (fit within)
//   - both, stretching: sx and sy independently
func ScaleFactors(ext geom.Rect, opts ResizeOptions) (sx, sy float64, ok bool) {
	if ext.Empty() {
		return 1, 1, false
	}
	w, h := opts.Width, opts.Height
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	fx := float64(w) / float64(ext.W)
	fy := float64(h) / float64(ext.H)

	switch {
	case w == 0 && h == 0:
		return 1, 1, false
	case h == 0:
		return fx, fx, true
	case w == 0:
		return fy, fy, true
	case opts.MaintainAspectRatio:
		s := math.Min(fx, fy)
		return s, s, true
	default:
		return fx, fy, true
	}
}

// Resize scales n according to opts. See ScaleFactors for the rules.
func Resize(n *graph.Node, opts ResizeOptions) *graph.Node {
	sx, sy, ok := ScaleFactors(n.Extent(), opts)
	if !ok {
		return n
	}
	return scale(n, sx, sy)
}

// Scale resizes n uniformly by factor.
func Scale(n *graph.Node, factor float64) *graph.Node {
	return scale(n, factor, factor)
}

func scale(n *graph.Node, sx, sy float64) *graph.Node {
	if sx == 1 && sy == 1 {
		return n
	}
	return n.Apply(graph.ResizeOp{ScaleX: sx, ScaleY: sy})
}

// Crop keeps the part of n inside rect, given in render-pixel space. An
// empty intersection is not an error: n is returned unchanged. A rect that
// covers the whole extent is also returned unchanged.
func Crop(n *graph.Node, rect geom.Rect) *graph.Node {
	ext := n.Extent()
	in := ext.Intersect(rect)
	if in.Empty() || in == ext {
		return n
	}
	return n.Apply(graph.CropOp{Rect: in})
}

// CropNormalized crops with a rect in detector-normalized space (origin
// top-left, unit square). The rect is flipped into render-pixel space
// against n's extent before cropping.
func CropNormalized(n *graph.Node, rect coords.Rect) *graph.Node {
	return cropFrom(n, rect, coords.DetectorNormalized)
}

// CropDisplay crops with a rect in display-pixel space, the convention of
// CLI arguments.
func CropDisplay(n *graph.Node, rect coords.Rect) *graph.Node {
	return cropFrom(n, rect, coords.DisplayPixel)
}

func cropFrom(n *graph.Node, rect coords.Rect, space coords.Space) *graph.Node {
	ext := n.Extent()
	if ext.Empty() {
		return n
	}
	size := coords.Size{W: float64(ext.W), H: float64(ext.H)}
	r, err := coords.ConvertRect(rect, space, coords.RenderPixel, size)
	if err != nil {
		return n
	}
	return Crop(n, pixelRect(r, ext))
}

// pixelRect snaps a float rect in the extent's local frame to whole pixels
// and moves it into the extent's frame.
func pixelRect(r coords.Rect, ext geom.Rect) geom.Rect {
	b := geom.Bounds{MinX: r.X, MinY: r.Y, MaxX: r.X + r.W, MaxY: r.Y + r.H}
	out := geom.Rect{
		X: int(math.Round(b.MinX)),
		Y: int(math.Round(b.MinY)),
		W: int(math.Round(b.MaxX)) - int(math.Round(b.MinX)),
		H: int(math.Round(b.MaxY)) - int(math.Round(b.MinY)),
	}
	out.X += ext.X
	out.Y += ext.Y
	return out
}

// RotateAroundCenter rotates n about its own center. degrees follows the
// user-facing convention: positive turns clockwise on screen. With
// expandCanvas the extent grows to the bounding box of the rotated corners
// and is moved to the origin; without it the original extent is kept and
// the corners are clipped.
func RotateAroundCenter(n *graph.Node, degrees float64, expandCanvas bool) *graph.Node {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return n
	}
	// The rotation primitive is counter-clockwise-positive in the y-up
	// render frame, so a clockwise user angle is negated here.
	primitive := -degrees * math.Pi / 180
	// Two expanding rotations in a row collapse into one on the grandparent
	// so the canvas is the bounding box of the net rotation.
	if prev, ok := n.Op().(graph.RotateOp); ok && prev.Expand && expandCanvas && n.Parent() != nil {
		net := math.Remainder(prev.Radians+primitive, 2*math.Pi)
		if math.Abs(net) < 1e-12 {
			return n.Parent()
		}
		return n.Parent().Apply(graph.RotateOp{Radians: net, Expand: true})
	}
	return n.Apply(graph.RotateOp{Radians: primitive, Expand: expandCanvas})
}

// Flip mirrors n about its own vertical axis (horizontal) and/or horizontal
// axis (vertical). With both flags false n is returned unchanged.
func Flip(n *graph.Node, horizontal, vertical bool) *graph.Node {
	if !horizontal && !vertical {
		return n
	}
	return n.Apply(graph.FlipOp{Horizontal: horizontal, Vertical: vertical})
}
