// Package graph defines the immutable, lazily evaluated filter graph.
//
// A Node describes one step: an upstream node, the operation applied to it
// and the extent the operation produces. Nothing is computed when a node is
// built besides the extent; pixels are produced by render.Context.
//
// # Extents
//
// Extents are integer rectangles in render-pixel space (origin bottom-left).
// A leaf covers (0,0)-(w,h). Each Op states how it transforms its input
// extent; when the result would be empty the op is dropped and Apply
// returns the receiver unchanged.
//
// # Sharing
//
// Nodes are never mutated after construction and may be rendered from many
// goroutines at once. The graph is a linear chain today; nothing in Node
// prevents a future op from taking several inputs.
package graph

import (
	"image"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelgraph/internal/geom"
)

var nextID atomic.Uint64

type Node struct {
	id     uint64
	parent *Node
	op     Op
	extent geom.Rect
	source *image.NRGBA
}

// Load wraps a decoded buffer as a leaf. The pixels are copied so later
// changes to img do not leak into renders.
func Load(img image.Image) *Node {
	src := imaging.Clone(img)
	b := src.Bounds()
	return &Node{
		id:     nextID.Add(1),
		source: src,
		extent: geom.NewRect(0, 0, b.Dx(), b.Dy()),
	}
}

// Apply returns a node running op on n. When op yields an empty extent the
// op is a no-op and n itself is returned.
func (n *Node) Apply(op Op) *Node {
	if op == nil {
		return n
	}
	ext, ok := op.Extent(n.extent)
	if !ok || ext.Empty() {
		return n
	}
	return &Node{
		id:     nextID.Add(1),
		parent: n,
		op:     op,
		extent: ext,
	}
}

// ID is unique per process and stable for the node's lifetime.
func (n *Node) ID() uint64 { return n.id }

func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Op() Op            { return n.op }
func (n *Node) Extent() geom.Rect { return n.extent }
func (n *Node) IsLeaf() bool      { return n.parent == nil }

// Source is the leaf buffer. It is nil for non-leaf nodes and must be
// treated as read-only.
func (n *Node) Source() *image.NRGBA { return n.source }

// Chain lists the nodes from the leaf up to n.
func (n *Node) Chain() []*Node {
	var out []*Node
	for cur := n; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Depth is the number of ops between the leaf and n.
func (n *Node) Depth() int {
	d := 0
	for cur := n; cur.parent != nil; cur = cur.parent {
		d++
	}
	return d
}

// Leaf walks up to the chain's leaf.
func (n *Node) Leaf() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}
