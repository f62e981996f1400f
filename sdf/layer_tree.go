package sdf

// LayerTree mirrors the sublayer nesting of a layer stack. Each node carries
// the cumulative offset from the stack root to its layer.
type LayerTree struct {
	layer    *Layer
	offset   LayerOffset
	children []*LayerTree
}

// NewLayerTree returns a node for layer at its cumulative offset.
func NewLayerTree(layer *Layer, offset LayerOffset, children ...*LayerTree) *LayerTree {
	return &LayerTree{layer: layer, offset: offset, children: children}
}

func (t *LayerTree) Layer() *Layer {
	if t == nil {
		return nil
	}
	return t.layer
}

func (t *LayerTree) Offset() LayerOffset {
	if t == nil {
		return IdentityOffset()
	}
	return t.offset
}

// Children returns the sublayer nodes, strongest first.
func (t *LayerTree) Children() []*LayerTree {
	if t == nil {
		return nil
	}
	return append([]*LayerTree(nil), t.children...)
}

// Walk visits nodes depth-first in pre-order. Returning false from fn skips
// the node's children.
func (t *LayerTree) Walk(fn func(depth int, node *LayerTree) bool) {
	if t == nil || fn == nil {
		return
	}
	t.walk(0, fn)
}

func (t *LayerTree) walk(depth int, fn func(int, *LayerTree) bool) {
	if !fn(depth, t) {
		return
	}
	for _, child := range t.children {
		child.walk(depth+1, fn)
	}
}

// Layers returns the layers of the tree in pre-order.
func (t *LayerTree) Layers() []*Layer {
	var out []*Layer
	t.Walk(func(_ int, node *LayerTree) bool {
		out = append(out, node.layer)
		return true
	})
	return out
}
