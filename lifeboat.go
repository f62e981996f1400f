package layerstack

import (
	"sync"

	"github.com/goliatone/go-layerstack/sdf"
)

// Lifeboat holds strong references to layers and layer stacks displaced by
// Apply so the caller decides when they are destroyed. The zero value is
// ready to use.
type Lifeboat struct {
	mu     sync.Mutex
	layers []*sdf.Layer
	stacks []*LayerStack
}

// NewLifeboat returns an empty lifeboat. Pass it to Apply and Release it
// once the caller is done with the displaced objects.
func NewLifeboat() *Lifeboat {
	return &Lifeboat{}
}

// Retain adds a reference to layer held until Release.
func (b *Lifeboat) Retain(layer *sdf.Layer) {
	if b == nil || layer == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.layers = append(b.layers, layer.Retain())
}

// RetainLayerStack adds a reference to stack held until Release. A stack
// that was already released is ignored.
func (b *Lifeboat) RetainLayerStack(stack *LayerStack) {
	if b == nil || stack == nil || !stack.Retain() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stacks = append(b.stacks, stack)
}

// Layers returns the retained layers.
func (b *Lifeboat) Layers() []*sdf.Layer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*sdf.Layer(nil), b.layers...)
}

// LayerStacks returns the retained stacks.
func (b *Lifeboat) LayerStacks() []*LayerStack {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*LayerStack(nil), b.stacks...)
}

func (b *Lifeboat) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.layers) == 0 && len(b.stacks) == 0
}

// Release drops every reference the lifeboat holds. Objects with no other
// holder are destroyed.
func (b *Lifeboat) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	layers, stacks := b.layers, b.stacks
	b.layers, b.stacks = nil, nil
	b.mu.Unlock()
	for _, stack := range stacks {
		stack.Release()
	}
	for _, layer := range layers {
		layer.Release()
	}
}
