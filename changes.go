package layerstack

import (
	"sync"

	"github.com/goliatone/go-layerstack/sdf"
)

// ChangeKind is a bit set describing what changed about a layer or about
// the environment layer stacks are computed in.
type ChangeKind uint16

const (
	ChangeSublayers ChangeKind = 1 << iota
	ChangeSublayerOffsets
	ChangeRelocates
	ChangeTimeCodesPerSecond
	ChangeExpressionVariables
	ChangeMutedLayers
	ChangeAssetResolution
	ChangeSignificant
)

var changeKindNames = []struct {
	kind ChangeKind
	name string
}{
	{ChangeSublayers, "sublayers"},
	{ChangeSublayerOffsets, "sublayer_offsets"},
	{ChangeRelocates, "relocates"},
	{ChangeTimeCodesPerSecond, "time_codes_per_second"},
	{ChangeExpressionVariables, "expression_variables"},
	{ChangeMutedLayers, "muted_layers"},
	{ChangeAssetResolution, "asset_resolution"},
	{ChangeSignificant, "significant"},
}

// Has reports whether any bit of other is set in k.
func (k ChangeKind) Has(other ChangeKind) bool { return k&other != 0 }

// Names lists the set kinds in declaration order.
func (k ChangeKind) Names() []string {
	var out []string
	for _, entry := range changeKindNames {
		if k.Has(entry.kind) {
			out = append(out, entry.name)
		}
	}
	return out
}

// ChangeSet is the pending change description passed to Apply. Layer
// changes are keyed by handle; global changes (muted layers, asset
// resolution) apply to every stack.
type ChangeSet struct {
	mu     sync.RWMutex
	layers map[*sdf.Layer]ChangeKind
	order  []*sdf.Layer
	global ChangeKind
}

// NewChangeSet returns an empty set ready for Add and AddGlobal.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{layers: map[*sdf.Layer]ChangeKind{}}
}

// Add records kinds for layer and returns c for chaining.
func (c *ChangeSet) Add(layer *sdf.Layer, kinds ChangeKind) *ChangeSet {
	if layer == nil || kinds == 0 {
		return c
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.layers[layer]; !ok {
		c.order = append(c.order, layer)
	}
	c.layers[layer] |= kinds
	return c
}

// AddGlobal records environment-wide kinds.
func (c *ChangeSet) AddGlobal(kinds ChangeKind) *ChangeSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global |= kinds
	return c
}

// Merge folds other into c.
func (c *ChangeSet) Merge(other *ChangeSet) *ChangeSet {
	if other == nil || other == c {
		return c
	}
	other.mu.RLock()
	layers := append([]*sdf.Layer(nil), other.order...)
	kinds := make([]ChangeKind, len(layers))
	for i, layer := range layers {
		kinds[i] = other.layers[layer]
	}
	global := other.global
	other.mu.RUnlock()
	for i, layer := range layers {
		c.Add(layer, kinds[i])
	}
	return c.AddGlobal(global)
}

// For returns the kinds recorded against layer.
func (c *ChangeSet) For(layer *sdf.Layer) ChangeKind {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers[layer]
}

// Global returns the kinds that affect every stack, such as muting or
// asset resolution.
func (c *ChangeSet) Global() ChangeKind {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global
}

// Layers returns the changed layers in the order they were first added.
func (c *ChangeSet) Layers() []*sdf.Layer {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*sdf.Layer(nil), c.order...)
}

// Kinds is the union of every recorded kind.
func (c *ChangeSet) Kinds() ChangeKind {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := c.global
	for _, k := range c.layers {
		kinds |= k
	}
	return kinds
}

// IsEmpty reports whether the set records no change at all. A nil set is
// empty.
func (c *ChangeSet) IsEmpty() bool { return c.Kinds() == 0 }
