package layerstack

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-layerstack/layering"
	"github.com/goliatone/go-layerstack/sdf"
)

// State is the computation state of a LayerStack.
type State int32

const (
	StateUninitialized State = iota
	StateComputing
	StateValid
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateComputing:
		return "computing"
	case StateValid:
		return "valid"
	default:
		return "unknown"
	}
}

// snapshot is the immutable result of one computation. Readers load it
// atomically; Apply replaces it whole.
type snapshot struct {
	layers            []*sdf.Layer
	mapFunctions      []MapFunction
	sessionLayerCount int
	layerTree         *sdf.LayerTree
	sessionLayerTree  *sdf.LayerTree
	layerTCPS         map[*sdf.Layer]float64

	timeCodesPerSecond             float64
	mutedAssetPaths                []string
	sourceInfo                     []sublayerSourceInfo
	expressionVariables            map[string]any
	expressionVariableDependencies []string

	relocations relocations
	errors      []error
	warnings    []error
}

var emptySnapshot = &snapshot{}

func (s *snapshot) indexOf(layer *sdf.Layer) int {
	for i, l := range s.layers {
		if l == layer {
			return i
		}
	}
	return -1
}

// withRelocations returns a copy sharing the layer references of s.
func (s *snapshot) withRelocations(r relocations) *snapshot {
	next := *s
	next.relocations = r
	return &next
}

// release drops the snapshot's layer references, first handing one
// reference per distinct layer to lifeboat when given.
func (s *snapshot) release(lifeboat *Lifeboat) {
	if lifeboat != nil {
		seen := make(map[*sdf.Layer]struct{}, len(s.layers))
		for _, layer := range s.layers {
			if _, ok := seen[layer]; ok {
				continue
			}
			seen[layer] = struct{}{}
			lifeboat.Retain(layer)
		}
	}
	for _, layer := range s.layers {
		layer.Release()
	}
}

// LayerStack is the composed, strong-to-weak stack of layers for one
// Identifier together with its derived offset, relocation and expression
// variable data. Stacks are created by a Registry and shared by reference
// count. Reads are safe from any goroutine; Apply is serialised per stack.
type LayerStack struct {
	id       Identifier
	registry *Registry
	composer *composer

	applyMu sync.Mutex
	snap    atomic.Pointer[snapshot]
	state   atomic.Int32

	// refs and expired are guarded by registry.mu.
	refs    int64
	expired atomic.Bool

	subMu         sync.Mutex
	subscriptions map[sdf.Path]*Variable
}

func newLayerStack(registry *Registry, id Identifier) *LayerStack {
	return &LayerStack{
		id:            id,
		registry:      registry,
		composer:      registry.composer,
		subscriptions: map[sdf.Path]*Variable{},
	}
}

func (s *LayerStack) compute(ctx context.Context) {
	s.state.Store(int32(StateComputing))
	s.snap.Store(s.composer.build(ctx, s.id))
	s.state.Store(int32(StateValid))
}

func (s *LayerStack) current() *snapshot {
	if snap := s.snap.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// Identifier returns the key the stack was created for.
func (s *LayerStack) Identifier() Identifier { return s.id }

// State reports the computation state. Released stacks are uninitialized.
func (s *LayerStack) State() State { return State(s.state.Load()) }

// IsUsd reports whether the stack was computed in USD mode.
func (s *LayerStack) IsUsd() bool { return s.composer.cfg.USDMode }

// Layers returns every layer strong to weak. Session layers come first.
func (s *LayerStack) Layers() []*sdf.Layer {
	return append([]*sdf.Layer(nil), s.current().layers...)
}

// SessionLayers returns the session layer and its sublayers, strong to weak.
func (s *LayerStack) SessionLayers() []*sdf.Layer {
	snap := s.current()
	return append([]*sdf.Layer(nil), snap.layers[:snap.sessionLayerCount]...)
}

// MapFunctions returns one map function per entry of Layers.
func (s *LayerStack) MapFunctions() []MapFunction {
	return append([]MapFunction(nil), s.current().mapFunctions...)
}

// LayerTree returns the sublayer tree of the root layer.
func (s *LayerStack) LayerTree() *sdf.LayerTree { return s.current().layerTree }

// SessionLayerTree returns nil when the stack has no session layer.
func (s *LayerStack) SessionLayerTree() *sdf.LayerTree { return s.current().sessionLayerTree }

// LayerOffsetForLayer returns the cumulative offset of the first occurrence
// of layer, or nil when it is the identity or layer is not in the stack.
func (s *LayerStack) LayerOffsetForLayer(layer *sdf.Layer) *sdf.LayerOffset {
	snap := s.current()
	return offsetAt(snap, snap.indexOf(layer))
}

// LayerOffsetForIndex is LayerOffsetForLayer by position in Layers.
func (s *LayerStack) LayerOffsetForIndex(i int) *sdf.LayerOffset {
	return offsetAt(s.current(), i)
}

func offsetAt(snap *snapshot, i int) *sdf.LayerOffset {
	if i < 0 || i >= len(snap.mapFunctions) {
		return nil
	}
	offset := snap.mapFunctions[i].TimeOffset()
	if offset.IsIdentity() {
		return nil
	}
	return &offset
}

// HasLayer reports whether layer is one of the stack's layer handles.
func (s *LayerStack) HasLayer(layer *sdf.Layer) bool {
	return layer != nil && s.current().indexOf(layer) >= 0
}

// TimeCodesPerSecond returns the composed rate: the session layer's when it
// authors one, otherwise the root layer's.
func (s *LayerStack) TimeCodesPerSecond() float64 { return s.current().timeCodesPerSecond }

// MutedLayers returns the resolved paths of sublayers skipped as muted.
func (s *LayerStack) MutedLayers() []string {
	return append([]string(nil), s.current().mutedAssetPaths...)
}

// LocalErrors returns the composition errors of the last computation, nil
// when there were none.
func (s *LayerStack) LocalErrors() []error {
	snap := s.current()
	if len(snap.errors)+len(snap.relocations.errors) == 0 {
		return nil
	}
	out := make([]error, 0, len(snap.errors)+len(snap.relocations.errors))
	out = append(out, snap.errors...)
	return append(out, snap.relocations.errors...)
}

// Warnings returns permitted negative offset scales and ignored weaker
// relocation opinions.
func (s *LayerStack) Warnings() []error {
	snap := s.current()
	if len(snap.warnings)+len(snap.relocations.warnings) == 0 {
		return nil
	}
	out := make([]error, 0, len(snap.warnings)+len(snap.relocations.warnings))
	out = append(out, snap.warnings...)
	return append(out, snap.relocations.warnings...)
}

// ExpressionVariables returns the session-over-root composed variables.
func (s *LayerStack) ExpressionVariables() map[string]any {
	return layering.Clone(s.current().expressionVariables)
}

// ExpressionVariableDependencies returns the sorted names of the variables
// consulted while computing sublayer paths.
func (s *LayerStack) ExpressionVariableDependencies() []string {
	return append([]string(nil), s.current().expressionVariableDependencies...)
}

// RelocatesSourceToTarget returns the combined relocations, with every
// source already mapped through its ancestors' relocations. The map is a
// copy.
func (s *LayerStack) RelocatesSourceToTarget() map[sdf.Path]sdf.Path {
	return layering.Clone(s.current().relocations.sourceToTarget)
}

// RelocatesTargetToSource is the inverse of RelocatesSourceToTarget.
func (s *LayerStack) RelocatesTargetToSource() map[sdf.Path]sdf.Path {
	return layering.Clone(s.current().relocations.targetToSource)
}

// IncrementalRelocatesSourceToTarget returns the relocations as authored,
// after validation and strongest-opinion selection.
func (s *LayerStack) IncrementalRelocatesSourceToTarget() map[sdf.Path]sdf.Path {
	return layering.Clone(s.current().relocations.incrementalSourceToTarget)
}

// IncrementalRelocatesTargetToSource is the inverse of
// IncrementalRelocatesSourceToTarget.
func (s *LayerStack) IncrementalRelocatesTargetToSource() map[sdf.Path]sdf.Path {
	return layering.Clone(s.current().relocations.incrementalTargetToSource)
}

// PathsToPrimsWithRelocates lists the prims that author relocations. For
// layer-level statements the source path stands in for the prim.
func (s *LayerStack) PathsToPrimsWithRelocates() []sdf.Path {
	return append([]sdf.Path(nil), s.current().relocations.primPaths...)
}

// HasRelocates reports whether any valid relocation was found.
func (s *LayerStack) HasRelocates() bool {
	return !s.current().relocations.isEmpty()
}

// ExpressionForRelocatesAtPath returns the variable tracking the
// relocations whose target lies at or below path. Repeated calls for the
// same path return the same variable. In USD mode a stack without
// relocations returns an untracked identity.
func (s *LayerStack) ExpressionForRelocatesAtPath(path sdf.Path) *Variable {
	snap := s.current()
	if s.IsUsd() && snap.relocations.isEmpty() {
		return newVariable(path, IdentityMapFunction(), false)
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if v, ok := s.subscriptions[path]; ok {
		return v
	}
	v := newVariable(path, relocatesMapFunction(snap, path), true)
	s.subscriptions[path] = v
	return v
}

func relocatesMapFunction(snap *snapshot, path sdf.Path) MapFunction {
	pathMap := map[sdf.Path]sdf.Path{sdf.AbsoluteRootPath: sdf.AbsoluteRootPath}
	for source, target := range snap.relocations.sourceToTarget {
		if target.HasPrefix(path) {
			pathMap[source] = target
		}
	}
	return NewMapFunction(pathMap, sdf.IdentityOffset())
}

func (s *LayerStack) updateRelocatesVariables() {
	snap := s.current()
	s.subMu.Lock()
	variables := make([]*Variable, 0, len(s.subscriptions))
	for _, v := range s.subscriptions {
		variables = append(variables, v)
	}
	s.subMu.Unlock()
	for _, v := range variables {
		v.set(relocatesMapFunction(snap, v.Path()))
	}
}

// Retain adds a holder. It reports false when the stack was already
// released.
func (s *LayerStack) Retain() bool {
	return s.registry.retain(s)
}

// Release drops a holder. The last release removes the stack from its
// registry and releases its layers.
func (s *LayerStack) Release() {
	s.registry.release(s)
}

// RefCount returns the number of holders.
func (s *LayerStack) RefCount() int64 {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	return s.refs
}

// Expired reports whether the stack has been released by every holder.
func (s *LayerStack) Expired() bool { return s.expired.Load() }

// destroy releases the stack's layers. Called once, after expiry.
func (s *LayerStack) destroy() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if snap := s.snap.Swap(nil); snap != nil {
		snap.release(nil)
	}
	s.state.Store(int32(StateUninitialized))
}
