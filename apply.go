package layerstack

import (
	"context"
	"reflect"

	"github.com/goliatone/go-layerstack/sdf"
)

// ApplyResult reports which derived data Apply discarded and recomputed.
type ApplyResult struct {
	Layers              bool
	Relocates           bool
	TimeCodesPerSecond  bool
	ExpressionVariables bool
}

// Any reports whether Apply recomputed anything.
func (r ApplyResult) Any() bool {
	return r.Layers || r.Relocates || r.TimeCodesPerSecond || r.ExpressionVariables
}

// Names lists the recomputed parts for logging and activity events.
func (r ApplyResult) Names() []string {
	var out []string
	if r.Layers {
		out = append(out, "layers")
	}
	if r.Relocates {
		out = append(out, "relocates")
	}
	if r.TimeCodesPerSecond {
		out = append(out, "time_codes_per_second")
	}
	if r.ExpressionVariables {
		out = append(out, "expression_variables")
	}
	return out
}

const layerListChanges = ChangeSignificant | ChangeSublayers | ChangeSublayerOffsets

// Apply updates the stack for changes. Changes to layers outside the stack
// are ignored. Layer list changes recompute everything; relocation changes
// recompute only the relocation tables. Layers that the old computation
// held are retained in lifeboat before being released, so a layer dropped
// from the stack survives until lifeboat is released. lifeboat may be nil.
func (s *LayerStack) Apply(ctx context.Context, changes *ChangeSet, lifeboat *Lifeboat) ApplyResult {
	var res ApplyResult
	if changes.IsEmpty() {
		return res
	}
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	old := s.snap.Load()
	if old == nil || s.Expired() {
		return res
	}

	rebuild, relocates := false, false
	var vars map[string]any
	root, session := s.id.RootLayer, s.id.SessionLayer
	for _, layer := range changes.Layers() {
		if old.indexOf(layer) < 0 {
			continue
		}
		kinds := changes.For(layer)
		if kinds.Has(layerListChanges) {
			rebuild = true
		}
		if kinds.Has(ChangeRelocates) {
			relocates = true
		}
		if kinds.Has(ChangeTimeCodesPerSecond) && s.needsRecomputeForTimeCodesPerSecond(old, layer) {
			rebuild = true
			res.TimeCodesPerSecond = !sdf.IsClose(composedTimeCodesPerSecond(root, session), old.timeCodesPerSecond)
		}
		if kinds.Has(ChangeExpressionVariables) && (layer == root || layer == session) {
			next := composedExpressionVariables(root, session)
			switch {
			case dependenciesChanged(old, next):
				rebuild = true
				res.ExpressionVariables = true
			case !reflect.DeepEqual(next, old.expressionVariables):
				vars = next
				res.ExpressionVariables = true
			}
		}
	}
	global := changes.Global()
	if global.Has(ChangeSignificant) {
		rebuild = true
	}
	if !rebuild && global.Has(ChangeMutedLayers) && s.mutedSetChanged(old) {
		rebuild = true
	}
	if !rebuild && global.Has(ChangeAssetResolution) && s.needsRecomputeForAssetPathChange(ctx, old) {
		rebuild = true
	}

	switch {
	case rebuild:
		s.state.Store(int32(StateComputing))
		next := s.composer.build(ctx, s.id)
		s.snap.Store(next)
		old.release(lifeboat)
		res.Layers, res.Relocates = true, true
	case relocates || vars != nil:
		s.state.Store(int32(StateComputing))
		next := old
		if relocates {
			next = next.withRelocations(computeRelocations(old.layers))
			res.Relocates = true
		}
		if vars != nil {
			copied := *next
			copied.expressionVariables = vars
			next = &copied
		}
		s.snap.Store(next)
	default:
		return res
	}
	s.state.Store(int32(StateValid))
	if res.Relocates {
		s.updateRelocatesVariables()
	}
	s.composer.log.V(1).Info("layer stack applied changes", "stack", s.id.String(), "recomputed", res.Names())
	return res
}

func dependenciesChanged(old *snapshot, next map[string]any) bool {
	for _, name := range old.expressionVariableDependencies {
		before, hadBefore := old.expressionVariables[name]
		after, hasAfter := next[name]
		if hadBefore != hasAfter || !reflect.DeepEqual(before, after) {
			return true
		}
	}
	return false
}

// mutedSetChanged reports whether the registry's muted set now disagrees
// with the mute decisions recorded for any sublayer.
func (s *LayerStack) mutedSetChanged(old *snapshot) bool {
	for _, info := range old.sourceInfo {
		muted := s.composer.muted.IsMuted(info.mutedCandidates()...)
		if muted != info.Muted {
			return true
		}
	}
	return false
}

// NeedsRecomputeForAssetPathChange re-resolves every recorded sublayer path
// with the current resolver and reports whether any result differs.
func (s *LayerStack) NeedsRecomputeForAssetPathChange(ctx context.Context) bool {
	return s.needsRecomputeForAssetPathChange(ctx, s.current())
}

func (s *LayerStack) needsRecomputeForAssetPathChange(ctx context.Context, snap *snapshot) bool {
	for _, info := range snap.sourceInfo {
		r, _ := s.composer.resolveSublayer(ctx, info.Layer, info.AuthoredPath, snap.expressionVariables, s.id.Context)
		if r.resolved != info.ComputedPath {
			return true
		}
	}
	return false
}

// NeedsRecomputeForTimeCodesPerSecond reports whether a time codes per
// second change on changedLayer alters the composed value or any offset.
func (s *LayerStack) NeedsRecomputeForTimeCodesPerSecond(changedLayer *sdf.Layer) bool {
	return s.needsRecomputeForTimeCodesPerSecond(s.current(), changedLayer)
}

func (s *LayerStack) needsRecomputeForTimeCodesPerSecond(snap *snapshot, layer *sdf.Layer) bool {
	recorded, ok := snap.layerTCPS[layer]
	if !ok {
		return false
	}
	if !sdf.IsClose(recorded, layer.TimeCodesPerSecond()) {
		return true
	}
	if layer == s.id.RootLayer || layer == s.id.SessionLayer {
		return !sdf.IsClose(composedTimeCodesPerSecond(s.id.RootLayer, s.id.SessionLayer), snap.timeCodesPerSecond)
	}
	return false
}
