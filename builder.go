package layerstack

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/goliatone/go-layerstack/ar"
	"github.com/goliatone/go-layerstack/layering"
	"github.com/goliatone/go-layerstack/sdf"
)

// composer holds the collaborators every layer stack computation uses.
type composer struct {
	cfg         Config
	resolver    ar.Resolver
	cache       *sdf.LayerCache
	muted       *MutedLayers
	expressions expressionEvaluator
	log         logr.Logger
}

// sublayerSourceInfo records how one authored sublayer path was computed so
// later asset resolution changes can be detected.
type sublayerSourceInfo struct {
	Layer         *sdf.Layer
	AuthoredPath  string
	EvaluatedPath string
	AnchoredPath  string
	ComputedPath  string
	Muted         bool
}

func (info sublayerSourceInfo) mutedCandidates() []string {
	return []string{info.ComputedPath, info.AnchoredPath, info.EvaluatedPath, info.AuthoredPath}
}

// resolvedSublayer is the outcome of resolving one authored sublayer path.
type resolvedSublayer struct {
	evaluated string
	assetPath string
	resolved  string
	args      sdf.FileFormatArguments
	deps      []string
}

// resolveSublayer evaluates, anchors and resolves authored as written in
// parent. An expression that evaluates to "" yields an empty resolved path
// and no error.
func (c *composer) resolveSublayer(ctx context.Context, parent *sdf.Layer, authored string, vars map[string]any, rc ar.Context) (resolvedSublayer, error) {
	var out resolvedSublayer
	evaluated, deps, err := c.expressions.evaluateAssetPath(authored, vars, parent.Identifier())
	out.deps = deps
	if err != nil {
		return out, &CompositionError{Kind: KindExpression, Layer: parent.Identifier(), AuthoredPath: authored, Err: err}
	}
	out.evaluated = evaluated
	if evaluated == "" {
		return out, nil
	}
	assetPath, embedded := sdf.SplitIdentifier(evaluated)
	out.assetPath = c.resolver.CreateIdentifier(ctx, assetPath, parent.AssetPath(), rc)
	out.args = parent.FileFormatArguments().Merge(embedded)
	resolved, err := c.resolver.Resolve(ctx, out.assetPath, rc)
	if err != nil {
		return out, &CompositionError{Kind: KindAssetResolution, Layer: parent.Identifier(), AuthoredPath: authored, Err: err}
	}
	out.resolved = resolved
	return out, nil
}

// composedTimeCodesPerSecond is the session layer's authored value when
// present, else the root layer's.
func composedTimeCodesPerSecond(root, session *sdf.Layer) float64 {
	if session != nil && session.HasTimeCodesPerSecond() {
		return session.TimeCodesPerSecond()
	}
	return root.TimeCodesPerSecond()
}

func composedExpressionVariables(root, session *sdf.Layer) map[string]any {
	var sessionVars map[string]any
	if session != nil {
		sessionVars = session.ExpressionVariables()
	}
	return layering.ComposeFirstWins(sessionVars, root.ExpressionVariables())
}

// build computes a fresh snapshot for id. Every layer in the result is
// retained once per occurrence.
func (c *composer) build(ctx context.Context, id Identifier) *snapshot {
	b := &builder{
		composer:   c,
		ctx:        ctx,
		rc:         id.Context,
		ancestors:  map[*sdf.Layer]struct{}{},
		deps:       map[string]struct{}{},
		mutedPaths: map[string]struct{}{},
		out: &snapshot{
			layerTCPS: map[*sdf.Layer]float64{},
		},
	}
	s := b.out
	root, session := id.RootLayer, id.SessionLayer
	s.timeCodesPerSecond = composedTimeCodesPerSecond(root, session)
	s.expressionVariables = composedExpressionVariables(root, session)

	if session != nil {
		s.sessionLayerTree = b.visit(session.Retain(), sdf.IdentityOffset(), 0)
		s.sessionLayerCount = len(s.layers)
	}
	rootOffset := sdf.IdentityOffset()
	if rootTCPS := root.TimeCodesPerSecond(); !sdf.IsClose(rootTCPS, s.timeCodesPerSecond) && rootTCPS > 0 {
		rootOffset.Scale = s.timeCodesPerSecond / rootTCPS
	}
	s.layerTree = b.visit(root.Retain(), rootOffset, 0)

	s.expressionVariableDependencies = sortedNames(b.deps)
	s.mutedAssetPaths = sortedNames(b.mutedPaths)
	s.relocations = computeRelocations(s.layers)
	for _, err := range s.relocations.errors {
		c.log.Error(err, "relocation rejected", "stack", id.String())
	}
	c.log.V(1).Info("layer stack computed", "stack", id.String(), "layers", len(s.layers),
		"errors", len(s.errors)+len(s.relocations.errors))
	return s
}

// builder carries the state of one computation: the ancestors of the layer
// being visited, and the dependencies and muted paths seen so far.
type builder struct {
	*composer
	ctx        context.Context
	rc         ar.Context
	ancestors  map[*sdf.Layer]struct{}
	deps       map[string]struct{}
	mutedPaths map[string]struct{}
	out        *snapshot
}

// visit appends layer (already retained) and its sublayers depth-first in
// pre-order and returns the subtree rooted at layer. Recursion is bounded by
// the ancestors set, since a layer is never entered twice on one path, and by
// Config.MaxSublayerDepth.
func (b *builder) visit(layer *sdf.Layer, offset sdf.LayerOffset, depth int) *sdf.LayerTree {
	s := b.out
	s.layers = append(s.layers, layer)
	s.mapFunctions = append(s.mapFunctions, newOffsetMapFunction(offset))
	s.layerTCPS[layer] = layer.TimeCodesPerSecond()

	b.ancestors[layer] = struct{}{}
	defer delete(b.ancestors, layer)

	paths := layer.SubLayerPaths()
	offsets := layer.SubLayerOffsets()
	if len(paths) != len(offsets) {
		b.recordError(&CompositionError{
			Kind:  KindListLengthMismatch,
			Layer: layer.Identifier(),
			Err:   fmt.Errorf("%d sublayers but %d offsets", len(paths), len(offsets)),
		})
		n := min(len(paths), len(offsets))
		paths, offsets = paths[:n], offsets[:n]
	}

	layerTCPS := layer.TimeCodesPerSecond()
	if len(paths) > 0 && depth >= b.cfg.maxSublayerDepth() {
		b.recordError(&CompositionError{
			Kind:  KindSublayerDepth,
			Layer: layer.Identifier(),
			Err:   fmt.Errorf("%d sublayers below depth %d not visited", len(paths), b.cfg.maxSublayerDepth()),
		})
		paths = nil
	}
	var children []*sdf.LayerTree
	for i, authored := range paths {
		child, childOffset, ok := b.openSublayer(layer, authored, offsets[i], layerTCPS, offset)
		if !ok {
			continue
		}
		children = append(children, b.visit(child, childOffset, depth+1))
	}
	return sdf.NewLayerTree(layer, offset, children...)
}

// openSublayer resolves and opens one sublayer of parent. It reports false
// when the sublayer is skipped; any error has been recorded by then.
func (b *builder) openSublayer(parent *sdf.Layer, authored string, authoredOffset sdf.LayerOffset, parentTCPS float64, parentOffset sdf.LayerOffset) (*sdf.Layer, sdf.LayerOffset, bool) {
	info := sublayerSourceInfo{Layer: parent, AuthoredPath: authored}
	r, err := b.resolveSublayer(b.ctx, parent, authored, b.out.expressionVariables, b.rc)
	for _, name := range r.deps {
		b.deps[name] = struct{}{}
	}
	info.EvaluatedPath, info.AnchoredPath, info.ComputedPath = r.evaluated, r.assetPath, r.resolved
	info.Muted = b.muted.IsMuted(info.mutedCandidates()...)
	b.out.sourceInfo = append(b.out.sourceInfo, info)
	if info.Muted {
		// Muted sublayers are skipped before opening, even when unresolvable.
		b.mutedPaths[firstNonEmpty(r.resolved, r.assetPath, authored)] = struct{}{}
		b.log.V(1).Info("sublayer muted", "layer", parent.Identifier(), "sublayer", authored)
		return nil, sdf.LayerOffset{}, false
	}
	if err != nil {
		b.recordError(err)
		return nil, sdf.LayerOffset{}, false
	}
	if r.resolved == "" {
		return nil, sdf.LayerOffset{}, false
	}

	child, err := b.cache.FindOrOpen(b.ctx, sdf.CreateIdentifier(r.resolved, r.args), nil)
	if err != nil {
		b.recordError(&CompositionError{
			Kind:         KindAssetResolution,
			Layer:        parent.Identifier(),
			AuthoredPath: authored,
			ResolvedPath: r.resolved,
			Err:          err,
		})
		return nil, sdf.LayerOffset{}, false
	}
	if _, cycle := b.ancestors[child]; cycle {
		b.recordError(&CompositionError{
			Kind:         KindSublayerCycle,
			Layer:        parent.Identifier(),
			AuthoredPath: authored,
			ResolvedPath: r.resolved,
			Err:          fmt.Errorf("%s is already included above %s", child.Identifier(), parent.Identifier()),
		})
		child.Release()
		return nil, sdf.LayerOffset{}, false
	}

	adjusted := authoredOffset
	if !adjusted.IsValid() {
		// The sublayer is kept with an identity offset.
		b.recordError(&CompositionError{
			Kind:         KindInvalidSublayerOffset,
			Layer:        parent.Identifier(),
			AuthoredPath: authored,
			ResolvedPath: r.resolved,
			Err:          fmt.Errorf("offset %s is not finite", adjusted),
		})
		adjusted = sdf.IdentityOffset()
	}
	if childTCPS := child.TimeCodesPerSecond(); !sdf.IsClose(parentTCPS, childTCPS) && childTCPS > 0 {
		adjusted.Scale *= parentTCPS / childTCPS
	}
	cumulative := parentOffset.Compose(adjusted)
	if cumulative.Scale < 0 {
		negative := &CompositionError{
			Kind:         KindNegativeOffsetScale,
			Layer:        parent.Identifier(),
			AuthoredPath: authored,
			ResolvedPath: r.resolved,
			Err:          fmt.Errorf("cumulative offset %s", cumulative),
		}
		if !b.cfg.AllowNegativeOffsetScale {
			b.recordError(negative)
			child.Release()
			return nil, sdf.LayerOffset{}, false
		}
		b.out.warnings = append(b.out.warnings, negative)
		b.log.Info("warning", "message", negative.Error())
	}
	b.log.V(1).Info("sublayer", "layer", parent.Identifier(), "authored", authored, "resolved", r.resolved, "offset", cumulative.String())
	return child, cumulative, true
}

func (b *builder) recordError(err error) {
	b.out.errors = append(b.out.errors, err)
	b.log.Error(err, "composition error")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
