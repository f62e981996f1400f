package sdf

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/goliatone/go-layerstack/pkg/store"
)

// DefaultTimeCodesPerSecond is used when a layer authors neither
// timeCodesPerSecond nor framesPerSecond.
const DefaultTimeCodesPerSecond = 24.0

// Relocate is one authored relocation statement. Prim is the owning prim for
// statements authored on a prim and empty for layer-level statements; prim
// statements may use paths relative to Prim.
type Relocate struct {
	Prim   Path
	Source string
	Target string
}

// Layer is a reference-counted handle to one parsed layer document. Identity
// is the handle itself: the LayerCache hands out one *Layer per identifier
// and format arguments while any reference is held.
type Layer struct {
	uniqueID  string
	assetPath string
	args      FileFormatArguments
	anonymous bool
	cache     *LayerCache
	refs      atomic.Int64
	expired   atomic.Bool

	mu              sync.RWMutex
	subLayerPaths   []string
	subLayerOffsets []LayerOffset
	tcps            *float64
	fps             *float64
	exprVars        map[string]any
	relocates       []Relocate
}

func newLayer(assetPath string, args FileFormatArguments, doc store.Document) *Layer {
	l := &Layer{
		uniqueID:  uuid.NewString(),
		assetPath: assetPath,
		args:      args.Clone(),
		anonymous: IsAnonymousIdentifier(assetPath),
	}
	l.setDocument(doc)
	return l
}

func (l *Layer) setDocument(doc store.Document) {
	l.subLayerPaths = append([]string(nil), doc.SubLayers...)
	if doc.SubLayerOffsets != nil {
		l.subLayerOffsets = make([]LayerOffset, len(doc.SubLayerOffsets))
		for i, o := range doc.SubLayerOffsets {
			l.subLayerOffsets[i] = NewLayerOffset(o.Offset, o.ScaleOrDefault())
		}
	} else {
		l.subLayerOffsets = identityOffsets(len(doc.SubLayers))
	}
	l.tcps = copyFloat(doc.TimeCodesPerSecond)
	l.fps = copyFloat(doc.FramesPerSecond)
	l.exprVars = copyVars(doc.ExpressionVariables)

	l.relocates = nil
	for _, entry := range doc.Relocates {
		l.relocates = append(l.relocates, Relocate{Source: entry.Source, Target: entry.Target})
	}
	primPaths := make([]string, 0, len(doc.Prims))
	for p := range doc.Prims {
		primPaths = append(primPaths, p)
	}
	sort.Strings(primPaths)
	for _, raw := range primPaths {
		prim, err := NewPath(raw)
		if err != nil {
			// Keep the statement so relocation validation can report it.
			prim = EmptyPath
		}
		statements := doc.Prims[raw].Relocates
		sources := make([]string, 0, len(statements))
		for source := range statements {
			sources = append(sources, source)
		}
		sort.Strings(sources)
		for _, source := range sources {
			l.relocates = append(l.relocates, Relocate{Prim: prim, Source: source, Target: statements[source]})
		}
	}
}

// UniqueID is a process-unique identity token for this handle.
func (l *Layer) UniqueID() string { return l.uniqueID }

// Identifier returns the asset path with any format arguments encoded.
func (l *Layer) Identifier() string { return CreateIdentifier(l.assetPath, l.args) }

// AssetPath returns the resolved asset path (or anonymous identifier).
func (l *Layer) AssetPath() string { return l.assetPath }

func (l *Layer) FileFormatArguments() FileFormatArguments { return l.args.Clone() }

func (l *Layer) IsAnonymous() bool { return l.anonymous }

func (l *Layer) String() string { return l.Identifier() }

// SubLayerPaths returns the authored sublayer asset paths, strong to weak.
func (l *Layer) SubLayerPaths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.subLayerPaths...)
}

// SubLayerOffsets returns the authored per-sublayer offsets. The result may
// differ in length from SubLayerPaths when the document is inconsistent.
func (l *Layer) SubLayerOffsets() []LayerOffset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]LayerOffset(nil), l.subLayerOffsets...)
}

// HasTimeCodesPerSecond reports whether timeCodesPerSecond is authored.
func (l *Layer) HasTimeCodesPerSecond() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tcps != nil
}

// TimeCodesPerSecond returns the authored timeCodesPerSecond, falling back to
// framesPerSecond and then DefaultTimeCodesPerSecond.
func (l *Layer) TimeCodesPerSecond() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch {
	case l.tcps != nil:
		return *l.tcps
	case l.fps != nil:
		return *l.fps
	default:
		return DefaultTimeCodesPerSecond
	}
}

// ExpressionVariables returns a copy of the authored variables.
func (l *Layer) ExpressionVariables() map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyVars(l.exprVars)
}

// Relocates returns layer-level statements followed by prim statements in
// prim path order.
func (l *Layer) Relocates() []Relocate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Relocate(nil), l.relocates...)
}

// SetSubLayerPaths replaces the sublayer list. Offsets are padded with
// identity or truncated to match.
func (l *Layer) SetSubLayerPaths(paths []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subLayerPaths = append([]string(nil), paths...)
	if len(l.subLayerOffsets) != len(paths) {
		offsets := identityOffsets(len(paths))
		copy(offsets, l.subLayerOffsets)
		l.subLayerOffsets = offsets
	}
}

// SetSubLayerOffsets replaces the offsets verbatim, including a length that
// disagrees with the sublayer list.
func (l *Layer) SetSubLayerOffsets(offsets []LayerOffset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subLayerOffsets = append([]LayerOffset(nil), offsets...)
}

// SetTimeCodesPerSecond authors a rate, overriding framesPerSecond.
func (l *Layer) SetTimeCodesPerSecond(tcps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tcps = &tcps
}

func (l *Layer) ClearTimeCodesPerSecond() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tcps = nil
}

func (l *Layer) SetExpressionVariables(vars map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exprVars = copyVars(vars)
}

// SetRelocates replaces every relocation statement of the layer.
func (l *Layer) SetRelocates(relocates []Relocate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.relocates = append([]Relocate(nil), relocates...)
}

// Document exports the current content of the layer.
func (l *Layer) Document() store.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	doc := store.Document{
		TimeCodesPerSecond:  copyFloat(l.tcps),
		FramesPerSecond:     copyFloat(l.fps),
		ExpressionVariables: copyVars(l.exprVars),
		SubLayers:           append([]string(nil), l.subLayerPaths...),
	}
	for _, o := range l.subLayerOffsets {
		scale := o.Scale
		doc.SubLayerOffsets = append(doc.SubLayerOffsets, store.Offset{Offset: o.Offset, Scale: &scale})
	}
	for _, r := range l.relocates {
		if r.Prim.IsEmpty() {
			doc.Relocates = append(doc.Relocates, store.RelocateEntry{Source: r.Source, Target: r.Target})
			continue
		}
		if doc.Prims == nil {
			doc.Prims = map[string]store.Prim{}
		}
		prim := doc.Prims[r.Prim.String()]
		if prim.Relocates == nil {
			prim.Relocates = map[string]string{}
		}
		prim.Relocates[r.Source] = r.Target
		doc.Prims[r.Prim.String()] = prim
	}
	return doc
}

// Retain adds a strong reference and returns l for chaining.
func (l *Layer) Retain() *Layer {
	l.refs.Add(1)
	return l
}

// Release drops a strong reference. When the last reference goes away the
// layer is expired and evicted from its cache, so a later open re-reads the
// asset.
func (l *Layer) Release() {
	if l.cache != nil {
		l.cache.release(l)
		return
	}
	if l.refs.Add(-1) == 0 {
		l.expired.Store(true)
	}
}

// RefCount returns the number of holders.
func (l *Layer) RefCount() int64 { return l.refs.Load() }

// Expired reports whether every reference has been released.
func (l *Layer) Expired() bool { return l.expired.Load() }

func identityOffsets(n int) []LayerOffset {
	out := make([]LayerOffset, n)
	for i := range out {
		out[i] = IdentityOffset()
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyVars(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
