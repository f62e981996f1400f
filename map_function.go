package layerstack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-layerstack/layering"
	"github.com/goliatone/go-layerstack/sdf"
)

// MapFunction maps paths and times from a source namespace into a target
// namespace. The path map is keyed by source prefix.
type MapFunction struct {
	pathMap map[sdf.Path]sdf.Path
	offset  sdf.LayerOffset
}

// IdentityMapFunction maps every absolute path to itself with no time offset.
func IdentityMapFunction() MapFunction {
	return MapFunction{
		pathMap: map[sdf.Path]sdf.Path{sdf.AbsoluteRootPath: sdf.AbsoluteRootPath},
		offset:  sdf.IdentityOffset(),
	}
}

// NewMapFunction copies pathMap. Entries with an empty side are dropped.
func NewMapFunction(pathMap map[sdf.Path]sdf.Path, offset sdf.LayerOffset) MapFunction {
	m := MapFunction{pathMap: make(map[sdf.Path]sdf.Path, len(pathMap)), offset: offset}
	for source, target := range pathMap {
		if source.IsEmpty() || target.IsEmpty() {
			continue
		}
		m.pathMap[source] = target
	}
	return m
}

// newOffsetMapFunction is the per-layer map function of a layer stack.
func newOffsetMapFunction(offset sdf.LayerOffset) MapFunction {
	m := IdentityMapFunction()
	m.offset = offset
	return m
}

// TimeOffset returns the offset applied to times from the source layer.
func (m MapFunction) TimeOffset() sdf.LayerOffset {
	if m.pathMap == nil {
		return sdf.IdentityOffset()
	}
	return m.offset
}

// SourceToTarget returns a copy of the path map.
func (m MapFunction) SourceToTarget() map[sdf.Path]sdf.Path {
	out := make(map[sdf.Path]sdf.Path, len(m.pathMap))
	for k, v := range m.pathMap {
		out[k] = v
	}
	return out
}

// IsIdentityPathMapping reports whether the path map is exactly {/: /}.
func (m MapFunction) IsIdentityPathMapping() bool {
	if len(m.pathMap) != 1 {
		return false
	}
	target, ok := m.pathMap[sdf.AbsoluteRootPath]
	return ok && target == sdf.AbsoluteRootPath
}

// IsIdentity reports whether m maps every path and time to itself.
func (m MapFunction) IsIdentity() bool {
	return m.IsIdentityPathMapping() && m.offset.IsIdentity()
}

// MapSourceToTarget maps p through the longest matching source prefix.
func (m MapFunction) MapSourceToTarget(p sdf.Path) (sdf.Path, bool) {
	var (
		best  sdf.Path
		found bool
	)
	for source := range m.pathMap {
		if !p.HasPrefix(source) {
			continue
		}
		if !found || len(source.String()) > len(best.String()) {
			best, found = source, true
		}
	}
	if !found {
		return sdf.EmptyPath, false
	}
	return p.ReplacePrefix(best, m.pathMap[best]), true
}

func (m MapFunction) Equal(other MapFunction) bool {
	return m.TimeOffset().Equal(other.TimeOffset()) && layering.Equal(m.pathMap, other.pathMap)
}

func (m MapFunction) String() string {
	sources := make([]sdf.Path, 0, len(m.pathMap))
	for source := range m.pathMap {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Less(sources[j]) })
	parts := make([]string, 0, len(sources))
	for _, source := range sources {
		parts = append(parts, source.String()+" -> "+m.pathMap[source].String())
	}
	return fmt.Sprintf("{%s} %s", strings.Join(parts, ", "), m.TimeOffset())
}
