package layerstack

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/moby/patternmatcher"

	"github.com/goliatone/go-layerstack/layering"
)

// MutedLayers is a registry-scoped set of muted asset paths. Entries match
// exactly, as glob patterns ("/shots/*/fx.yaml", "/lib/**"), or as a parent
// directory of the candidate path.
type MutedLayers struct {
	mu      sync.RWMutex
	paths   map[string]struct{}
	matcher *patternmatcher.PatternMatcher
}

// NewMutedLayers builds a set from exact paths and patterns. An invalid
// pattern is an error.
func NewMutedLayers(paths ...string) (*MutedLayers, error) {
	m := &MutedLayers{paths: map[string]struct{}{}}
	if _, err := m.Add(paths...); err != nil {
		return nil, err
	}
	return m, nil
}

// Add mutes paths and returns the entries that were not already muted.
func (m *MutedLayers) Add(paths ...string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make(map[string]struct{}, len(m.paths)+len(paths))
	for p := range m.paths {
		next[p] = struct{}{}
	}
	var added []string
	for _, raw := range paths {
		p := canonicalMutedPath(raw)
		if p == "" {
			continue
		}
		if _, ok := next[p]; ok {
			continue
		}
		next[p] = struct{}{}
		added = append(added, p)
	}
	if len(added) == 0 {
		return nil, nil
	}
	matcher, err := newMutedMatcher(next)
	if err != nil {
		return nil, err
	}
	m.paths, m.matcher = next, matcher
	return added, nil
}

// Remove unmutes paths and returns the entries that were muted. The set is
// left untouched when the remaining patterns fail to compile.
func (m *MutedLayers) Remove(paths ...string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := layering.Clone(m.paths)
	var removed []string
	for _, raw := range paths {
		p := canonicalMutedPath(raw)
		if _, ok := next[p]; !ok {
			continue
		}
		delete(next, p)
		removed = append(removed, p)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	matcher, err := newMutedMatcher(next)
	if err != nil {
		return nil, err
	}
	if next == nil {
		next = map[string]struct{}{}
	}
	m.paths, m.matcher = next, matcher
	return removed, nil
}

// IsMuted reports whether any candidate is muted. Callers pass every
// spelling of a sublayer: authored, anchored and resolved.
func (m *MutedLayers) IsMuted(candidates ...string) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.paths) == 0 {
		return false
	}
	for _, raw := range candidates {
		c := canonicalMutedPath(raw)
		if c == "" {
			continue
		}
		if _, ok := m.paths[c]; ok {
			return true
		}
		if m.matcher == nil || !strings.HasPrefix(c, "/") {
			continue
		}
		if ok, err := m.matcher.MatchesOrParentMatches(strings.TrimPrefix(c, "/")); err == nil && ok {
			return true
		}
	}
	return false
}

// Paths returns the muted entries in sorted order.
func (m *MutedLayers) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return layering.SortedKeys(m.paths)
}

func canonicalMutedPath(raw string) string {
	p := strings.TrimSpace(raw)
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return p
}

func newMutedMatcher(paths map[string]struct{}) (*patternmatcher.PatternMatcher, error) {
	patterns := make([]string, 0, len(paths))
	for p := range paths {
		if strings.HasPrefix(p, "/") {
			patterns = append(patterns, strings.TrimPrefix(p, "/"))
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	sort.Strings(patterns)
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("layerstack: invalid muted layer pattern: %w", err)
	}
	return matcher, nil
}
