package layerstack

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-layerstack/sdf"
)

// LayerRelocates pairs a layer with its authored relocation statements.
type LayerRelocates struct {
	Layer     *sdf.Layer
	Relocates []sdf.Relocate
}

// relocations is the relocation data derived from one layer list.
type relocations struct {
	sourceToTarget            map[sdf.Path]sdf.Path
	targetToSource            map[sdf.Path]sdf.Path
	incrementalSourceToTarget map[sdf.Path]sdf.Path
	incrementalTargetToSource map[sdf.Path]sdf.Path
	primPaths                 []sdf.Path
	errors                    []error
	warnings                  []error
}

func (r relocations) isEmpty() bool {
	return len(r.incrementalSourceToTarget) == 0
}

// ValidateRelocatesEntry checks the context-free rules for one relocation.
// The returned error matches ErrInvalidRelocation.
func ValidateRelocatesEntry(source, target sdf.Path) error {
	invalid := func(format string, args ...any) error {
		return &CompositionError{
			Kind: KindInvalidRelocation,
			Path: source.String(),
			Err:  fmt.Errorf(format, args...),
		}
	}
	for _, p := range []struct {
		role string
		path sdf.Path
	}{{"source", source}, {"target", target}} {
		switch {
		case p.path.IsEmpty():
			return invalid("%s path is empty", p.role)
		case !p.path.IsAbsolutePath():
			return invalid("%s path %s is not absolute", p.role, p.path)
		case p.path.IsAbsoluteRootPath():
			return invalid("%s path cannot be the absolute root", p.role)
		case p.path.IsRelationalAttributePath():
			return invalid("%s path %s is a relational attribute path", p.role, p.path)
		case p.path.ContainsPrimVariantSelection():
			return invalid("%s path %s contains a variant selection", p.role, p.path)
		case !p.path.IsPrimPath():
			return invalid("%s path %s is not a prim path", p.role, p.path)
		}
	}
	switch {
	case source == target:
		return invalid("cannot relocate %s to itself", source)
	case target.HasPrefix(source):
		return invalid("cannot relocate %s to its descendant %s", source, target)
	case source.HasPrefix(target):
		return invalid("cannot relocate %s to its ancestor %s", source, target)
	}
	return nil
}

// BuildRelocatesMap composes relocation statements ordered strong to weak
// into a source to target map. The first valid statement for a source wins.
// Invalid statements and conflicting weaker opinions are returned as errors.
func BuildRelocatesMap(layers []LayerRelocates) (map[sdf.Path]sdf.Path, []error) {
	r := compileRelocates(layers)
	return r.incrementalSourceToTarget, append(r.errors, r.warnings...)
}

// computeRelocations derives every relocation table for a strong-to-weak
// layer list. A layer listed more than once contributes once.
func computeRelocations(layers []*sdf.Layer) relocations {
	seen := make(map[*sdf.Layer]struct{}, len(layers))
	entries := make([]LayerRelocates, 0, len(layers))
	for _, layer := range layers {
		if _, ok := seen[layer]; ok {
			continue
		}
		seen[layer] = struct{}{}
		if statements := layer.Relocates(); len(statements) > 0 {
			entries = append(entries, LayerRelocates{Layer: layer, Relocates: statements})
		}
	}
	r := compileRelocates(entries)
	r.sourceToTarget, r.targetToSource = combineRelocates(r.incrementalSourceToTarget)
	return r
}

func compileRelocates(layers []LayerRelocates) relocations {
	r := relocations{
		incrementalSourceToTarget: map[sdf.Path]sdf.Path{},
		incrementalTargetToSource: map[sdf.Path]sdf.Path{},
	}
	seenPrims := map[sdf.Path]struct{}{}
	for _, entry := range layers {
		layerID := ""
		if entry.Layer != nil {
			layerID = entry.Layer.Identifier()
		}
		sourcesInLayer := map[sdf.Path]struct{}{}
		for _, statement := range entry.Relocates {
			source, target, err := anchorRelocate(statement)
			if err != nil {
				r.errors = append(r.errors, relocationError(KindInvalidRelocation, layerID, statement, err))
				continue
			}
			owner := statement.Prim
			if owner.IsEmpty() {
				owner = source
			}
			if _, ok := seenPrims[owner]; !ok && !owner.IsEmpty() {
				seenPrims[owner] = struct{}{}
				r.primPaths = append(r.primPaths, owner)
			}
			if err := ValidateRelocatesEntry(source, target); err != nil {
				r.errors = append(r.errors, withLayer(err, layerID))
				continue
			}
			if _, dup := sourcesInLayer[source]; dup {
				r.errors = append(r.errors, relocationError(KindInvalidRelocation, layerID, statement,
					fmt.Errorf("%s is relocated more than once in the same layer", source)))
				continue
			}
			sourcesInLayer[source] = struct{}{}
			if existing, ok := r.incrementalSourceToTarget[source]; ok {
				msg := fmt.Errorf("weaker relocation %s -> %s ignored, %s -> %s wins", source, target, source, existing)
				if existing == target {
					msg = fmt.Errorf("redundant relocation %s -> %s", source, target)
				}
				r.warnings = append(r.warnings, relocationError(KindConflictingRelocation, layerID, statement, msg))
				continue
			}
			if other, ok := r.incrementalTargetToSource[target]; ok {
				r.errors = append(r.errors, relocationError(KindInvalidRelocation, layerID, statement,
					fmt.Errorf("target %s is already the target of %s", target, other)))
				continue
			}
			r.incrementalSourceToTarget[source] = target
			r.incrementalTargetToSource[target] = source
		}
	}
	return r
}

// combineRelocates folds ancestor relocations into descendant entries so a
// path needs a single lookup. Sources and targets of nested relocations are
// rewritten through their nearest relocated ancestor.
func combineRelocates(incremental map[sdf.Path]sdf.Path) (map[sdf.Path]sdf.Path, map[sdf.Path]sdf.Path) {
	sourceToTarget := make(map[sdf.Path]sdf.Path, len(incremental))
	targetToSource := make(map[sdf.Path]sdf.Path, len(incremental))
	combinedTarget := make(map[sdf.Path]sdf.Path, len(incremental))
	inProgress := map[sdf.Path]bool{}

	var remap func(p sdf.Path) sdf.Path
	targetOf := func(source sdf.Path) sdf.Path {
		if t, ok := combinedTarget[source]; ok {
			return t
		}
		if inProgress[source] {
			return incremental[source]
		}
		inProgress[source] = true
		t := remap(incremental[source])
		delete(inProgress, source)
		combinedTarget[source] = t
		return t
	}
	remap = func(p sdf.Path) sdf.Path {
		for ancestor := p.ParentPath(); !ancestor.IsEmpty() && !ancestor.IsAbsoluteRootPath(); ancestor = ancestor.ParentPath() {
			if _, ok := incremental[ancestor]; ok {
				return p.ReplacePrefix(ancestor, targetOf(ancestor))
			}
		}
		return p
	}

	sources := make([]sdf.Path, 0, len(incremental))
	for source := range incremental {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Less(sources[j]) })
	for _, source := range sources {
		combinedSource := remap(source)
		target := targetOf(source)
		sourceToTarget[combinedSource] = target
		targetToSource[target] = combinedSource
	}
	return sourceToTarget, targetToSource
}

func anchorRelocate(statement sdf.Relocate) (sdf.Path, sdf.Path, error) {
	anchor := func(raw string) (sdf.Path, error) {
		p, err := sdf.NewPath(raw)
		if err != nil {
			return sdf.EmptyPath, err
		}
		if p.IsAbsolutePath() || statement.Prim.IsEmpty() {
			return p, nil
		}
		return p.MakeAbsolute(statement.Prim)
	}
	source, err := anchor(statement.Source)
	if err != nil {
		return sdf.EmptyPath, sdf.EmptyPath, fmt.Errorf("source: %w", err)
	}
	target, err := anchor(statement.Target)
	if err != nil {
		return sdf.EmptyPath, sdf.EmptyPath, fmt.Errorf("target: %w", err)
	}
	return source, target, nil
}

func relocationError(kind ErrorKind, layer string, statement sdf.Relocate, err error) *CompositionError {
	path := statement.Source
	if !statement.Prim.IsEmpty() {
		path = statement.Prim.String()
	}
	return &CompositionError{Kind: kind, Layer: layer, Path: path, Err: err}
}

func withLayer(err error, layer string) error {
	var compErr *CompositionError
	if errors.As(err, &compErr) && compErr.Layer == "" {
		compErr.Layer = layer
	}
	return err
}
