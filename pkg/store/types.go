package store

import (
	"context"
	"errors"
	"time"
)

var ErrETagMismatch = errors.New("store: etag mismatch")

var ErrIdentifierRequired = errors.New("store: identifier is required")

// Offset is the authored time offset for one sublayer entry. A missing scale
// means 1.
type Offset struct {
	Offset float64  `yaml:"offset,omitempty" json:"offset,omitempty"`
	Scale  *float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// ScaleOrDefault returns the authored scale or 1 when unset.
func (o Offset) ScaleOrDefault() float64 {
	if o.Scale == nil {
		return 1
	}
	return *o.Scale
}

// RelocateEntry is one authored layer-level relocation statement.
type RelocateEntry struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// Prim carries per-prim metadata relevant to composition. Relocation paths
// may be relative to the prim.
type Prim struct {
	Relocates map[string]string `yaml:"relocates,omitempty" json:"relocates,omitempty"`
}

// Document is the persisted form of one layer.
type Document struct {
	TimeCodesPerSecond  *float64        `yaml:"timeCodesPerSecond,omitempty" json:"timeCodesPerSecond,omitempty"`
	FramesPerSecond     *float64        `yaml:"framesPerSecond,omitempty" json:"framesPerSecond,omitempty"`
	ExpressionVariables map[string]any  `yaml:"expressionVariables,omitempty" json:"expressionVariables,omitempty"`
	SubLayers           []string        `yaml:"subLayers,omitempty" json:"subLayers,omitempty"`
	SubLayerOffsets     []Offset        `yaml:"subLayerOffsets,omitempty" json:"subLayerOffsets,omitempty"`
	Relocates           []RelocateEntry `yaml:"relocates,omitempty" json:"relocates,omitempty"`
	Prims               map[string]Prim `yaml:"prims,omitempty" json:"prims,omitempty"`
}

// Clone returns a deep copy of d so callers can mutate the result freely.
func (d Document) Clone() Document {
	out := Document{
		TimeCodesPerSecond:  cloneFloat(d.TimeCodesPerSecond),
		FramesPerSecond:     cloneFloat(d.FramesPerSecond),
		ExpressionVariables: cloneAnyMap(d.ExpressionVariables),
	}
	if d.SubLayers != nil {
		out.SubLayers = append([]string{}, d.SubLayers...)
	}
	if d.SubLayerOffsets != nil {
		out.SubLayerOffsets = make([]Offset, len(d.SubLayerOffsets))
		for i, offset := range d.SubLayerOffsets {
			out.SubLayerOffsets[i] = Offset{Offset: offset.Offset, Scale: cloneFloat(offset.Scale)}
		}
	}
	if d.Relocates != nil {
		out.Relocates = append([]RelocateEntry{}, d.Relocates...)
	}
	if d.Prims != nil {
		out.Prims = make(map[string]Prim, len(d.Prims))
		for path, prim := range d.Prims {
			var relocates map[string]string
			if prim.Relocates != nil {
				relocates = make(map[string]string, len(prim.Relocates))
				for k, v := range prim.Relocates {
					relocates[k] = v
				}
			}
			out.Prims[path] = Prim{Relocates: relocates}
		}
	}
	return out
}

// Meta is storage-owned metadata used for change detection and concurrency
// control.
type Meta struct {
	ETag      string            `json:"etag,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one layer document for a single identifier.
type Store interface {
	Load(ctx context.Context, identifier string) (doc Document, meta Meta, ok bool, err error)
	Save(ctx context.Context, identifier string, doc Document, meta Meta) (Meta, error)
	Exists(ctx context.Context, identifier string) (bool, error)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneAnyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
