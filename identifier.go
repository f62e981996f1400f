package layerstack

import (
	"strings"

	"github.com/goliatone/go-layerstack/ar"
	"github.com/goliatone/go-layerstack/sdf"
)

// Identifier names a layer stack: its root layer, optional session layer
// and the asset resolution context. Layers compare by handle identity.
type Identifier struct {
	RootLayer    *sdf.Layer
	SessionLayer *sdf.Layer
	Context      ar.Context
}

// NewIdentifier builds the key of a layer stack. session may be nil.
func NewIdentifier(root, session *sdf.Layer, rc ar.Context) Identifier {
	return Identifier{RootLayer: root, SessionLayer: session, Context: rc}
}

// IsValid reports whether id names a root layer. Registries reject
// identifiers without one.
func (id Identifier) IsValid() bool { return id.RootLayer != nil }

// Key is the registry cache key.
func (id Identifier) Key() string {
	var b strings.Builder
	if id.RootLayer != nil {
		b.WriteString(id.RootLayer.UniqueID())
	}
	b.WriteByte('|')
	if id.SessionLayer != nil {
		b.WriteString(id.SessionLayer.UniqueID())
	}
	b.WriteByte('|')
	b.WriteString(id.Context.Hash())
	return b.String()
}

// Equal reports whether both identifiers name the same layers, by identity,
// and equal resolver contexts.
func (id Identifier) Equal(other Identifier) bool {
	return id.RootLayer == other.RootLayer &&
		id.SessionLayer == other.SessionLayer &&
		id.Context.Equal(other.Context)
}

func (id Identifier) String() string {
	if id.RootLayer == nil {
		return "<invalid>"
	}
	s := id.RootLayer.Identifier()
	if id.SessionLayer != nil {
		s += " (session " + id.SessionLayer.Identifier() + ")"
	}
	return s
}
