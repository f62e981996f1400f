package sdf

import (
	"fmt"
	"math"
)

const timeEpsilon = 1e-6

// LayerOffset is an affine time mapping t' = t*Scale + Offset applied to
// values read through a sublayer.
type LayerOffset struct {
	Offset float64 `json:"offset"`
	Scale  float64 `json:"scale"`
}

// IdentityOffset returns the offset that leaves time unchanged.
func IdentityOffset() LayerOffset {
	return LayerOffset{Offset: 0, Scale: 1}
}

func NewLayerOffset(offset, scale float64) LayerOffset {
	return LayerOffset{Offset: offset, Scale: scale}
}

// IsIdentity reports a zero offset and unit scale, within tolerance.
func (o LayerOffset) IsIdentity() bool {
	return IsClose(o.Offset, 0) && IsClose(o.Scale, 1)
}

// IsValid reports whether both components are finite.
func (o LayerOffset) IsValid() bool {
	return !math.IsNaN(o.Offset) && !math.IsInf(o.Offset, 0) &&
		!math.IsNaN(o.Scale) && !math.IsInf(o.Scale, 0)
}

// Compose returns the offset equivalent to applying inner first and then o.
func (o LayerOffset) Compose(inner LayerOffset) LayerOffset {
	return LayerOffset{
		Offset: o.Scale*inner.Offset + o.Offset,
		Scale:  o.Scale * inner.Scale,
	}
}

// Inverse returns the offset that undoes o. A zero scale has no inverse and
// yields the identity.
func (o LayerOffset) Inverse() LayerOffset {
	if IsClose(o.Scale, 0) {
		return IdentityOffset()
	}
	return LayerOffset{Offset: -o.Offset / o.Scale, Scale: 1 / o.Scale}
}

// Apply maps time t through the offset.
func (o LayerOffset) Apply(t float64) float64 {
	return t*o.Scale + o.Offset
}

func (o LayerOffset) Equal(other LayerOffset) bool {
	return IsClose(o.Offset, other.Offset) && IsClose(o.Scale, other.Scale)
}

func (o LayerOffset) String() string {
	return fmt.Sprintf("(offset=%g, scale=%g)", o.Offset, o.Scale)
}

// IsClose compares two times with the tolerance used throughout composition.
func IsClose(a, b float64) bool {
	return math.Abs(a-b) < timeEpsilon
}
