package sdf

import "testing"

func TestLayerOffsetCompose(t *testing.T) {
	parent := NewLayerOffset(10, 2)
	child := NewLayerOffset(5, 0.5)

	composed := parent.Compose(child)
	for _, tm := range []float64{0, 1, 7.5, -3} {
		want := parent.Apply(child.Apply(tm))
		if !IsClose(composed.Apply(tm), want) {
			t.Fatalf("composed offset at %v = %v, want %v", tm, composed.Apply(tm), want)
		}
	}
	if !composed.Equal(NewLayerOffset(20, 1)) {
		t.Fatalf("unexpected composed offset %v", composed)
	}
	if !IdentityOffset().Compose(child).Equal(child) || !child.Compose(IdentityOffset()).Equal(child) {
		t.Fatalf("identity must be neutral under composition")
	}
}

func TestLayerOffsetInverse(t *testing.T) {
	o := NewLayerOffset(12, 4)
	if !o.Compose(o.Inverse()).IsIdentity() {
		t.Fatalf("expected offset composed with inverse to be identity, got %v", o.Compose(o.Inverse()))
	}
	if !NewLayerOffset(3, 0).Inverse().IsIdentity() {
		t.Fatalf("expected degenerate inverse to be identity")
	}
}
