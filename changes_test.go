package layerstack

import (
	"reflect"
	"testing"

	"github.com/goliatone/go-layerstack/sdf"
)

func TestChangeSetMergeKeepsOrderAndKinds(t *testing.T) {
	cache := sdf.NewLayerCache(nil)
	a, b := cache.CreateAnonymous("a"), cache.CreateAnonymous("b")
	defer a.Release()
	defer b.Release()

	first := NewChangeSet().Add(a, ChangeSublayers).Add(nil, ChangeRelocates)
	second := NewChangeSet().Add(b, ChangeRelocates).Add(a, ChangeTimeCodesPerSecond).AddGlobal(ChangeMutedLayers)
	first.Merge(second)

	if got := first.Layers(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("expected first-added order, got %v", got)
	}
	if got := first.For(a); got != ChangeSublayers|ChangeTimeCodesPerSecond {
		t.Fatalf("unexpected kinds for a: %v", got.Names())
	}
	if !first.Global().Has(ChangeMutedLayers) || first.IsEmpty() {
		t.Fatalf("expected global muted change")
	}
	want := []string{"sublayers", "relocates", "time_codes_per_second", "muted_layers"}
	if got := first.Kinds().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}

	var nilSet *ChangeSet
	if !nilSet.IsEmpty() || nilSet.For(a) != 0 || nilSet.Layers() != nil {
		t.Fatalf("expected nil change set to read as empty")
	}
}
