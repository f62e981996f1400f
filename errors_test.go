package layerstack

import (
	"errors"
	"strings"
	"testing"
)

func TestCompositionErrorMatchesKindSentinel(t *testing.T) {
	base := errors.New("not found")
	err := error(&CompositionError{
		Kind:         KindAssetResolution,
		Layer:        "/root.yaml",
		AuthoredPath: "./missing.yaml",
		Err:          base,
	})

	if !errors.Is(err, ErrAssetResolution) {
		t.Fatalf("expected kind sentinel to match")
	}
	if errors.Is(err, ErrSublayerCycle) {
		t.Fatalf("expected other sentinels not to match")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to unwrap")
	}
	msg := err.Error()
	for _, want := range []string{"asset_resolution", "layer=/root.yaml", `authored="./missing.yaml"`, "not found"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}

	var compErr *CompositionError
	if !errors.As(err, &compErr) || compErr.Kind != KindAssetResolution {
		t.Fatalf("expected errors.As to expose the composition error")
	}
}
