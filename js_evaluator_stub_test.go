//go:build !js_eval

package layerstack

import (
	"errors"
	"testing"
)

func TestRegistryRejectsJSEngineWithoutBuildTag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpressionEngine = EngineJS
	if _, err := NewRegistry(WithConfig(cfg)); err == nil {
		t.Fatalf("expected js engine to be unavailable")
	}
}

func TestJSEvaluatorUnavailableWithoutBuildTag(t *testing.T) {
	eval := NewJSEvaluator(JSWithProgramCache(NewProgramCache()))
	if _, err := eval.Evaluate(ExpressionContext{Layer: "/root.yaml"}, `"x"`); !errors.Is(err, ErrJSUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if evaluatorEngineName(eval) != EngineJS {
		t.Fatalf("unexpected engine name %q", evaluatorEngineName(eval))
	}
}
