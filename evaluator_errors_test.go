package layerstack

import (
	"errors"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", `"/shots/" + SHOT`, "/root.yaml", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != `"/shots/" + SHOT` {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Layer != "/root.yaml" {
		t.Fatalf("expected layer metadata, got %q", evalErr.Layer)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "SHOT", "/root.yaml", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "SHOT" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Layer != "/root.yaml" {
		t.Fatalf("layer should be filled, got %q", existing.Layer)
	}
}

func TestWrapEvaluatorErrorKeepsPrefixedErrors(t *testing.T) {
	prefixed := errors.New("layerstack: already described")
	if got := wrapEvaluatorError("expr", prefixed); got != prefixed {
		t.Fatalf("expected prefixed error returned as is, got %v", got)
	}
	if got := wrapEvaluatorError("expr", errors.New("raw")); got.Error() != "layerstack: expr evaluator: raw" {
		t.Fatalf("unexpected wrapping %q", got)
	}
	if wrapEvaluatorError("expr", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
