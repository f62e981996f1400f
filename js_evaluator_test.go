//go:build js_eval

package layerstack

import (
	"reflect"
	"testing"
	"time"
)

func TestJSEvaluatorTranslatedPaths(t *testing.T) {
	eval := expressionEvaluator{
		evaluator: newEvaluator(EngineJS, NewProgramCache(), nil),
		logger:    noopEvaluatorLogger{},
	}
	vars := map[string]any{"SHOT": "s010", "TAKE": 3}

	got, deps, err := eval.evaluateAssetPath("`\"./shots/${SHOT}/take${TAKE}.yaml\"`", vars, "/root.yaml")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != "./shots/s010/take3.yaml" {
		t.Fatalf("unexpected path %q", got)
	}
	if !reflect.DeepEqual(deps, []string{"SHOT", "TAKE"}) {
		t.Fatalf("unexpected deps %v", deps)
	}
	if evaluatorEngineName(eval.evaluator) != EngineJS {
		t.Fatalf("unexpected engine name %q", evaluatorEngineName(eval.evaluator))
	}
}

func TestJSEvaluatorInterruptsLongExpressions(t *testing.T) {
	eval := NewJSEvaluator(JSWithTimeout(20 * time.Millisecond))
	if _, err := eval.Evaluate(ExpressionContext{Layer: "/root.yaml"}, "(function(){ while (true) {} })()"); err == nil {
		t.Fatalf("expected endless expression to be interrupted")
	}
}
