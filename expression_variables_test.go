package layerstack

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTranslateVariableExpression(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		want  string
		names []string
		err   bool
	}{
		{name: "plain string", body: `"./a.yaml"`, want: `"./a.yaml"`},
		{name: "interpolated", body: `"./shots/${SHOT}/${SHOT}.yaml"`, want: `"./shots/" + string(SHOT) + "/" + string(SHOT) + ".yaml"`, names: []string{"SHOT"}},
		{name: "bare reference", body: `${ROOT} + "/x.yaml"`, want: `ROOT + "/x.yaml"`, names: []string{"ROOT"}},
		{name: "single quotes", body: `'${A}-${B}'`, want: `'' + string(A) + '-' + string(B) + ''`, names: []string{"A", "B"}},
		{name: "escaped quote", body: `"a\"${X}"`, want: `"a\"" + string(X) + ""`, names: []string{"X"}},
		{name: "unterminated reference", body: `"${SHOT"`, err: true},
		{name: "invalid name", body: `"${1A}"`, err: true},
		{name: "unterminated string", body: `"abc`, err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, names, err := translateVariableExpression(tc.body)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("translate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
			if !reflect.DeepEqual(names, tc.names) {
				t.Fatalf("want names %v, got %v", tc.names, names)
			}
		})
	}
}

func TestEvaluateAssetPathEngines(t *testing.T) {
	vars := map[string]any{"SHOT": "s010", "TAKE": 3, "HERO": true}
	for _, engine := range []string{EngineExpr, EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			var events []EvaluatorLogEvent
			eval := expressionEvaluator{
				evaluator: newEvaluator(engine, NewProgramCache(), nil),
				logger:    EvaluatorLoggerFunc(func(e EvaluatorLogEvent) { events = append(events, e) }),
			}

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
			if len(events) != 1 || events[0].Engine != engine || events[0].Err != nil {
				t.Fatalf("unexpected log events %+v", events)
			}

			got, _, err = eval.evaluateAssetPath("`${HERO} ? \"./hero.yaml\" : \"\"`", vars, "/root.yaml")
			if err != nil || got != "./hero.yaml" {
				t.Fatalf("conditional expression: %q %v", got, err)
			}

			_, deps, err = eval.evaluateAssetPath("`\"./${MISSING}.yaml\"`", vars, "/root.yaml")
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) || !strings.Contains(err.Error(), "MISSING") {
				t.Fatalf("expected missing variable error, got %v", err)
			}
			if !reflect.DeepEqual(deps, []string{"MISSING"}) {
				t.Fatalf("expected dependency on missing variable, got %v", deps)
			}

			if _, _, err := eval.evaluateAssetPath("`${TAKE}`", vars, "/root.yaml"); err == nil {
				t.Fatalf("expected non-string result to fail")
			}
		})
	}
}

func TestEvaluateAssetPathPassesThroughPlainPaths(t *testing.T) {
	eval := expressionEvaluator{logger: noopEvaluatorLogger{}}
	got, deps, err := eval.evaluateAssetPath("./plain.yaml", nil, "")
	if err != nil || got != "./plain.yaml" || deps != nil {
		t.Fatalf("unexpected result %q %v %v", got, deps, err)
	}
	if _, _, err := eval.evaluateAssetPath("`\"x\"`", nil, ""); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
}

func TestCustomFunctionsReachEvaluators(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("shotDir", func(args ...any) (any, error) {
		return "/shots/" + args[0].(string), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	rejected := []string{"SHOTDIR", "string", "", "shot-dir", "1shot"}
	for _, name := range rejected {
		if err := registry.Register(name, func(...any) (any, error) { return nil, nil }); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	if got := registry.Names(); len(got) != 1 || got[0] != "shotdir" {
		t.Fatalf("unexpected names %v", got)
	}
	for _, engine := range []string{EngineExpr, EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			eval := expressionEvaluator{evaluator: newEvaluator(engine, nil, registry), logger: noopEvaluatorLogger{}}
			got, _, err := eval.evaluateAssetPath("`shotdir(${SHOT}) + \"/layout.yaml\"`", map[string]any{"SHOT": "s020"}, "")
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != "/shots/s020/layout.yaml" {
				t.Fatalf("unexpected path %q", got)
			}
		})
	}
}
