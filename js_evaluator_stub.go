//go:build !js_eval

package layerstack

import "fmt"

// NewJSEvaluator returns an evaluator that rejects every expression; build
// with the js_eval tag for the goja engine. NewRegistry refuses EngineJS in
// this build.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return unavailableJSEvaluator{}
}

type unavailableJSEvaluator struct{}

func (unavailableJSEvaluator) Evaluate(ctx ExpressionContext, expression string) (any, error) {
	return nil, wrapEvaluationError(EngineJS, expression, ctx.layerLabel(),
		fmt.Errorf("%w: built without js_eval", ErrJSUnavailable))
}

func (unavailableJSEvaluator) engine() string { return EngineJS }

func jsEvaluatorAvailable() bool {
	return false
}
