package layerstack

import (
	"errors"
	"sync"
)

var (
	ErrNoEvaluator   = errors.New("layerstack: evaluator not configured")
	ErrJSUnavailable = errors.New("layerstack: js engine unavailable")
)

// ExpressionContext carries the inputs of one expression evaluation.
type ExpressionContext struct {
	Variables map[string]any
	// Layer identifies the layer that authored the expression.
	Layer string
}

func (ctx ExpressionContext) layerLabel() string {
	if ctx.Layer != "" {
		return ctx.Layer
	}
	return "unknown"
}

func (ctx ExpressionContext) withDefaultVariables() ExpressionContext {
	if ctx.Variables == nil {
		ctx.Variables = map[string]any{}
	}
	return ctx
}

// Evaluator executes translated variable expressions. Variables referenced
// as ${NAME} are bound as plain identifiers.
type Evaluator interface {
	Evaluate(ctx ExpressionContext, expr string) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapProgramCache is a ProgramCache safe for concurrent use.
type MapProgramCache struct {
	programs sync.Map
}

// NewProgramCache returns an empty cache shared by the engines of one
// registry.
func NewProgramCache() *MapProgramCache {
	return &MapProgramCache{}
}

func (c *MapProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *MapProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}

// newEvaluator builds the evaluator named by engine.
func newEvaluator(engine string, cache ProgramCache, functions *FunctionRegistry) Evaluator {
	switch engine {
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(functions))
	case EngineJS:
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(functions))
	default:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(functions))
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch v := e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return EngineExpr
	case *celEvaluator:
		return EngineCEL
	case interface{ engine() string }:
		return v.engine()
	default:
		return "custom"
	}
}
