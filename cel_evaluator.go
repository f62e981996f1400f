package layerstack

import (
	"fmt"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Registered functions are exposed as single-argument dyn functions.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx ExpressionContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineCEL, fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaultVariables()
	program, err := e.loadOrCompile(expression, ctx.Variables)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.layerLabel(), err)
	}
	out, _, err := program.Eval(e.activation(ctx))
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.layerLabel(), err)
	}
	return out.Value(), nil
}

// loadOrCompile keys programs by expression and declared variable names since
// CEL checks identifiers at compile time.
func (e *celEvaluator) loadOrCompile(expression string, variables map[string]any) (celgo.Program, error) {
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)
	key := EngineCEL + ":" + strings.Join(names, ",") + ":" + expression

	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, prg)
	}
	return prg, nil
}

func (e *celEvaluator) buildEnv(names []string) (*celgo.Env, error) {
	opts := make([]celgo.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			opts = append(opts, celgo.Function(name,
				celgo.Overload(name+"_dyn", []*celgo.Type{celgo.DynType}, celgo.DynType,
					celgo.UnaryBinding(e.callBinding(name)),
				),
			))
		}
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx ExpressionContext) map[string]any {
	activation := make(map[string]any, len(ctx.Variables))
	for key, value := range ctx.Variables {
		activation[key] = value
	}
	return activation
}

func (e *celEvaluator) callBinding(name string) func(ref.Val) ref.Val {
	return func(value ref.Val) ref.Val {
		result, err := e.registry.Call(name, value.Value())
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
