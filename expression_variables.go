package layerstack

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-layerstack/layering"
)

// IsVariableExpression reports whether s is a backtick-delimited variable
// expression such as `"./shots/${SHOT}.yaml"`.
func IsVariableExpression(s string) bool {
	return len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`'
}

// translateVariableExpression rewrites the body of a variable expression
// into the evaluator language. ${NAME} becomes the identifier NAME outside
// string literals and a string concatenation inside them. The referenced
// names are returned in first-use order.
func translateVariableExpression(body string) (string, []string, error) {
	var (
		out   strings.Builder
		names []string
		seen  = map[string]bool{}
		quote byte
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(body):
			out.WriteByte(c)
			out.WriteByte(body[i+1])
			i++
			continue
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case c == '$' && i+1 < len(body) && body[i+1] == '{':
			end := strings.IndexByte(body[i+2:], '}')
			if end < 0 {
				return "", names, fmt.Errorf("unterminated variable reference at offset %d", i)
			}
			name := body[i+2 : i+2+end]
			if !isVariableName(name) {
				return "", names, fmt.Errorf("invalid variable name %q", name)
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			if quote != 0 {
				q := string(quote)
				out.WriteString(q + " + string(" + name + ") + " + q)
			} else {
				out.WriteString(name)
			}
			i += end + 2
			continue
		}
		out.WriteByte(c)
	}
	if quote != 0 {
		return "", names, fmt.Errorf("unterminated string literal")
	}
	return out.String(), names, nil
}

func isVariableName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// expressionEvaluator evaluates sublayer asset path expressions against a
// composed variable set.
type expressionEvaluator struct {
	evaluator Evaluator
	logger    EvaluatorLogger
}

// evaluateAssetPath returns the asset path authored as expr. Every variable
// the expression names is reported as a dependency, including on failure.
func (e expressionEvaluator) evaluateAssetPath(expr string, vars map[string]any, layer string) (string, []string, error) {
	if !IsVariableExpression(expr) {
		return expr, nil, nil
	}
	if e.evaluator == nil {
		return "", nil, ErrNoEvaluator
	}
	engine := evaluatorEngineName(e.evaluator)
	translated, names, err := translateVariableExpression(expr[1 : len(expr)-1])
	if err != nil {
		return "", names, wrapEvaluationError(engine, expr, layer, err)
	}
	for _, name := range names {
		if _, ok := vars[name]; !ok {
			return "", names, wrapEvaluationError(engine, expr, layer, fmt.Errorf("no value for expression variable %q", name))
		}
	}

	start := time.Now()
	value, evalErr := e.evaluator.Evaluate(ExpressionContext{Variables: vars, Layer: layer}, translated)
	evalErr = wrapEvaluationError(engine, expr, layer, evalErr)
	e.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:    engine,
		Expr:      expr,
		Layer:     layer,
		Variables: names,
		Duration:  time.Since(start),
		Err:       evalErr,
	})
	if evalErr != nil {
		return "", names, evalErr
	}
	s, ok := value.(string)
	if !ok {
		return "", names, wrapEvaluationError(engine, expr, layer, fmt.Errorf("expression produced %T, want string", value))
	}
	return s, names, nil
}

func sortedNames(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	return layering.SortedKeys(set)
}
