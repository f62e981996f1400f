package layerstack

import (
	"time"

	"github.com/go-logr/logr"
)

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine    string
	Expr      string
	Layer     string
	Variables []string
	Duration  time.Duration
	Err       error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// LogrEvaluatorLogger writes evaluation events to log at V(1).
func LogrEvaluatorLogger(log logr.Logger) EvaluatorLogger {
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		if event.Err != nil {
			log.Error(event.Err, "expression evaluation failed", "engine", event.Engine, "expr", event.Expr, "layer", event.Layer)
			return
		}
		log.V(1).Info("expression evaluated", "engine", event.Engine, "expr", event.Expr, "layer", event.Layer,
			"variables", event.Variables, "duration", event.Duration)
	})
}

// WithEvaluatorLogger attaches an evaluator logger to the registry.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *registryConfig) {
		if logger == nil {
			cfg.evaluatorLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evaluatorLogger = logger
	}
}
