package layerstack

import (
	"github.com/go-logr/logr"

	"github.com/goliatone/go-layerstack/ar"
	"github.com/goliatone/go-layerstack/pkg/activity"
	"github.com/goliatone/go-layerstack/pkg/store"
	"github.com/goliatone/go-layerstack/sdf"
)

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	config          Config
	logger          logr.Logger
	store           store.Store
	cache           *sdf.LayerCache
	resolver        ar.Resolver
	muted           []string
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	evaluatorLogger EvaluatorLogger
	activityHooks   activity.Hooks
	// errs collects option failures reported by NewRegistry.
	errs []error
}

func applyOptions(opts []Option) registryConfig {
	cfg := registryConfig{
		config: DefaultConfig(),
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithConfig replaces the registry policy configuration.
func WithConfig(config Config) Option {
	return func(cfg *registryConfig) {
		cfg.config = config
	}
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger logr.Logger) Option {
	return func(cfg *registryConfig) {
		cfg.logger = logger
	}
}

// WithStore sets the document store layers are opened from. Ignored when
// WithLayerCache is also given.
func WithStore(s store.Store) Option {
	return func(cfg *registryConfig) {
		cfg.store = s
	}
}

// WithLayerCache shares an existing layer cache with the registry.
func WithLayerCache(cache *sdf.LayerCache) Option {
	return func(cfg *registryConfig) {
		cfg.cache = cache
	}
}

// WithResolver replaces the default asset resolver.
func WithResolver(resolver ar.Resolver) Option {
	return func(cfg *registryConfig) {
		cfg.resolver = resolver
	}
}

// WithMutedLayers mutes paths or patterns from the start.
func WithMutedLayers(paths ...string) Option {
	return func(cfg *registryConfig) {
		cfg.muted = append(cfg.muted, paths...)
	}
}

// WithEvaluator replaces the evaluator selected by Config.ExpressionEngine.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *registryConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers the cache compiled expressions are kept in.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *registryConfig) {
		cfg.programCache = cache
	}
}
