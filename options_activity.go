package layerstack

import (
	"context"

	"github.com/goliatone/go-layerstack/pkg/activity"
)

// WithActivityHooks attaches lifecycle hooks to the registry. Hooks are
// cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *registryConfig) {
		cfg.activityHooks = normalized
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (r *Registry) ActivityHooks() activity.Hooks {
	if r == nil {
		return nil
	}
	return cloneActivityHooks(r.hooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

func (r *Registry) emit(ctx context.Context, build func(activity.LayerStackEventInput) activity.Event, s *LayerStack, changes []string) {
	if !r.emitter.Enabled() {
		return
	}
	snap := s.current()
	input := activity.LayerStackEventInput{
		Identifier: s.id.String(),
		LayerCount: len(snap.layers),
		ErrorCount: len(snap.errors) + len(snap.relocations.errors),
		Changes:    changes,
	}
	if s.id.RootLayer != nil {
		input.RootLayer = s.id.RootLayer.Identifier()
	}
	if s.id.SessionLayer != nil {
		input.SessionLayer = s.id.SessionLayer.Identifier()
	}
	if err := r.emitter.Emit(ctx, build(input)); err != nil {
		r.log.Error(err, "activity hook failed", "stack", input.Identifier)
	}
}
