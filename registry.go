package layerstack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-layerstack/ar"
	"github.com/goliatone/go-layerstack/pkg/activity"
	"github.com/goliatone/go-layerstack/pkg/store"
	"github.com/goliatone/go-layerstack/sdf"
)

// Registry creates layer stacks and shares them between callers. A stack
// lives while at least one caller holds it; the last Release removes it, and
// a later FindOrCreate for the same Identifier computes a fresh one.
type Registry struct {
	composer *composer
	emitter  *activity.Emitter
	hooks    activity.Hooks
	log      logr.Logger

	mu     sync.Mutex
	stacks map[string]*LayerStack
	group  singleflight.Group
}

// NewRegistry builds a registry. Without options layers are read from an
// empty in-memory store and sublayer expressions use the expr engine.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg := applyOptions(opts)
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}
	if err := cfg.config.Validate(); err != nil {
		return nil, err
	}

	cache := cfg.cache
	if cache == nil {
		s := cfg.store
		if s == nil {
			s = store.NewMemoryStore()
		}
		cache = sdf.NewLayerCache(s)
	}
	resolver := cfg.resolver
	if resolver == nil {
		resolver = ar.NewDefaultResolver(cache.Store())
	}
	muted, err := NewMutedLayers(cfg.muted...)
	if err != nil {
		return nil, err
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		programs := cfg.programCache
		if programs == nil {
			programs = NewProgramCache()
		}
		if cfg.config.engine() == EngineJS && !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("layerstack: %s engine requires the js_eval build tag", EngineJS)
		}
		evaluator = newEvaluator(cfg.config.engine(), programs, cfg.functions)
	}
	evalLogger := cfg.evaluatorLogger
	if evalLogger == nil {
		evalLogger = noopEvaluatorLogger{}
	}

	return &Registry{
		composer: &composer{
			cfg:         cfg.config,
			resolver:    resolver,
			cache:       cache,
			muted:       muted,
			expressions: expressionEvaluator{evaluator: evaluator, logger: evalLogger},
			log:         cfg.logger,
		},
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{Enabled: len(cfg.activityHooks) > 0}),
		hooks:   cfg.activityHooks,
		log:     cfg.logger,
		stacks:  map[string]*LayerStack{},
	}, nil
}

// FindOrCreate returns the stack for id, computing it on first use. The
// caller holds one reference and must Release it. Concurrent calls for the
// same Identifier compute once and share the result.
func (r *Registry) FindOrCreate(ctx context.Context, id Identifier) (*LayerStack, error) {
	if !id.IsValid() {
		return nil, ErrNilRootLayer
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := id.Key()
	for {
		if s := r.acquire(key, nil); s != nil {
			return s, nil
		}
		// created is only set in the goroutine that ran the computation.
		var created *LayerStack
		v, err, _ := r.group.Do(key, func() (any, error) {
			r.mu.Lock()
			if s, ok := r.stacks[key]; ok {
				r.mu.Unlock()
				return s, nil
			}
			r.mu.Unlock()

			s := newLayerStack(r, id)
			s.compute(ctx)

			// Installed already holding the creator's reference so that a
			// concurrent Registry.Apply cannot release it to zero.
			r.mu.Lock()
			s.refs = 1
			r.stacks[key] = s
			r.mu.Unlock()
			created = s
			r.emit(ctx, activity.BuildLayerStackCreatedEvent, s, nil)
			return s, nil
		})
		if err != nil {
			return nil, err
		}
		if created != nil {
			return created, nil
		}
		if s := r.acquire(key, v.(*LayerStack)); s != nil {
			return s, nil
		}
		// Released by its other holders before we could take a reference.
	}
}

// acquire takes a reference on the stack registered under key. When want is
// non-nil the registered stack must be that one.
func (r *Registry) acquire(key string, want *LayerStack) *LayerStack {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stacks[key]
	if !ok || (want != nil && s != want) || s.expired.Load() {
		return nil
	}
	s.refs++
	return s
}

// Find returns the live stack for id without taking a reference.
func (r *Registry) Find(id Identifier) (*LayerStack, bool) {
	if !id.IsValid() {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stacks[id.Key()]
	return s, ok
}

func (r *Registry) retain(s *LayerStack) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.expired.Load() {
		return false
	}
	s.refs++
	return true
}

func (r *Registry) release(s *LayerStack) {
	r.mu.Lock()
	if s.expired.Load() || s.refs == 0 {
		r.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		r.mu.Unlock()
		return
	}
	key := s.id.Key()
	if r.stacks[key] == s {
		delete(r.stacks, key)
	}
	s.expired.Store(true)
	r.mu.Unlock()

	r.emit(context.Background(), activity.BuildLayerStackReleasedEvent, s, nil)
	s.destroy()
	r.log.V(1).Info("layer stack released", "stack", s.id.String())
}

// Len returns the number of live stacks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stacks)
}

// Stacks returns the live stacks in a stable order. No references are taken.
func (r *Registry) Stacks() []*LayerStack {
	r.mu.Lock()
	out := make([]*LayerStack, 0, len(r.stacks))
	for _, s := range r.stacks {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id.Key() < out[j].id.Key() })
	return out
}

// LayerCache returns the cache sublayers are opened through.
func (r *Registry) LayerCache() *sdf.LayerCache { return r.composer.cache }

func (r *Registry) Resolver() ar.Resolver { return r.composer.resolver }

// Config returns the policy values every stack is computed with.
func (r *Registry) Config() Config { return r.composer.cfg }

// OpenLayer resolves assetPath and opens the layer through the registry's
// cache. The configured file format target is added to the layer's
// arguments. The caller owns one reference on the returned layer.
func (r *Registry) OpenLayer(ctx context.Context, assetPath string, rc ar.Context) (*sdf.Layer, error) {
	path, args := sdf.SplitIdentifier(assetPath)
	identifier := r.composer.resolver.CreateIdentifier(ctx, path, "", rc)
	resolved, err := r.composer.resolver.Resolve(ctx, identifier, rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAssetResolution, assetPath, err)
	}
	if target := r.composer.cfg.FileFormatTarget; target != "" {
		args = args.Merge(sdf.FileFormatArguments{"target": target})
	}
	return r.composer.cache.FindOrOpen(ctx, resolved, args)
}

// Mute adds paths or patterns to the muted set. The returned change set
// should be applied to pick up the new set.
func (r *Registry) Mute(paths ...string) (*ChangeSet, error) {
	added, err := r.composer.muted.Add(paths...)
	if err != nil {
		return nil, err
	}
	changes := NewChangeSet()
	if len(added) > 0 {
		changes.AddGlobal(ChangeMutedLayers)
		r.log.V(1).Info("layers muted", "paths", added)
	}
	return changes, nil
}

// Unmute removes paths from the muted set.
func (r *Registry) Unmute(paths ...string) (*ChangeSet, error) {
	removed, err := r.composer.muted.Remove(paths...)
	if err != nil {
		return nil, err
	}
	changes := NewChangeSet()
	if len(removed) > 0 {
		changes.AddGlobal(ChangeMutedLayers)
		r.log.V(1).Info("layers unmuted", "paths", removed)
	}
	return changes, nil
}

// MutedLayerPaths returns the muted set in sorted order.
func (r *Registry) MutedLayerPaths() []string {
	return r.composer.muted.Paths()
}

// Apply applies changes to every live stack and returns the identifiers of
// the stacks that recomputed anything.
func (r *Registry) Apply(ctx context.Context, changes *ChangeSet, lifeboat *Lifeboat) []Identifier {
	if changes.IsEmpty() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var held []*LayerStack
	for _, s := range r.Stacks() {
		if s.Retain() {
			held = append(held, s)
		}
	}
	var changed []Identifier
	for _, s := range held {
		res := s.Apply(ctx, changes, lifeboat)
		if res.Any() {
			changed = append(changed, s.id)
			r.emit(ctx, activity.BuildLayerStackRecomputedEvent, s, res.Names())
		}
		s.Release()
	}
	return changed
}
