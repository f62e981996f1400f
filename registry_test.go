package layerstack

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-layerstack/ar"
	"github.com/goliatone/go-layerstack/pkg/activity"
	"github.com/goliatone/go-layerstack/pkg/store"
)

func TestRegistryFindOrCreateSharesStacks(t *testing.T) {
	f := newFixture(t, map[string]store.Document{
		"/root.yaml": {SubLayers: []string{"./a.yaml"}},
		"/a.yaml":    {},
	})
	root := f.open("/root.yaml")
	id := NewIdentifier(root, nil, ar.Context{})

	const workers = 16
	stacks := make([]*LayerStack, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.registry.FindOrCreate(context.Background(), id)
			if err != nil {
				t.Errorf("find or create: %v", err)
				return
			}
			stacks[i] = s
		}(i)
	}
	wg.Wait()

	for i, s := range stacks {
		if s != stacks[0] {
			t.Fatalf("worker %d received a different stack", i)
		}
	}
	if got := stacks[0].RefCount(); got != workers {
		t.Fatalf("expected %d references, got %d", workers, got)
	}
	if f.store.Loads("/a.yaml") != 1 {
		t.Fatalf("expected one computation, a loaded %d times", f.store.Loads("/a.yaml"))
	}
	if verbs := f.capture.Verbs(); len(verbs) != 1 || verbs[0] != activity.VerbLayerStackCreated {
		t.Fatalf("expected a single created event, got %v", verbs)
	}

	for _, s := range stacks {
		s.Release()
	}
	if !stacks[0].Expired() || f.registry.Len() != 0 {
		t.Fatalf("expected stack released, expired=%v len=%d", stacks[0].Expired(), f.registry.Len())
	}
	if _, ok := f.registry.Find(id); ok {
		t.Fatalf("expected released stack to be gone")
	}
	if stacks[0].Retain() {
		t.Fatalf("expected retain on an expired stack to fail")
	}
	if len(stacks[0].Layers()) != 0 || stacks[0].State() != StateUninitialized {
		t.Fatalf("expected released stack to drop its layers")
	}
}

func TestRegistryApplyDuringCreationKeepsStack(t *testing.T) {
	var registry *Registry
	applied := false
	hook := activity.HookFunc(func(ctx context.Context, event activity.Event) error {
		if event.Verb != activity.VerbLayerStackCreated || applied {
			return nil
		}
		applied = true
		registry.Apply(ctx, NewChangeSet().AddGlobal(ChangeMutedLayers), nil)
		return nil
	})
	f := newFixture(t, map[string]store.Document{
		"/root.yaml": {SubLayers: []string{"./a.yaml"}},
		"/a.yaml":    {},
	}, WithActivityHooks(activity.Hooks{hook}))
	registry = f.registry
	root := f.open("/root.yaml")

	s, err := f.registry.FindOrCreate(context.Background(), NewIdentifier(root, nil, ar.Context{}))
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	defer s.Release()
	if !applied {
		t.Fatalf("expected apply to run while the stack was being created")
	}
	if s.Expired() || s.RefCount() != 1 || f.registry.Len() != 1 {
		t.Fatalf("expected live stack, expired=%v refs=%d len=%d", s.Expired(), s.RefCount(), f.registry.Len())
	}
	if f.store.Loads("/a.yaml") != 1 {
		t.Fatalf("expected a single computation, a loaded %d times", f.store.Loads("/a.yaml"))
	}
}

func TestRegistryRecomputesAfterRelease(t *testing.T) {
	f := newFixture(t, map[string]store.Document{
		"/root.yaml": {SubLayers: []string{"./a.yaml"}},
		"/a.yaml":    {},
	})
	root := f.open("/root.yaml")
	id := NewIdentifier(root, nil, ar.Context{})

	first, err := f.registry.FindOrCreate(context.Background(), id)
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	a := first.Layers()[1]
	lifeboat := NewLifeboat()
	lifeboat.RetainLayerStack(first)
	first.Release()
	if first.Expired() {
		t.Fatalf("expected lifeboat to keep the stack alive")
	}

	lifeboat.Release()
	if !first.Expired() || !a.Expired() {
		t.Fatalf("expected stack and its sublayer released")
	}

	second, err := f.registry.FindOrCreate(context.Background(), id)
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	defer second.Release()
	if second == first {
		t.Fatalf("expected a fresh stack after release")
	}
	if f.store.Loads("/a.yaml") != 2 {
		t.Fatalf("expected a to be read again, got %d", f.store.Loads("/a.yaml"))
	}
	want := []string{activity.VerbLayerStackCreated, activity.VerbLayerStackReleased, activity.VerbLayerStackCreated}
	if got := f.capture.Verbs(); len(got) != len(want) || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("want verbs %v, got %v", want, got)
	}
}

func TestRegistryDistinguishesIdentifiers(t *testing.T) {
	f := newFixture(t, map[string]store.Document{
		"/root.yaml":    {},
		"/session.yaml": {},
	})
	root, session := f.open("/root.yaml"), f.open("/session.yaml")

	plain := f.stack(root, nil)
	withSession := f.stack(root, session)
	withSearch := f.stack(root, nil, "lib")
	again := f.stack(root, nil)

	if plain == withSession || plain == withSearch || withSession == withSearch {
		t.Fatalf("expected distinct stacks per identifier")
	}
	if again != plain {
		t.Fatalf("expected equal identifiers to share a stack")
	}
	if f.registry.Len() != 3 || len(f.registry.Stacks()) != 3 {
		t.Fatalf("expected three live stacks, got %d", f.registry.Len())
	}
}

func TestRegistryRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.registry.FindOrCreate(context.Background(), Identifier{}); !errors.Is(err, ErrNilRootLayer) {
		t.Fatalf("expected nil root error, got %v", err)
	}
	if _, err := NewRegistry(WithConfig(Config{ExpressionEngine: "lua"})); err == nil {
		t.Fatalf("expected unknown engine error")
	}
	if _, err := NewRegistry(WithCustomFunction("string", func(...any) (any, error) { return "", nil })); err == nil {
		t.Fatalf("expected reserved function name error")
	}
	if _, err := NewRegistry(WithMutedLayers("/bad[")); err == nil {
		t.Fatalf("expected invalid muted pattern error")
	}
	if _, err := f.registry.OpenLayer(context.Background(), "/missing.yaml", ar.Context{}); !errors.Is(err, ErrAssetResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestRegistryOpenLayerAppliesFileFormatTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FileFormatTarget = "usd"
	f := newFixture(t, map[string]store.Document{
		"/root.yaml": {SubLayers: []string{"./a.yaml"}},
		"/a.yaml":    {},
	}, WithConfig(cfg))
	root := f.open("/root.yaml")
	if root.FileFormatArguments()["target"] != "usd" {
		t.Fatalf("expected target argument, got %v", root.FileFormatArguments())
	}
	s := f.stack(root, nil)
	if a := s.Layers()[1]; a.FileFormatArguments()["target"] != "usd" {
		t.Fatalf("expected sublayer to inherit the target, got %v", a.FileFormatArguments())
	}
}

func TestRegistryCustomFunctions(t *testing.T) {
	f := newFixture(t, map[string]store.Document{
		"/root.yaml":          {SubLayers: []string{"`shotdir(\"s010\") + \"/fx.yaml\"`"}},
		"/shots/s010/fx.yaml": {},
	}, WithCustomFunction("shotdir", func(args ...any) (any, error) {
		return "./shots/" + args[0].(string), nil
	}))
	s := f.stack(f.open("/root.yaml"), nil)
	if got := identifiers(s.Layers()); len(got) != 2 || got[1] != "/shots/s010/fx.yaml" {
		t.Fatalf("unexpected layers %v (errors %v)", got, s.LocalErrors())
	}
}
