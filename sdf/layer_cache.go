package sdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-layerstack/pkg/store"
)

var ErrLayerNotFound = errors.New("sdf: layer not found")

// LayerCache opens layers from a store and keeps exactly one live handle per
// identifier and format arguments. Handles are dropped from the cache when
// their reference count reaches zero.
type LayerCache struct {
	store  store.Store
	mu     sync.Mutex
	layers map[string]*Layer
	loads  singleflight.Group
	opens  atomic.Int64
}

// NewLayerCache opens layers from s.
func NewLayerCache(s store.Store) *LayerCache {
	return &LayerCache{
		store:  s,
		layers: map[string]*Layer{},
	}
}

// Store returns the backing document store.
func (c *LayerCache) Store() store.Store { return c.store }

// FindOrOpen returns a retained handle for identifier. Format arguments
// embedded in identifier are merged with args; explicit args win. The caller
// owns the returned reference and must Release it.
func (c *LayerCache) FindOrOpen(ctx context.Context, identifier string, args FileFormatArguments) (*Layer, error) {
	assetPath, embedded := SplitIdentifier(identifier)
	if assetPath == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrLayerNotFound)
	}
	merged := embedded.Merge(args)
	key := CreateIdentifier(assetPath, merged)

	for {
		if l, ok := c.Find(key); ok {
			return l, nil
		}
		if IsAnonymousIdentifier(assetPath) {
			return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, key)
		}
		if c.store == nil {
			return nil, fmt.Errorf("%w: no store configured for %s", ErrLayerNotFound, key)
		}

		v, err, _ := c.loads.Do(key, func() (any, error) {
			doc, _, ok, err := c.store.Load(ctx, assetPath)
			if err != nil {
				return nil, fmt.Errorf("sdf: open %s: %w", key, err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, key)
			}
			c.opens.Add(1)
			l := newLayer(assetPath, merged, doc)
			l.cache = c
			return l, nil
		})
		if err != nil {
			return nil, err
		}
		loaded := v.(*Layer)

		c.mu.Lock()
		if existing, ok := c.layers[key]; ok {
			existing.refs.Add(1)
			c.mu.Unlock()
			return existing, nil
		}
		if loaded.Expired() {
			// A concurrent opener installed and released this handle already.
			c.mu.Unlock()
			continue
		}
		c.layers[key] = loaded
		loaded.refs.Add(1)
		c.mu.Unlock()
		return loaded, nil
	}
}

// Find returns a retained handle for an already-open layer.
func (c *LayerCache) Find(identifier string) (*Layer, bool) {
	assetPath, args := SplitIdentifier(identifier)
	key := CreateIdentifier(assetPath, args)
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.layers[key]
	if !ok {
		return nil, false
	}
	l.refs.Add(1)
	return l, true
}

// CreateAnonymous returns a retained, empty, storage-less layer whose
// identifier is "anon:<uuid>:<tag>".
func (c *LayerCache) CreateAnonymous(tag string) *Layer {
	l := newLayer(AnonymousPrefix+uuid.NewString()+":"+tag, nil, store.Document{})
	l.cache = c
	c.mu.Lock()
	c.layers[l.Identifier()] = l
	l.refs.Add(1)
	c.mu.Unlock()
	return l
}

// CreateNew saves doc under identifier and opens it.
func (c *LayerCache) CreateNew(ctx context.Context, identifier string, doc store.Document) (*Layer, error) {
	if c.store == nil {
		return nil, fmt.Errorf("sdf: no store configured for %s", identifier)
	}
	if _, err := c.store.Save(ctx, identifier, doc, store.Meta{}); err != nil {
		return nil, err
	}
	return c.FindOrOpen(ctx, identifier, nil)
}

// Save writes the current content of l back to the store.
func (c *LayerCache) Save(ctx context.Context, l *Layer) error {
	if l.IsAnonymous() {
		return fmt.Errorf("sdf: cannot save anonymous layer %s", l.Identifier())
	}
	if c.store == nil {
		return fmt.Errorf("sdf: no store configured for %s", l.Identifier())
	}
	_, err := c.store.Save(ctx, l.AssetPath(), l.Document(), store.Meta{})
	return err
}

// Len returns the number of live layers.
func (c *LayerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layers)
}

// Opens returns how many documents have been read from the store.
func (c *LayerCache) Opens() int64 { return c.opens.Load() }

func (c *LayerCache) release(l *Layer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l.refs.Add(-1) != 0 {
		return
	}
	key := l.Identifier()
	if c.layers[key] == l {
		delete(c.layers, key)
	}
	l.expired.Store(true)
}
