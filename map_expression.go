package layerstack

import (
	"sync"

	"github.com/goliatone/go-layerstack/sdf"
)

// Variable holds a MapFunction that a layer stack updates whenever its
// relocations are recomputed. Subscribers are notified after each change.
type Variable struct {
	mu          sync.RWMutex
	path        sdf.Path
	value       MapFunction
	version     uint64
	tracked     bool
	nextID      int
	subscribers map[int]func(MapFunction)
}

func newVariable(path sdf.Path, value MapFunction, tracked bool) *Variable {
	return &Variable{path: path, value: value, tracked: tracked}
}

// Path is the namespace path the variable was requested for.
func (v *Variable) Path() sdf.Path { return v.path }

// Value returns the current map function.
func (v *Variable) Value() MapFunction {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Version increments on every value change.
func (v *Variable) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// IsTracked reports whether the owning layer stack updates the variable.
func (v *Variable) IsTracked() bool { return v.tracked }

// Subscribe registers fn for value changes. The returned func unsubscribes.
func (v *Variable) Subscribe(fn func(MapFunction)) func() {
	if fn == nil {
		return func() {}
	}
	v.mu.Lock()
	if v.subscribers == nil {
		v.subscribers = map[int]func(MapFunction){}
	}
	id := v.nextID
	v.nextID++
	v.subscribers[id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.subscribers, id)
		v.mu.Unlock()
	}
}

// set stores value and notifies subscribers outside the lock. It reports
// whether the value changed.
func (v *Variable) set(value MapFunction) bool {
	v.mu.Lock()
	if v.value.Equal(value) {
		v.mu.Unlock()
		return false
	}
	v.value = value
	v.version++
	subscribers := make([]func(MapFunction), 0, len(v.subscribers))
	for _, fn := range v.subscribers {
		subscribers = append(subscribers, fn)
	}
	v.mu.Unlock()
	for _, fn := range subscribers {
		fn(value)
	}
	return true
}
