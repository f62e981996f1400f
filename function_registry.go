package layerstack

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-layerstack/layering"
)

// Function is a helper callable from sublayer path expressions, for example
// shotdir(${SHOT}) returning the directory of a shot. It should return a
// string or a value the expression can concatenate into a path.
type Function func(args ...any) (any, error)

// reservedFunctionNames collide with literals or helpers every engine
// already binds.
var reservedFunctionNames = map[string]struct{}{
	"string": {}, "true": {}, "false": {}, "nil": {}, "null": {}, "in": {},
}

// FunctionRegistry holds the helpers bound into every expression engine.
// Names are matched case-insensitively and bound in lower case, so
// "shotDir" is called as shotdir(...).
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry returns a registry with no path functions.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register binds fn under name. Names must be identifiers, must not be
// reserved and must not already be taken.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("layerstack: path function %q is nil", name)
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if !isFunctionName(key) {
		return fmt.Errorf("layerstack: invalid path function name %q", name)
	}
	if _, reserved := reservedFunctionNames[key]; reserved {
		return fmt.Errorf("layerstack: path function name %q is reserved", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("layerstack: path function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a copy that later registrations on r do not affect.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := layering.Clone(r.functions)
	if clone == nil {
		clone = map[string]Function{}
	}
	return &FunctionRegistry{functions: clone}
}

// Call runs the helper bound to name. Errors surface as expression errors on
// the sublayer that used it.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("layerstack: no path functions registered")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("layerstack: path function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the bound names in sorted order, which keeps compiled
// environments stable between calls.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return layering.SortedKeys(r.functions)
}

func isFunctionName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

// WithFunctionRegistry binds the functions in registry into sublayer path
// expressions. Later changes to registry are not seen.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *registryConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction binds a single path function. An invalid or duplicate
// name makes NewRegistry fail.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *registryConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}
