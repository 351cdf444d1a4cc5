package action

import (
	"context"
	"fmt"
	"sort"
)

// InvokeFunc performs one tool invocation against the device.
type InvokeFunc func(ctx context.Context, params map[string]any) (string, error)

// Registry binds catalog names to invoke functions. All validation happens
// at Register time; after construction the registry is read-only.
type Registry struct {
	bindings map[string]InvokeFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]InvokeFunc)}
}

// Register binds a catalog tool to its implementation. Names outside the
// catalog, duplicate bindings, and nil functions are construction errors.
func (r *Registry) Register(tool string, fn InvokeFunc) error {
	if !IsKnown(tool) {
		return fmt.Errorf("register %q: not in the tool catalog", tool)
	}
	if fn == nil {
		return fmt.Errorf("register %q: nil invoke func", tool)
	}
	if _, dup := r.bindings[tool]; dup {
		return fmt.Errorf("register %q: already bound", tool)
	}
	r.bindings[tool] = fn
	return nil
}

// Bound reports whether the tool has an implementation.
func (r *Registry) Bound(tool string) bool {
	_, ok := r.bindings[tool]
	return ok
}

// BoundNames returns the bound tool names, sorted.
func (r *Registry) BoundNames() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup returns the binding for a tool.
func (r *Registry) lookup(tool string) (InvokeFunc, bool) {
	fn, ok := r.bindings[tool]
	return fn, ok
}
