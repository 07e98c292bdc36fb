package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wikigate/wikigate/mcp"
)

// Handler is the function signature used to handle a tool invocation.
type Handler func(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error)

// Tool pairs a wire descriptor with its handler.
type Tool struct {
	Descriptor mcp.Tool
	Handler    Handler
}

// Registry is the set of tools one gateway deployment exposes. Each
// deployment configuration supplies its own descriptor + handler pairs; the
// dispatcher is parameterized by a Registry instead of hard-coding a tool
// set. Alias resolution is a pure table lookup, never inferred.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	tools   map[string]Tool
	aliases map[string]string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		aliases: make(map[string]string),
	}
}

// Register adds a tool under its descriptor name.
func (r *Registry) Register(t Tool) error {
	name := t.Descriptor.Name
	if name == "" {
		return fmt.Errorf("tool descriptor has no name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	if _, exists := r.aliases[name]; exists {
		return fmt.Errorf("tool %q conflicts with a registered alias", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Alias maps a historical tool name to a canonical registered one.
func (r *Registry) Alias(alias, canonical string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[alias]; exists {
		return fmt.Errorf("alias %q shadows a registered tool", alias)
	}
	if prev, exists := r.aliases[alias]; exists && prev != canonical {
		return fmt.Errorf("alias %q already maps to %q", alias, prev)
	}
	if _, exists := r.tools[canonical]; !exists {
		return fmt.Errorf("alias %q targets unregistered tool %q", alias, canonical)
	}
	r.aliases[alias] = canonical
	return nil
}

// Resolve looks up a tool by name or historical alias.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tools[name]; ok {
		return t, true
	}
	if canonical, ok := r.aliases[name]; ok {
		t, ok := r.tools[canonical]
		return t, ok
	}
	return Tool{}, false
}

// Descriptors returns the tool descriptors in registration order. Aliases are
// not enumerated; they exist only for call-time resolution.
func (r *Registry) Descriptors() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor)
	}
	return out
}
