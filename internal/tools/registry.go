// ABOUTME: Tool registry mapping names to descriptors and handlers.
// ABOUTME: Preserves registration order and pre-resolves input schemas.

package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrUnknownTool indicates a call for a name no tool is registered under.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateTool indicates a second registration under the same name.
	ErrDuplicateTool = errors.New("tool already registered")
)

// Handler executes a tool call with normalized, schema-valid arguments.
type Handler func(ctx context.Context, args map[string]any) (*Result, error)

// Tool describes a callable tool: its name, human-readable description,
// JSON Schema for arguments, and the handler that executes it.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     Handler
}

type entry struct {
	tool     Tool
	resolved *jsonschema.Resolved
}

// Registry holds the registered tools. Registration order is preserved so
// listings are stable across calls.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool to the registry. The input schema is resolved once
// here so dispatch-time validation is a lookup, not a compile.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return errors.New("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %q has no handler", tool.Name)
	}

	var resolved *jsonschema.Resolved
	if tool.InputSchema != nil {
		var err error
		resolved, err = tool.InputSchema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolving schema for tool %q: %w", tool.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	r.entries[tool.Name] = &entry{tool: tool, resolved: resolved}
	r.order = append(r.order, tool.Name)
	return nil
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool)
	}
	return out
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return e.tool, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) resolvedSchema(name string) *jsonschema.Resolved {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.resolved
	}
	return nil
}
