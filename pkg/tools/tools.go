// Package tools maps tool names to the implementations the model may invoke.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports a tool name with no registered implementation.
var ErrNotFound = errors.New("tool not found")

// Tool is a capability the model can request by name.
type Tool interface {
	// Spec describes the tool to the model.
	Spec() Spec
	// Invoke runs the tool. The result must encode to a JSON object.
	Invoke(ctx context.Context, input string) (any, error)
}

// Registry is a static name-to-tool mapping built once at startup.
type Registry struct {
	registry map[string]Tool
	specs    []Spec
}

// NewRegistry builds a registry from tools, rejecting empty or duplicate names.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{registry: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("nil tool")
		}
		spec := t.Spec()
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, errors.New("tool name is required")
		}
		if _, dup := r.registry[name]; dup {
			return nil, fmt.Errorf("duplicate tool: %s", name)
		}
		r.registry[name] = t
		r.specs = append(r.specs, spec)
	}
	return r, nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, error) {
	t, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// Describe returns the specs of every tool in registration order.
func (r *Registry) Describe() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}
