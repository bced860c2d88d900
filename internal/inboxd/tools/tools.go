// Package tools defines the fixed catalogue of capabilities the assistant
// may execute and the binder that resolves a selected tool into a call.
//
// A tool is described twice: once for the LLM (name, description, JSON
// Schema parameters, embedded in the classifier's tool list) and once for
// the runtime (an Action bound to provider handles and the caller's
// identity). The registry holds the descriptions for the process lifetime;
// actions are bound per request and discarded afterwards.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Result is the single normalised response contract. Every dispatch path —
// fast path, direct reply, tool execution, and every error kind — produces
// exactly this shape. Data is nil unless the action attached a structured
// payload.
type Result struct {
	Reply string `json:"reply"`
	Data  any    `json:"data"`
}

// Param describes one named parameter of a tool.
type Param struct {
	// Type is the JSON Schema type name ("string", "integer", "number",
	// "boolean", "array").
	Type string
	// Description tells the model what to extract into this parameter.
	Description string
	// Required marks the parameter as mandatory.
	Required bool
}

// Descriptor describes a single tool for the classifier's catalogue.
type Descriptor struct {
	// Name is the unique tool name, e.g. "check_emails_from_sender".
	Name string
	// Description is a one-sentence explanation shown to the model.
	Description string
	// Params maps parameter names to their specifications. Empty for
	// parameterless tools.
	Params map[string]Param
}

// Schema renders the descriptor's parameters as a JSON Schema object of
// type "object", the shape the chat-completions tools parameter expects.
// Parameterless tools render as an object schema with no properties.
func (d Descriptor) Schema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	var required []string
	for name, p := range d.Params {
		properties[name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Action is a callable capability with pre-bound context. Implementations
// return either a *Result, a map with "reply"/"data" keys, or a plain
// string; the binder normalises all three. Actions must not assume they are
// invoked more than once per dispatch.
type Action interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ActionFunc adapts an ordinary function to the Action interface.
type ActionFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke calls f.
func (f ActionFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Registry is the static tool catalogue. Populate it at startup before
// serving requests; it is read-only afterwards and safe for concurrent
// reads.
type Registry struct {
	order       []string
	descriptors map[string]Descriptor
	validators  map[string]*argumentValidator
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
		validators:  make(map[string]*argumentValidator),
	}
}

// Register adds a descriptor to the catalogue and compiles its parameter
// schema. It returns an error on duplicate names or an uncompilable schema,
// both of which indicate a programming error in the registration sequence.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tools: descriptor has empty name")
	}
	if _, dup := r.descriptors[d.Name]; dup {
		return fmt.Errorf("tools: duplicate tool registration: %s", d.Name)
	}
	v, err := compileValidator(d)
	if err != nil {
		return fmt.Errorf("tools: compile schema for %s: %w", d.Name, err)
	}
	r.order = append(r.order, d.Name)
	r.descriptors[d.Name] = d
	r.validators[d.Name] = v
	return nil
}

// MustRegister is Register for static initialisation paths where a failure
// is a bug.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Descriptors returns the catalogue in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// ValidateArguments checks args against the compiled parameter schema for
// name. An unregistered name reports no error here — unknown tools are the
// binder's concern, not the schema's.
func (r *Registry) ValidateArguments(name string, args map[string]any) error {
	v, ok := r.validators[name]
	if !ok {
		return nil
	}
	return v.validate(args)
}
