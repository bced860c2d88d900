package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// argumentValidator wraps a compiled JSON Schema for one tool's parameters.
type argumentValidator struct {
	schema *jsonschema.Schema
}

// compileValidator compiles the descriptor's parameter schema once, at
// registration time, so per-request validation is a pure in-memory check.
func compileValidator(d Descriptor) (*argumentValidator, error) {
	raw, err := json.Marshal(d.Schema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	url := "inboxd://tools/" + d.Name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return &argumentValidator{schema: schema}, nil
}

// validate checks a decoded argument mapping against the schema. A nil map
// validates as an empty object so parameterless tools accept absent
// arguments.
func (v *argumentValidator) validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	// The compiled schema validates values in encoding/json's generic
	// representation. Arguments arrive that way from the classifier, but a
	// round trip makes validation safe for hand-built maps in tests too.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments not representable as JSON: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return v.schema.Validate(decoded)
}
