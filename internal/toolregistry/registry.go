package toolregistry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry holds registered tools. It is built up during startup and
// treated as immutable afterward (§5 "the Tool Registry is immutable
// after startup"); Register/Unregister remain available for tests and
// for a startup sequence that registers tools incrementally.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register compiles the tool's parameter schema and adds it to the
// registry, replacing any existing tool of the same name.
func (r *Registry) Register(tool Tool) error {
	compiled, err := compileSchema(tool.Name, tool.Schema)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := tool
	r.tools[tool.Name] = &t
	r.schemas[tool.Name] = compiled
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
}

// Get returns a tool definition by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools, e.g. for advertising to an LLM
// provider as callable functions.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Validate checks params against the named tool's compiled schema,
// returning *ValidationError on a schema mismatch or unknown tool name
// (§4.4 step 2).
func (r *Registry) Validate(name string, params json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return &ValidationError{ToolName: name, Reason: "tool not found"}
	}
	if schema == nil {
		return nil
	}
	var instance any
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return &ValidationError{ToolName: name, Reason: "parameters are not valid JSON: " + err.Error()}
	}
	if err := schema.Validate(instance); err != nil {
		return &ValidationError{ToolName: name, Reason: err.Error()}
	}
	return nil
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("toolregistry: tool %q has invalid schema JSON: %w", name, err)
	}
	resourceURL := "mem://toolregistry/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("toolregistry: tool %q schema rejected: %w", name, err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("toolregistry: tool %q schema did not compile: %w", name, err)
	}
	return schema, nil
}
