package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/golemcore/agentd/pkg/models"
)

// Registry holds the tools available to the agent. Registration
// validates the advertised parameter schema so a malformed tool is
// rejected at startup rather than at dispatch time.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. It fails on duplicate names, empty names, and
// parameter schemas that are not valid JSON Schema.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}

	def := t.Definition()
	if def.Parameters != nil {
		raw, err := json.Marshal(def.Parameters)
		if err != nil {
			return fmt.Errorf("tool %s: marshal parameter schema: %w", name, err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name+".json", strings.NewReader(string(raw))); err != nil {
			return fmt.Errorf("tool %s: invalid parameter schema: %w", name, err)
		}
		if _, err := compiler.Compile(name + ".json"); err != nil {
			return fmt.Errorf("tool %s: invalid parameter schema: %w", name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns a tool by name. Disabled tools are not returned.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !t.Enabled() {
		return nil, false
	}
	return t, true
}

// Names returns the enabled tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name, t := range r.tools {
		if !t.Enabled() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the schemas of all enabled tools, sorted by name.
func (r *Registry) Definitions() []models.ToolDefinition {
	names := r.Names()
	defs := make([]models.ToolDefinition, 0, len(names))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}
