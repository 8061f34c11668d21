package tool

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"deep-search-wiser/internal/llm"
)

// argumentsSchema is the parameter schema every tool advertises.
var argumentsSchema = func() json.RawMessage {
	r := &jsonschema.Reflector{RequiredFromJSONSchemaTags: true, DoNotReference: true, Anonymous: true}
	s := r.Reflect(&Arguments{})
	s.Version = ""
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return b
}()

// Registry holds the tools available to the agent, in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Tool names must be unique.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return t, nil
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions returns tool definitions for LLM requests.
func (r *Registry) Definitions() []llm.ToolDefinition {
	tools := r.List()
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  argumentsSchema,
		})
	}
	return defs
}

// NewSearchRegistry registers the fixed, ordered tool set: search, negative
// filter, summarizer.
func NewSearchRegistry(search *WebSearchTool, filter *NegativeFilterTool, summarize *SummarizeTool) (*Registry, error) {
	r := NewRegistry()
	for _, t := range []Tool{search, filter, summarize} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
