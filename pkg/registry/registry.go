// Package registry holds the set of tools a server exposes and dispatches
// calls to them through their middleware chain and parameter schema.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcpforge/server/pkg/mcp"
	"github.com/mcpforge/server/pkg/middleware"
	"github.com/mcpforge/server/pkg/schema"
)

// Handler executes a tool's own logic. A well-behaved handler builds its
// return value through a respbuilder.Builder so the result already carries
// budget-aware insights/actions/truncation metadata; the dispatcher treats
// whatever it returns as final.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ToolDescriptor is the metadata a tool advertises over tools/list.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Tool is a registered, callable unit: its descriptor, optional parameter
// schema, optional middleware chain, and handler.
type Tool struct {
	Descriptor ToolDescriptor
	Schema     schema.Schema
	Chain      *middleware.Chain
	Handler    Handler
}

// AsMCPTool renders the descriptor as the wire Tool type.
func (t *Tool) AsMCPTool() mcp.Tool {
	return mcp.Tool{
		Name:        t.Descriptor.Name,
		Description: t.Descriptor.Description,
		InputSchema: t.Descriptor.InputSchema,
	}
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds tool to the registry. Registering a name that already
// exists is an error — tools are registered once at startup, and a silent
// overwrite would mask a naming collision between two tool packages.
func (r *Registry) Register(tool *Tool) error {
	if tool.Descriptor.Name == "" {
		return fmt.Errorf("registry: tool descriptor has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Descriptor.Name]; exists {
		return fmt.Errorf("registry: tool %q is already registered", tool.Descriptor.Name)
	}
	r.tools[tool.Descriptor.Name] = tool
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool's descriptor as a wire Tool, in no
// particular order.
func (r *Registry) List() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.AsMCPTool())
	}
	return out
}
