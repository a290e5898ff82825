// Package tool holds the static tool catalog and the dispatcher that
// resolves model tool calls into handler invocations.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"ChainPilot/internal/assistant"
)

// Definition describes a tool to the model: name, description and a JSON
// Schema for its arguments.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Handler executes a tool call. The returned string is the payload fed back
// to the model; a non-nil error is converted into a structured failure
// payload by the dispatcher and never propagates further.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Catalog is the static mapping from tool name to tool.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register adds a tool. Empty names and duplicates are rejected.
func (c *Catalog) Register(t Tool) error {
	if t.Definition.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Definition.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[t.Definition.Name]; exists {
		return fmt.Errorf("tool %s is already registered", t.Definition.Name)
	}
	c.tools[t.Definition.Name] = t
	return nil
}

// MustRegister panics on registration failure; used for the static catalog
// assembled at startup.
func (c *Catalog) MustRegister(t Tool) {
	if err := c.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the tool registered under name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors renders the catalog as provider function definitions.
func (c *Catalog) Descriptors() []assistant.FunctionDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]assistant.FunctionDefinition, 0, len(c.tools))
	for _, t := range c.tools {
		defs = append(defs, assistant.FunctionDefinition{
			Name:        t.Definition.Name,
			Description: t.Definition.Description,
			Parameters:  t.Definition.Parameters,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
