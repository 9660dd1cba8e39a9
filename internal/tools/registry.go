package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// ErrUnknownTool is returned by Execute when no tool is registered under the
// requested sanitized name.
var ErrUnknownTool = errors.New("unknown tool")

// Handler runs one tool. name is always the original, caller-chosen tool
// name, never the sanitized one.
type Handler func(ctx context.Context, name string, input any) (schema.ToolOutput, error)

// record is one registered tool.
type record struct {
	sanitizedName string
	originalName  string
	description   string
	inputSchema   map[string]any
	handler       Handler
}

// Registry holds the tools the model may call and maps the model-visible
// sanitized names back to the original names.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*record // sanitized name → record
	names map[string]string  // sanitized name → original name
	order []string           // sanitized names in first-registration order
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*record),
		names: make(map[string]string),
	}
}

// Register adds a tool, replacing any tool registered under the same
// sanitized name. It never fails.
func (r *Registry) Register(name string, handler Handler, description string, inputSchema map[string]any) {
	sanitized := Sanitize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tools[sanitized]; ok {
		if prev.originalName != name {
			slog.Warn("Tool name collision, replacing earlier registration",
				"sanitized", sanitized, "previous", prev.originalName, "name", name)
		}
	} else {
		r.order = append(r.order, sanitized)
	}

	r.names[sanitized] = name
	r.tools[sanitized] = &record{
		sanitizedName: sanitized,
		originalName:  name,
		description:   description,
		inputSchema:   inputSchema,
		handler:       handler,
	}

	slog.Debug("Registering tool", "name", sanitized)
}

// Definitions returns a declaration for every registered tool, keyed by
// sanitized name, in registration order. It returns an empty slice when no
// tools are registered.
func (r *Registry) Definitions() []schema.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]schema.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		inputSchema := t.inputSchema
		if inputSchema == nil {
			inputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs = append(defs, schema.ToolDefinition{
			ToolSpec: schema.ToolSpec{
				Name:        t.sanitizedName,
				Description: t.description,
				InputSchema: schema.ToolInputSchema{JSON: inputSchema},
			},
		})
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// OriginalName returns the caller-chosen name for a sanitized name.
func (r *Registry) OriginalName(sanitized string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[sanitized]
	return name, ok
}

// Execute runs the tool registered under sanitizedName. Handler failures are
// returned as a result with error status; the only error Execute returns is
// ErrUnknownTool.
func (r *Registry) Execute(ctx context.Context, toolUseID, sanitizedName string, input any) (schema.ToolResult, error) {
	r.mu.RLock()
	t, ok := r.tools[sanitizedName]
	r.mu.RUnlock()

	if !ok {
		return schema.ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, sanitizedName)
	}

	slog.Info("Executing tool", "name", sanitizedName, "original", t.originalName)

	out, err := t.handler(ctx, t.originalName, input)
	if err != nil {
		return ErrorResult(toolUseID, err), nil
	}

	return schema.ToolResult{
		ToolUseID: toolUseID,
		Content:   []schema.ToolResultContent{{Text: OutputText(out)}},
		Status:    schema.ToolResultSuccess,
	}, nil
}

// Clear removes every tool and name mapping.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]*record)
	r.names = make(map[string]string)
	r.order = nil
}

// ErrorResult shapes err as an error-status tool result.
func ErrorResult(toolUseID string, err error) schema.ToolResult {
	return schema.ToolResult{
		ToolUseID: toolUseID,
		Content:   []schema.ToolResultContent{{Text: "Error executing tool: " + err.Error()}},
		Status:    schema.ToolResultError,
	}
}
