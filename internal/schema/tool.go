package schema

// ToolInputSchema wraps a JSON schema object the way the inference service
// expects it.
type ToolInputSchema struct {
	JSON map[string]any `json:"json"`
}

// ToolSpec declares one callable tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

// ToolDefinition is the declaration envelope sent in ToolConfig.Tools.
type ToolDefinition struct {
	ToolSpec ToolSpec `json:"toolSpec"`
}

// ToolOutput is the closed set of values a tool handler may return:
// TextResult, StructuredResult or RawValue.
type ToolOutput interface {
	isToolOutput()
}

// TextResult is a plain text tool result.
type TextResult struct {
	Text string
}

// ContentItem is one typed item of a structured tool result, e.g. an MCP
// content block. Text is empty for non-textual items.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// StructuredResult is a list of typed content items.
type StructuredResult struct {
	Content []ContentItem
}

// RawValue is an arbitrary value; non-string values are JSON-encoded.
type RawValue struct {
	Value any
}

func (TextResult) isToolOutput()       {}
func (StructuredResult) isToolOutput() {}
func (RawValue) isToolOutput()         {}

// FirstText returns the first item carrying a textual payload.
func (r StructuredResult) FirstText() (string, bool) {
	for _, item := range r.Content {
		if item.Type == "text" {
			return item.Text, true
		}
	}
	return "", false
}
