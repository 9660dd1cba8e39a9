package tools

import (
	"encoding/json"
	"fmt"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// OutputText flattens a handler result into the single text item fed back to
// the model. Non-text values are JSON-encoded.
func OutputText(out schema.ToolOutput) string {
	switch v := out.(type) {
	case schema.TextResult:
		return v.Text
	case *schema.TextResult:
		return v.Text
	case schema.StructuredResult:
		return structuredText(v)
	case *schema.StructuredResult:
		return structuredText(*v)
	case schema.RawValue:
		return rawText(v.Value)
	case *schema.RawValue:
		return rawText(v.Value)
	case nil:
		return ""
	}
	return rawText(out)
}

func structuredText(r schema.StructuredResult) string {
	if text, ok := r.FirstText(); ok {
		return text
	}
	return rawText(r.Content)
}

func rawText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
