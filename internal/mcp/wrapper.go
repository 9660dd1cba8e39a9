package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
	"github.com/crystaldolphin/mcpconverse/internal/tools"
)

// toolHandler adapts a server tool to a registry handler. The registry
// passes the original tool name, which is exactly what the server expects.
func toolHandler(c Client) tools.Handler {
	return func(ctx context.Context, name string, input any) (schema.ToolOutput, error) {
		args, err := toArguments(input)
		if err != nil {
			return nil, err
		}
		res, err := c.CallTool(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}

// toArguments coerces model-supplied input into a JSON object.
func toArguments(input any) (map[string]any, error) {
	switch v := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode tool input: %w", err)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("tool input must be a JSON object, got %s", raw)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// normalizeSchema turns an advertised input schema into a JSON object with
// the fields the inference service requires: type defaults to object,
// properties to an empty object and required to an empty list.
func normalizeSchema(raw any) map[string]any {
	var in map[string]any
	switch v := raw.(type) {
	case map[string]any:
		in = v
	case nil:
	default:
		if b, err := json.Marshal(v); err == nil {
			_ = json.Unmarshal(b, &in)
		}
	}

	out := make(map[string]any, len(in)+3)
	for k, v := range in {
		out[k] = v
	}
	if t, ok := out["type"].(string); !ok || t == "" {
		out["type"] = "object"
	}
	if _, ok := out["properties"].(map[string]any); !ok {
		out["properties"] = map[string]any{}
	}
	switch out["required"].(type) {
	case []any, []string:
	default:
		out["required"] = []any{}
	}
	return out
}
