package llmutils

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Truncate shortens a string to at most n characters, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(s, ""))
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ToolHint generates a short hint string for a list of tool calls, e.g. `get_weather("London")`.
func ToolHint(uses []schema.ToolUse) string {
	parts := make([]string, 0, len(uses))
	for _, tu := range uses {
		firstVal := firstStringArg(tu.Input)
		if firstVal == "" {
			parts = append(parts, tu.Name)
			continue
		}
		if len(firstVal) > 40 {
			firstVal = firstVal[:40] + "…"
		}
		parts = append(parts, fmt.Sprintf("%s(%q)", tu.Name, firstVal))
	}
	return strings.Join(parts, ", ")
}

// firstStringArg returns the string value of the alphabetically first key
// holding one.
func firstStringArg(input any) string {
	args, ok := input.(map[string]any)
	if !ok {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := args[k].(string); ok {
			return s
		}
	}
	return ""
}
