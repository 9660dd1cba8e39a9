package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

const (
	clientName      = "mcpconverse"
	clientVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// ErrToolFailed wraps the text of a tool result the server flagged with isError.
var ErrToolFailed = errors.New("tool reported an error")

// ToolInfo is one tool advertised by a server.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Client is a connection to one MCP server.
type Client interface {
	Name() string
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]ToolInfo, error)
	CallTool(ctx context.Context, name string, args map[string]any) (schema.StructuredResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// newClient picks the transport from the server configuration.
func newClient(name string, cfg ServerConfig, notify notifyFunc) (Client, error) {
	switch cfg.Transport() {
	case "stdio":
		return newStdioClient(name, cfg, notify), nil
	case "http":
		return newHTTPClient(name, cfg), nil
	}
	return nil, errors.New("no command or url configured")
}

// toolError shapes an isError result as an error.
func toolError(res schema.StructuredResult) error {
	var parts []string
	for _, item := range res.Content {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	if len(parts) == 0 {
		return ErrToolFailed
	}
	return fmt.Errorf("%w: %s", ErrToolFailed, strings.Join(parts, "\n"))
}
