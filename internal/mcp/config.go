package mcp

import "time"

// ServerConfig holds the connection parameters for a single MCP server.
type ServerConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	URL     string
	Headers map[string]string
	Timeout time.Duration // per request; zero means no deadline beyond the caller's
}

// Transport names how a server is reached.
func (c ServerConfig) Transport() string {
	switch {
	case c.Command != "":
		return "stdio"
	case c.URL != "":
		return "http"
	}
	return ""
}
