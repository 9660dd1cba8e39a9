package tool

// DefaultServerName is the server entry that MCP_URL and MCP_TOKEN configure.
const DefaultServerName = "default"

// MCPServerConfig describes one MCP server connection (stdio or HTTP).
type MCPServerConfig struct {
	Command  string            `json:"command,omitempty" mapstructure:"command"`
	Args     []string          `json:"args,omitempty" mapstructure:"args"`
	Env      map[string]string `json:"env,omitempty" mapstructure:"env"`
	URL      string            `json:"url,omitempty" mapstructure:"url"`
	Headers  map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	Timeout  int               `json:"timeout,omitempty" mapstructure:"timeout"` // seconds
	Disabled bool              `json:"disabled,omitempty" mapstructure:"disabled"`
}

// DefaultMCPServer is the local HTTP server used when none is configured.
func DefaultMCPServer() MCPServerConfig {
	return MCPServerConfig{
		URL:     "http://localhost:3000",
		Headers: map[string]string{"x-api-key": "123123"},
		Timeout: 60,
	}
}
