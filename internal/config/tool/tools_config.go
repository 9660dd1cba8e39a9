package tool

// ToolsConfig groups all tool-level settings.
type ToolsConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers" mapstructure:"mcpServers"`
	// LivenessProbe is a cron spec (e.g. "@every 30s"); empty disables it.
	LivenessProbe     string `json:"livenessProbe,omitempty" mapstructure:"livenessProbe"`
	ParallelToolCalls bool   `json:"parallelToolCalls" mapstructure:"parallelToolCalls"`
	ToolTimeout       int    `json:"toolTimeout" mapstructure:"toolTimeout"` // seconds; 0 disables
}

func DefaultToolConfigs() ToolsConfig {
	return ToolsConfig{
		MCPServers:  map[string]MCPServerConfig{DefaultServerName: DefaultMCPServer()},
		ToolTimeout: 120,
	}
}
