// Package config defines the configuration schema for mcpconverse.
//
// JSON keys use camelCase. Files are read through viper, so keys are matched
// case-insensitively; MCP server entries are re-read verbatim because their
// env and header maps are case-sensitive.
package config

import (
	"github.com/crystaldolphin/mcpconverse/internal/config/agent"
	"github.com/crystaldolphin/mcpconverse/internal/config/provider"
	"github.com/crystaldolphin/mcpconverse/internal/config/tool"
)

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text or json
}

// Config is the root configuration object.
type Config struct {
	Agent     agent.AgentConfig        `json:"agent" mapstructure:"agent"`
	Providers provider.ProvidersConfig `json:"providers" mapstructure:"providers"`
	Tools     tool.ToolsConfig         `json:"tools" mapstructure:"tools"`
	Log       LogConfig                `json:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agent:     agent.DefaultAgentConfig(),
		Providers: provider.DefaultProvidersConfig(),
		Tools:     tool.DefaultToolConfigs(),
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// ProviderByName returns a pointer to the ProviderConfig for the given registry
// name. Returns nil for bedrock and unknown names.
func (c *Config) ProviderByName(name string) *provider.ProviderConfig {
	return c.Providers.ByName(name)
}
