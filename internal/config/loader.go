package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/crystaldolphin/mcpconverse/internal/config/tool"
)

// Environment variables that override file values.
const (
	EnvModelID      = "BEDROCK_MODEL_ID"
	EnvSystemPrompt = "BEDROCK_SYSTEM_PROMPT"
	EnvRegion       = "AWS_REGION"
	EnvMCPURL       = "MCP_URL"
	EnvMCPToken     = "MCP_TOKEN"
	EnvLogLevel     = "MCPCONVERSE_LOG_LEVEL"
)

// ConfigPath returns the default configuration file path: ~/.mcpconverse/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// DataDir returns the mcpconverse data directory: ~/.mcpconverse.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mcpconverse"
	}
	return filepath.Join(home, ".mcpconverse")
}

// Load reads and parses the config file at path, then applies .env and
// environment overrides. If path is empty, ConfigPath() is used.
// A missing file yields defaults; on parse failure it prints a warning and
// falls back to defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Variables already in the environment win over .env entries.
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigType("json")
	bindEnv(v)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
			fmt.Println("Using default configuration.")
			data = nil
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if data != nil {
		servers, err := decodeMCPServers(data)
		if err != nil {
			return nil, fmt.Errorf("decode mcpServers in %s: %w", path, err)
		}
		if servers != nil {
			cfg.Tools.MCPServers = servers
		}
	}
	applyMCPEnv(v, &cfg)

	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("agent.model", EnvModelID)
	_ = v.BindEnv("agent.systemPrompt", EnvSystemPrompt)
	_ = v.BindEnv("providers.bedrock.region", EnvRegion)
	_ = v.BindEnv("log.level", EnvLogLevel)
	_ = v.BindEnv("mcp.url", EnvMCPURL)
	_ = v.BindEnv("mcp.token", EnvMCPToken)
}

// decodeMCPServers re-reads tools.mcpServers with encoding/json, keeping the
// case of server names, env vars and headers. It returns nil when the file
// has no mcpServers entry.
func decodeMCPServers(data []byte) (map[string]tool.MCPServerConfig, error) {
	var raw struct {
		Tools struct {
			MCPServers map[string]tool.MCPServerConfig `json:"mcpServers"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw.Tools.MCPServers, nil
}

// applyMCPEnv points the default server at MCP_URL and authenticates it with
// MCP_TOKEN when either is set.
func applyMCPEnv(v *viper.Viper, cfg *Config) {
	url := v.GetString("mcp.url")
	token := v.GetString("mcp.token")
	if url == "" && token == "" {
		return
	}

	if cfg.Tools.MCPServers == nil {
		cfg.Tools.MCPServers = map[string]tool.MCPServerConfig{}
	}
	srv, ok := cfg.Tools.MCPServers[tool.DefaultServerName]
	if !ok {
		srv = tool.DefaultMCPServer()
	}
	if url != "" {
		srv.URL = url
		srv.Command = ""
	}
	if token != "" {
		headers := make(map[string]string, len(srv.Headers)+1)
		maps.Copy(headers, srv.Headers)
		headers["x-api-key"] = token
		srv.Headers = headers
	}
	cfg.Tools.MCPServers[tool.DefaultServerName] = srv
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// Append a trailing newline for POSIX compliance.
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
