package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpconverse/internal/config"
	"github.com/crystaldolphin/mcpconverse/internal/mcp"
	"github.com/crystaldolphin/mcpconverse/internal/providers"
)

var statusPing bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mcpconverse status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusPing, "ping", false, "Connect to each MCP server and report reachability")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfgPath := resolvedConfigPath()

	fmt.Fprintf(out, "%s mcpconverse Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Fprintf(out, "Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "  (could not load config: %v)\n", err)
		return nil
	}

	match := cfg.MatchProvider("")
	label := match.Name
	if spec := providers.FindByName(match.Name); spec != nil {
		label = spec.Label()
	}
	fmt.Fprintf(out, "Model:     %s\n", cfg.Agent.Model)
	fmt.Fprintf(out, "Provider:  %s\n\n", label)

	fmt.Fprintln(out, "Providers:")
	for _, spec := range providers.PROVIDERS {
		if spec.AmbientAuth {
			fmt.Fprintf(out, "  %-20s ✓ (AWS credentials, region %s)\n", spec.Label(), cfg.Providers.Bedrock.Region)
			continue
		}
		p := cfg.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		switch {
		case spec.IsLocal:
			if p.APIBase != "" {
				fmt.Fprintf(out, "  %-20s ✓ %s\n", spec.Label(), p.APIBase)
			} else {
				fmt.Fprintf(out, "  %-20s (not set)\n", spec.Label())
			}
		case p.APIKey != "":
			fmt.Fprintf(out, "  %-20s ✓\n", spec.Label())
		default:
			fmt.Fprintf(out, "  %-20s (not set)\n", spec.Label())
		}
	}

	fmt.Fprintln(out, "\nMCP servers:")
	names := make([]string, 0, len(cfg.Tools.MCPServers))
	for name := range cfg.Tools.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Fprintln(out, "  (none)")
	}

	var reach map[string]error
	if statusPing {
		reach = pingServers(cfg)
	}
	for _, name := range names {
		srv := cfg.Tools.MCPServers[name]
		target := srv.URL
		if srv.Command != "" {
			target = srv.Command
		}
		state := ""
		switch {
		case srv.Disabled:
			state = " (disabled)"
		case reach != nil:
			if err, ok := reach[name]; !ok || err != nil {
				state = " ✗"
				if err != nil {
					state += " " + err.Error()
				}
			} else {
				state = " ✓"
			}
		}
		fmt.Fprintf(out, "  %-20s %s%s\n", name, target, state)
	}
	if cfg.Tools.LivenessProbe != "" {
		fmt.Fprintf(out, "\nLiveness probe: %s\n", cfg.Tools.LivenessProbe)
	}
	return nil
}

func pingServers(cfg *config.Config) map[string]error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	servers := mcp.NewManager(cfg.Tools.MCPServers, nil)
	defer servers.Close()
	_ = servers.Connect(ctx)
	return servers.Ping(ctx)
}
