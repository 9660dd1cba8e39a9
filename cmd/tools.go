package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/mcpconverse/internal/mcp"
	"github.com/crystaldolphin/mcpconverse/internal/tools"
)

var toolsOutput string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered by the configured MCP servers",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVarP(&toolsOutput, "output", "o", "table", "Output format: table, json or yaml")
}

// toolRow is one line of the listing.
type toolRow struct {
	Server      string         `json:"server" yaml:"server"`
	Name        string         `json:"name" yaml:"name"`
	Sanitized   string         `json:"sanitized" yaml:"sanitized"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	servers := mcp.NewManager(cfg.Tools.MCPServers, nil)
	defer servers.Close()

	if err := servers.Connect(ctx); err != nil {
		return fmt.Errorf("connect MCP servers: %w", err)
	}
	servers.Discover(ctx)

	return writeTools(cmd.OutOrStdout(), toolsOutput, servers.Tools())
}

func writeTools(w io.Writer, format string, discovered []mcp.DiscoveredTool) error {
	rows := make([]toolRow, 0, len(discovered))
	for _, t := range discovered {
		rows = append(rows, toolRow{
			Server:      t.Server,
			Name:        t.Name,
			Sanitized:   tools.Sanitize(t.Name),
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVER\tTOOL\tSANITIZED\tDESCRIPTION")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Server, r.Name, r.Sanitized, firstLine(r.Description))
		}
		return tw.Flush()
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
