package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpconverse/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config with defaults")
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfgPath := resolvedConfigPath()
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Config refreshed at %s (existing values kept)\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Created config at %s\n", cfgPath)
	}

	fmt.Fprintf(out, "\n%s mcpconverse is ready!\n\n", logo)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Point tools.mcpServers in %s at your MCP servers\n", cfgPath)
	fmt.Fprintln(out, "     (or set MCP_URL / MCP_TOKEN)")
	fmt.Fprintln(out, "  2. Make AWS credentials available for Bedrock, or add a provider API key")
	fmt.Fprintln(out, "  3. Chat: mcpconverse chat -m \"What's the weather in Seattle?\"")
	return nil
}
