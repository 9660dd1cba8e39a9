package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpconverse/internal/bus"
	"github.com/crystaldolphin/mcpconverse/internal/dependency"
	"github.com/crystaldolphin/mcpconverse/internal/mcp"
	"github.com/crystaldolphin/mcpconverse/internal/schema"
	"github.com/crystaldolphin/mcpconverse/internal/shared/cmdutils"
	"github.com/crystaldolphin/mcpconverse/internal/shared/llmutils"
)

var (
	chatMessage string
	chatHints   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the model using the tools of the configured MCP servers",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().BoolVar(&chatHints, "hints", true, "Show tool-call hints while the model works")
}

var exitCommands = map[string]bool{
	"exit": true,
	"quit": true,
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()
	listenForSignals(cancel, container.Close)

	out := cmd.OutOrStdout()
	servers := container.MCPManager()
	registry := container.Registry()

	if err := servers.Connect(ctx); err != nil {
		return fmt.Errorf("connect MCP servers: %w", err)
	}
	servers.Refresh(ctx, registry)
	printTools(out, servers.Tools())

	if cfg.Tools.LivenessProbe != "" {
		probe := mcp.NewProbe(servers)
		go func() {
			if err := probe.Start(ctx, cfg.Tools.LivenessProbe); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("mcp probe failed", "err", err)
			}
		}()
	}

	conv := container.Agent()
	if chatHints {
		conv.SetProgressHandler(func(hint string) {
			fmt.Fprintf(out, "  ↳ %s\n", hint)
		})
	}

	s := &chatSession{
		conv:    conv,
		events:  container.EventBus(),
		tools:   servers.Tools,
		refresh: func(ctx context.Context) int { return servers.Refresh(ctx, registry) },
		out:     out,
	}

	if chatMessage != "" {
		return s.send(ctx, chatMessage)
	}

	slog.Info("Session started", "session", uuid.NewString(), "model", cfg.Agent.Model, "tools", registry.Len())
	fmt.Fprintf(out, "%s Connected to %d MCP server(s)\n", logo, servers.ConnectedCount())
	fmt.Fprintln(out, `Type "quit" or "exit" to end the session, "/clear" to reset, "/tools" to list tools`)
	fmt.Fprintln(out)
	return s.run(ctx, cmd.InOrStdin())
}

// listenForSignals cancels ctx on SIGINT or SIGTERM, releases the MCP
// servers and exits. Stdin reads cannot be interrupted any other way.
func listenForSignals(cancel context.CancelFunc, cleanup func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Println("\nGoodbye!")
		slog.Info("Shutting down", "signal", sig.String())
		cancel()
		cleanup()
		os.Exit(0)
	}()
}

// drainer is the part of the event bus the session reads between turns.
type drainer interface {
	Drain() []bus.Event
}

// chatSession is the REPL around one conversation.
type chatSession struct {
	conv    schema.Conversation
	events  drainer
	tools   func() []mcp.DiscoveredTool
	refresh func(ctx context.Context) int
	out     io.Writer
}

// run reads lines until EOF, an exit command, or ctx is cancelled.
func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return scanner.Err()
		}
		if ctx.Err() != nil {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		switch line {
		case "/clear":
			s.conv.ClearMessages()
			fmt.Fprintln(s.out, "History cleared.")
			continue
		case "/tools":
			printTools(s.out, s.tools())
			continue
		}

		if err := s.send(ctx, line); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// send handles pending notifications, then runs one turn.
func (s *chatSession) send(ctx context.Context, text string) error {
	s.handleEvents(ctx)

	fmt.Fprintln(s.out, "Thinking...")
	answer, err := s.conv.InvokeWithPrompt(ctx, text)
	if err != nil {
		return err
	}
	cmdutils.PrintResponse(s.out, answer)
	return nil
}

// handleEvents applies queued server notifications. It runs between turns
// only, so tools are never swapped under an in-flight conversation.
func (s *chatSession) handleEvents(ctx context.Context) {
	if s.events == nil {
		return
	}
	changed := false
	for _, ev := range s.events.Drain() {
		slog.Debug("Server event", "event", ev.String(), "id", ev.ID)
		switch ev.Kind {
		case bus.EventToolListChanged:
			changed = true
		case bus.EventServerStatus:
			fmt.Fprintf(s.out, "  ↳ %s\n", ev.String())
		}
	}
	if changed && s.refresh != nil {
		n := s.refresh(ctx)
		fmt.Fprintf(s.out, "  ↳ tool list changed, %d tool(s) available\n", n)
	}
}

func printTools(w io.Writer, tools []mcp.DiscoveredTool) {
	fmt.Fprintln(w, "Available Tools:")
	if len(tools) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, t := range tools {
		fmt.Fprintf(w, "  • %s: %s\n", t.Name, llmutils.Truncate(llmutils.StringOrDefault(t.Description, "(no description)"), 100))
	}
	fmt.Fprintln(w)
}
