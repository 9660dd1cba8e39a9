package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/mcpconverse/internal/bus"
	toolcfg "github.com/crystaldolphin/mcpconverse/internal/config/tool"
	"github.com/crystaldolphin/mcpconverse/internal/tools"
)

// ErrNoServers is returned by Connect when servers are configured but none
// could be reached.
var ErrNoServers = errors.New("no MCP server could be connected")

// ToolRegistry is the registry surface the manager fills.
type ToolRegistry interface {
	Register(name string, handler tools.Handler, description string, inputSchema map[string]any)
	Clear()
}

// DiscoveredTool is a tool together with the server that advertised it.
type DiscoveredTool struct {
	Server string
	ToolInfo
}

// clientFactory builds a client for one configured server.
type clientFactory func(name string, cfg ServerConfig, notify notifyFunc) (Client, error)

// Manager owns the lifecycle of all MCP server connections for one session.
type Manager struct {
	servers map[string]toolcfg.MCPServerConfig
	bus     bus.Bus
	factory clientFactory

	mu      sync.RWMutex
	clients map[string]Client
	tools   map[string][]ToolInfo
}

// NewManager returns a Manager configured with the given MCP servers.
// Notifications are published on b, which may be nil.
func NewManager(servers map[string]toolcfg.MCPServerConfig, b bus.Bus) *Manager {
	return &Manager{
		servers: servers,
		bus:     b,
		factory: newClient,
		clients: make(map[string]Client),
		tools:   make(map[string][]ToolInfo),
	}
}

// ServerNames returns the enabled configured servers in sorted order.
func (m *Manager) ServerNames() []string {
	names := make([]string, 0, len(m.servers))
	for name, cfg := range m.servers {
		if cfg.Disabled {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect connects to every enabled server that is not connected yet.
// Servers are contacted concurrently; failures are logged and skipped.
// It fails only when servers are configured and none is connected.
func (m *Manager) Connect(ctx context.Context) error {
	names := m.ServerNames()

	var g errgroup.Group
	g.SetLimit(4)
	for _, name := range names {
		m.mu.RLock()
		_, connected := m.clients[name]
		m.mu.RUnlock()
		if connected {
			continue
		}

		cfg := toServerConfig(m.servers[name])
		g.Go(func() error {
			c, err := m.factory(name, cfg, m.onNotify)
			if err != nil {
				slog.Error("MCP server misconfigured", "server", name, "err", err)
				return nil
			}
			if err := c.Connect(ctx); err != nil {
				slog.Error("MCP server connect failed", "server", name, "err", err)
				m.publishStatus(name, err)
				return nil
			}
			m.mu.Lock()
			m.clients[name] = c
			m.mu.Unlock()
			slog.Info("MCP server connected", "server", name, "transport", cfg.Transport())
			m.publishStatus(name, nil)
			return nil
		})
	}
	_ = g.Wait()

	if len(names) > 0 && m.ConnectedCount() == 0 {
		return ErrNoServers
	}
	return nil
}

// ConnectedCount returns the number of live connections.
func (m *Manager) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Discover lists the tools of every connected server concurrently. A server
// whose listing fails keeps its previous tool list.
func (m *Manager) Discover(ctx context.Context) {
	m.mu.RLock()
	clients := make(map[string]Client, len(m.clients))
	for name, c := range m.clients {
		clients[name] = c
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for name, c := range clients {
		g.Go(func() error {
			infos, err := c.ListTools(ctx)
			if err != nil {
				slog.Error("MCP server list_tools failed", "server", name, "err", err)
				return nil
			}
			m.mu.Lock()
			m.tools[name] = infos
			m.mu.Unlock()
			slog.Info("MCP tools discovered", "server", name, "tools", len(infos))
			return nil
		})
	}
	_ = g.Wait()
}

// Tools returns every discovered tool, ordered by server name and then by
// the order the server listed them.
func (m *Manager) Tools() []DiscoveredTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	servers := make([]string, 0, len(m.tools))
	for name := range m.tools {
		servers = append(servers, name)
	}
	sort.Strings(servers)

	var out []DiscoveredTool
	for _, server := range servers {
		for _, info := range m.tools[server] {
			out = append(out, DiscoveredTool{Server: server, ToolInfo: info})
		}
	}
	return out
}

// RegisterTools clears reg and registers every discovered tool under its
// original name. It returns the number of tools registered.
func (m *Manager) RegisterTools(reg ToolRegistry) int {
	discovered := m.Tools()

	m.mu.RLock()
	defer m.mu.RUnlock()

	reg.Clear()
	n := 0
	for _, dt := range discovered {
		c, ok := m.clients[dt.Server]
		if !ok {
			continue
		}
		reg.Register(dt.Name, toolHandler(c), dt.Description, dt.InputSchema)
		slog.Debug("MCP tool registered", "server", dt.Server, "tool", dt.Name)
		n++
	}
	return n
}

// Refresh re-discovers tools and rebuilds reg. Call it between turns, never
// while the registry is in use by an in-flight conversation.
func (m *Manager) Refresh(ctx context.Context, reg ToolRegistry) int {
	m.Discover(ctx)
	return m.RegisterTools(reg)
}

// Ping checks every connected server and returns the failures by name.
func (m *Manager) Ping(ctx context.Context) map[string]error {
	m.mu.RLock()
	clients := make(map[string]Client, len(m.clients))
	for name, c := range m.clients {
		clients[name] = c
	}
	m.mu.RUnlock()

	var mu sync.Mutex
	results := make(map[string]error, len(clients))
	var g errgroup.Group
	for name, c := range clients {
		g.Go(func() error {
			err := c.Ping(ctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Close disconnects every server owned by this manager.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.clients {
		if err := c.Close(); err != nil {
			slog.Warn("MCP server close failed", "server", name, "err", err)
		}
		delete(m.clients, name)
	}
}

// onNotify forwards server notifications onto the event bus.
func (m *Manager) onNotify(server, method string, params json.RawMessage) {
	var ev bus.Event
	switch method {
	case "notifications/tools/list_changed":
		ev = bus.NewEvent(bus.EventToolListChanged, server)
	case "notifications/resources/list_changed":
		ev = bus.NewEvent(bus.EventResourceListChanged, server)
	case "notifications/resources/updated":
		ev = bus.NewEvent(bus.EventResourceUpdated, server)
		var p struct {
			URI string `json:"uri"`
		}
		_ = json.Unmarshal(params, &p)
		ev.URI = p.URI
	default:
		slog.Debug("MCP notification ignored", "server", server, "method", method)
		return
	}
	slog.Info("MCP notification", "server", server, "kind", ev.Kind)
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func (m *Manager) publishStatus(server string, err error) {
	if m.bus == nil {
		return
	}
	ev := bus.NewEvent(bus.EventServerStatus, server)
	ev.Connected = err == nil
	if err != nil {
		ev.Err = err.Error()
	}
	m.bus.Publish(ev)
}

// toServerConfig converts a config-layer MCPServerConfig to the internal ServerConfig.
func toServerConfig(c toolcfg.MCPServerConfig) ServerConfig {
	return ServerConfig{
		Command: c.Command,
		Args:    c.Args,
		Env:     c.Env,
		URL:     c.URL,
		Headers: c.Headers,
		Timeout: time.Duration(c.Timeout) * time.Second,
	}
}

func (dt DiscoveredTool) String() string {
	return fmt.Sprintf("%s/%s", dt.Server, dt.Name)
}
