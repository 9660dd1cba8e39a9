package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	robfigcron "github.com/robfig/cron/v3"
)

// DefaultProbeSchedule is used when the liveness probe is enabled without
// an explicit schedule.
const DefaultProbeSchedule = "@every 30s"

// pinger is the part of Manager the probe needs.
type pinger interface {
	Ping(ctx context.Context) map[string]error
}

// Probe periodically pings every connected server and publishes a
// server-status event whenever a server's health flips.
type Probe struct {
	target  pinger
	publish func(server string, err error)

	cron *robfigcron.Cron

	mu   sync.Mutex
	last map[string]bool // server → healthy at last check
}

// NewProbe returns a liveness probe for m. Status changes go to m's bus.
func NewProbe(m *Manager) *Probe {
	return newProbe(m, m.publishStatus)
}

func newProbe(target pinger, publish func(string, error)) *Probe {
	return &Probe{
		target:  target,
		publish: publish,
		cron:    robfigcron.New(),
		last:    make(map[string]bool),
	}
}

// Start schedules the probe and blocks until ctx is cancelled.
func (p *Probe) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultProbeSchedule
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.Check(ctx) }); err != nil {
		return fmt.Errorf("invalid probe schedule %q: %w", schedule, err)
	}

	p.cron.Start()
	slog.Info("mcp probe: started", "schedule", schedule)

	<-ctx.Done()
	<-p.cron.Stop().Done()
	slog.Info("mcp probe: stopped")
	return ctx.Err()
}

// Check runs one round of pings. The first observation of a server only
// records its state; later flips are published.
func (p *Probe) Check(ctx context.Context) {
	results := p.target.Ping(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	for server, err := range results {
		healthy := err == nil
		prev, seen := p.last[server]
		p.last[server] = healthy
		if !seen || prev == healthy {
			continue
		}
		if healthy {
			slog.Info("mcp probe: server recovered", "server", server)
		} else {
			slog.Warn("mcp probe: server unhealthy", "server", server, "err", err)
		}
		if p.publish != nil {
			p.publish(server, err)
		}
	}
}
