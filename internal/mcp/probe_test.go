package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPinger struct {
	rounds []map[string]error
	n      int
}

func (p *scriptedPinger) Ping(context.Context) map[string]error {
	r := p.rounds[p.n]
	if p.n < len(p.rounds)-1 {
		p.n++
	}
	return r
}

type statusChange struct {
	server string
	err    error
}

func TestProbe_PublishesOnlyFlips(t *testing.T) {
	down := errors.New("connection refused")
	target := &scriptedPinger{rounds: []map[string]error{
		{"a": nil, "b": down},
		{"a": nil, "b": down},
		{"a": down, "b": nil},
		{"a": down, "b": nil},
	}}
	var changes []statusChange
	p := newProbe(target, func(server string, err error) {
		changes = append(changes, statusChange{server, err})
	})

	for range 4 {
		p.Check(context.Background())
	}

	require.Len(t, changes, 2)
	byServer := map[string]error{}
	for _, c := range changes {
		byServer[c.server] = c.err
	}
	assert.Equal(t, down, byServer["a"])
	assert.NoError(t, byServer["b"])
}

func TestProbe_InvalidSchedule(t *testing.T) {
	p := newProbe(&scriptedPinger{rounds: []map[string]error{{}}}, nil)
	err := p.Start(context.Background(), "not a schedule")
	assert.ErrorContains(t, err, "invalid probe schedule")
}

func TestProbe_StopsWithContext(t *testing.T) {
	p := newProbe(&scriptedPinger{rounds: []map[string]error{{}}}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx, "") }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not stop")
	}
}
