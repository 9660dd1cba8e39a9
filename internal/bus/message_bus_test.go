package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishAndDrain(t *testing.T) {
	b := NewEventBus(4)

	b.Publish(NewEvent(EventToolListChanged, "fs"))
	ev := NewEvent(EventResourceUpdated, "fs")
	ev.URI = "file:///tmp/a"
	b.Publish(ev)

	assert.Equal(t, 2, b.Size())

	got := b.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, EventToolListChanged, got[0].Kind)
	assert.Equal(t, "file:///tmp/a", got[1].URI)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Empty(t, b.Drain())
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	b := NewEventBus(1)

	b.Publish(NewEvent(EventToolListChanged, "a"))
	b.Publish(NewEvent(EventToolListChanged, "b"))

	got := b.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Server)
}

func TestEventBus_Close(t *testing.T) {
	b := NewEventBus(2)
	b.Close()
	b.Close()

	b.Publish(NewEvent(EventServerStatus, "x"))

	_, ok := <-b.Events()
	assert.False(t, ok)
}

func TestEvent_String(t *testing.T) {
	ev := NewEvent(EventServerStatus, "web")
	ev.Connected = true
	assert.Equal(t, "[web] connected", ev.String())

	ev.Connected = false
	ev.Err = "timeout"
	assert.Equal(t, "[web] disconnected: timeout", ev.String())

	ev = NewEvent(EventResourceUpdated, "fs")
	ev.URI = "file:///x"
	assert.Equal(t, "[fs] resource updated: file:///x", ev.String())
}
