// Package bus defines the notification events that flow from tool-providing
// servers to the session driver.
package bus

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names the server notification an Event carries.
type EventKind string

const (
	EventToolListChanged     EventKind = "tool_list_changed"
	EventResourceListChanged EventKind = "resource_list_changed"
	EventResourceUpdated     EventKind = "resource_updated"
	EventServerStatus        EventKind = "server_status"
)

// Event is one notification from a tool-providing server.
type Event struct {
	ID        string    // unique per event
	Kind      EventKind // what happened
	Server    string    // configured server name
	URI       string    // resource URI, for EventResourceUpdated
	Connected bool      // liveness, for EventServerStatus
	Err       string    // probe failure, for EventServerStatus
	Time      time.Time // when the event was published
}

// NewEvent returns an Event stamped with a fresh ID and the current time.
func NewEvent(kind EventKind, server string) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Server: server,
		Time:   time.Now(),
	}
}

// String returns a short human-readable description for logs and the REPL.
func (e Event) String() string {
	switch e.Kind {
	case EventToolListChanged:
		return fmt.Sprintf("[%s] tool list changed", e.Server)
	case EventResourceListChanged:
		return fmt.Sprintf("[%s] resource list changed", e.Server)
	case EventResourceUpdated:
		return fmt.Sprintf("[%s] resource updated: %s", e.Server, e.URI)
	case EventServerStatus:
		if e.Connected {
			return fmt.Sprintf("[%s] connected", e.Server)
		}
		if e.Err != "" {
			return fmt.Sprintf("[%s] disconnected: %s", e.Server, e.Err)
		}
		return fmt.Sprintf("[%s] disconnected", e.Server)
	}
	return fmt.Sprintf("[%s] %s", e.Server, e.Kind)
}
