package agent

import (
	"sync"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// History is the append-only conversation transcript replayed on every
// inference call. Only Reset ever removes entries.
type History struct {
	mu       sync.RWMutex
	messages []schema.Message
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{}
}

// Append adds m to the end of the transcript.
func (h *History) Append(m schema.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, m.Clone())
}

// Snapshot returns a copy of the transcript safe to hand to a provider.
func (h *History) Snapshot() []schema.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]schema.Message, len(h.messages))
	for i, m := range h.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Reset empties the transcript.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}
