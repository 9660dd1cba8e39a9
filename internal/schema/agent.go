package schema

import "context"

// Conversation is the surface the session driver uses to talk to the
// conversation engine.
type Conversation interface {
	// InvokeWithPrompt appends prompt as a user turn and runs the engine
	// until it produces a final answer.
	InvokeWithPrompt(ctx context.Context, prompt string) (string, error)
	// ClearMessages resets the history between independent sessions.
	ClearMessages()
}
