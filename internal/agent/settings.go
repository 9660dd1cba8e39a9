package agent

import (
	"errors"
	"time"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// ContinuePrompt is sent as the next user turn when a response was cut off
// by the token limit.
const ContinuePrompt = "Please continue."

var (
	// ErrUnknownStopReason is returned when the provider reports a stop
	// reason the engine cannot act on. History up to the assistant message
	// that carried it is kept.
	ErrUnknownStopReason = errors.New("unknown stop reason")

	// ErrDepthExceeded is returned when one Invoke needs more inference
	// calls than Settings.MaxTurns allows.
	ErrDepthExceeded = errors.New("maximum conversation depth exceeded")

	// ErrNoToolUse is returned when the stop reason is tool_use but the
	// assistant message carries no tool-use block.
	ErrNoToolUse = errors.New("tool_use stop reason without tool-use blocks")

	// ErrEmptyResponse is returned when the provider response has no
	// assistant message.
	ErrEmptyResponse = errors.New("response contains no assistant message")
)

// Settings configures a ConverseAgent. Defaults are applied by whoever
// builds it; zero values are passed through as-is.
type Settings struct {
	ModelID      string
	SystemPrompt string
	Inference    schema.InferenceConfig

	// MaxTurns bounds the inference calls made by one Invoke. Zero or
	// negative means unbounded.
	MaxTurns int

	// ParallelToolCalls runs the tool calls of one turn concurrently.
	ParallelToolCalls bool

	RequestTimeout time.Duration
	ToolTimeout    time.Duration
}
