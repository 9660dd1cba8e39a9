package schema

import "strings"

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind names the populated variant of a ContentBlock.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "toolUse"
	BlockToolResult BlockKind = "toolResult"
	BlockEmpty      BlockKind = ""
)

// ToolResultStatus reports whether a tool invocation succeeded.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
)

// ToolUse is a request, embedded in an assistant message, to run one tool.
// Name is the sanitized name the model was shown.
type ToolUse struct {
	ID    string `json:"toolUseId"`
	Name  string `json:"name"`
	Input any    `json:"input"`
}

// ToolResultContent is one text item of a tool result.
type ToolResultContent struct {
	Text string `json:"text"`
}

// ToolResult is the outcome of one tool invocation, fed back to the model
// inside the next user message.
type ToolResult struct {
	ToolUseID string              `json:"toolUseId"`
	Content   []ToolResultContent `json:"content"`
	Status    ToolResultStatus    `json:"status"`
}

// Text returns the concatenated text items of the result.
func (r ToolResult) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

// ContentBlock is a tagged union: exactly one of Text, ToolUse or
// ToolResult is set. Use the New*Block constructors.
type ContentBlock struct {
	Text       *string     `json:"text,omitempty"`
	ToolUse    *ToolUse    `json:"toolUse,omitempty"`
	ToolResult *ToolResult `json:"toolResult,omitempty"`
}

func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Text: &text}
}

func NewToolUseBlock(id, name string, input any) ContentBlock {
	return ContentBlock{ToolUse: &ToolUse{ID: id, Name: name, Input: input}}
}

func NewToolResultBlock(result ToolResult) ContentBlock {
	return ContentBlock{ToolResult: &result}
}

// Kind reports which variant is populated.
func (b ContentBlock) Kind() BlockKind {
	switch {
	case b.Text != nil:
		return BlockText
	case b.ToolUse != nil:
		return BlockToolUse
	case b.ToolResult != nil:
		return BlockToolResult
	}
	return BlockEmpty
}

// Message is one entry in the conversation history.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

func NewUserMessage(content ...ContentBlock) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content ...ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// FirstText returns the first text block of the message, if any.
func (m Message) FirstText() (string, bool) {
	for _, b := range m.Content {
		if b.Text != nil {
			return *b.Text, true
		}
	}
	return "", false
}

// ToolUses returns every tool-use block in message order.
func (m Message) ToolUses() []ToolUse {
	var out []ToolUse
	for _, b := range m.Content {
		if b.ToolUse != nil {
			out = append(out, *b.ToolUse)
		}
	}
	return out
}

// Clone returns a copy of m with an independent content slice.
func (m Message) Clone() Message {
	content := make([]ContentBlock, len(m.Content))
	copy(content, m.Content)
	return Message{Role: m.Role, Content: content}
}
