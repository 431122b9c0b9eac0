package lazyopenai

import (
	"fmt"
	"slices"
)

// Buffer is the ordered, append-only message list of one conversation.
// It is not safe for concurrent use; Agent guards its buffer.
type Buffer struct {
	messages []Message
}

// NewBuffer returns a buffer seeded with msgs, which are validated first.
func NewBuffer(msgs ...Message) (*Buffer, error) {
	b := &Buffer{}
	for _, m := range msgs {
		if err := b.Add(m); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add appends m after validating its role.
func (b *Buffer) Add(m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m.ToolCalls = slices.Clone(m.ToolCalls)
	b.messages = append(b.messages, m)
	return nil
}

// AddSystem appends a system message.
func (b *Buffer) AddSystem(text string) {
	b.messages = append(b.messages, Message{Role: RoleSystem, Content: text})
}

// AddUser appends a user message.
func (b *Buffer) AddUser(text string) {
	b.messages = append(b.messages, Message{Role: RoleUser, Content: text})
}

// AddAssistant appends an assistant message, keeping any tool calls it carries.
func (b *Buffer) AddAssistant(m Message) {
	m.Role = RoleAssistant
	m.ToolCallID = ""
	m.IsError = false
	m.ToolCalls = slices.Clone(m.ToolCalls)
	b.messages = append(b.messages, m)
}

// AddTool appends a tool result for the call toolCallID.
func (b *Buffer) AddTool(text, toolCallID string) error {
	return b.Add(Message{Role: RoleTool, Content: text, ToolCallID: toolCallID})
}

// AddToolError appends the failure text of tool call toolCallID, flagged as an error.
func (b *Buffer) AddToolError(text, toolCallID string) error {
	return b.Add(Message{Role: RoleTool, Content: text, ToolCallID: toolCallID, IsError: true})
}

// Messages returns a copy of the messages in insertion order.
func (b *Buffer) Messages() []Message {
	out := make([]Message, len(b.messages))
	for i, m := range b.messages {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		out[i] = m
	}
	return out
}

// Len returns the number of messages.
func (b *Buffer) Len() int { return len(b.messages) }

// NormalizeMessages turns caller input into messages. Accepted shapes:
// string (one user message), []string (user messages in order), Message,
// []Message, and []any mixing strings and Messages. Messages are validated.
func NormalizeMessages(in any) ([]Message, error) {
	switch v := in.(type) {
	case string:
		return []Message{{Role: RoleUser, Content: v}}, nil
	case []string:
		out := make([]Message, 0, len(v))
		for _, s := range v {
			out = append(out, Message{Role: RoleUser, Content: s})
		}
		return out, nil
	case Message:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return []Message{v}, nil
	case []Message:
		for _, m := range v {
			if err := m.Validate(); err != nil {
				return nil, err
			}
		}
		return slices.Clone(v), nil
	case []any:
		out := make([]Message, 0, len(v))
		for i, item := range v {
			ms, err := NormalizeMessages(item)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
			out = append(out, ms...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported message input %T", ErrInvalidInput, in)
}
