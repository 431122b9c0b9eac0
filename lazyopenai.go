package lazyopenai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Role is the author of a conversation message.
type Role string

// Roles accepted by the Buffer. Anything else is rejected with ErrInvalidRole.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is a single conversation turn. ToolCallID is set iff Role is RoleTool;
// ToolCalls is only set on assistant messages that requested tool invocations.
// IsError marks a tool message that reports a failed execution.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// Validate checks the role and the tool call id invariant.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return ErrMissingToolCallID
	}
	if m.IsError && m.Role != RoleTool {
		return fmt.Errorf("%w: only tool messages can report an error", ErrInvalidInput)
	}
	return nil
}

// ToolCall is a single tool invocation requested by the model.
// Arguments is the raw JSON object produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FinishReason is the remote side's reason for ending a completion.
type FinishReason string

// Known finish reasons. Adapters map provider-specific values onto these;
// unknown values are passed through verbatim.
const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// CompletionRequest is everything a Completer needs for one round trip.
// Tools is nil when no tools are registered; ResponseFormat is nil for plain text.
type CompletionRequest struct {
	Model          string
	Messages       []Message
	Temperature    float64
	MaxTokens      int // 0 means provider default
	Tools          []ToolDescriptor
	ResponseFormat *ResponseFormat
}

// Completion is the remote response. Only the first choice is used.
type Completion struct {
	Choices []Choice
}

// Choice is one candidate answer. Parsed holds the structured object when the
// request carried a ResponseFormat.
type Choice struct {
	FinishReason FinishReason
	Message      Message
	Parsed       json.RawMessage
}

// Completer is the remote completion boundary. Implementations must be safe for
// concurrent use when shared between agents.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// Result is the terminal output of a conversation round.
type Result struct {
	Text         string
	Parsed       json.RawMessage
	FinishReason FinishReason
}

// Decode unmarshals the structured object into v.
func (r Result) Decode(v any) error {
	if len(r.Parsed) == 0 {
		return ErrMissingParsedContent
	}
	if err := json.Unmarshal(r.Parsed, v); err != nil {
		return fmt.Errorf("decode parsed content: %w", err)
	}
	return nil
}

// Outcome is delivered by Agent.Start when the asynchronous run finishes.
type Outcome struct {
	Result Result
	Err    error
}

// ToolMetadata is implemented by tools built with NewTool, NewFuncTool or
// NewStructTool. Registry uses Timeout() to override its default when set.
type ToolMetadata interface {
	Timeout() time.Duration
}

// ExecutionSummary is passed to the after-execution hook (WithOnAfterExecute).
type ExecutionSummary struct {
	CallID   string
	ToolName string
	Output   string
	Error    error
}

// Tool is an invocable capability exposed to the model.
// Execute receives the raw JSON arguments and returns the text sent back as the tool message.
type Tool interface {
	Name() string
	Descriptor() ToolDescriptor
	Execute(ctx context.Context, argsJSON []byte) (string, error)
}
