package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/narumiruna/lazyopenai"
)

// ErrScriptExhausted is returned when a ScriptedCompleter receives more requests than it has steps.
var ErrScriptExhausted = errors.New("scripted completer: no more steps")

// Step produces one scripted response. Req is the request being answered.
type Step func(ctx context.Context, req lazyopenai.CompletionRequest) (*lazyopenai.Completion, error)

// ScriptedCompleter replays a fixed sequence of responses and records every request.
type ScriptedCompleter struct {
	mu       sync.Mutex
	steps    []Step
	requests []lazyopenai.CompletionRequest
}

// NewScriptedCompleter returns a completer that answers with steps in order.
func NewScriptedCompleter(steps ...Step) *ScriptedCompleter {
	return &ScriptedCompleter{steps: steps}
}

// Complete records req and runs the next step.
func (s *ScriptedCompleter) Complete(ctx context.Context, req lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
	s.mu.Lock()
	req.Messages = slices.Clone(req.Messages)
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	var step Step
	if i < len(s.steps) {
		step = s.steps[i]
	}
	s.mu.Unlock()
	if step == nil {
		return nil, ErrScriptExhausted
	}
	return step(ctx, req)
}

// Requests returns the requests received so far.
func (s *ScriptedCompleter) Requests() []lazyopenai.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Respond returns a step answering with c.
func Respond(c *lazyopenai.Completion) Step {
	return func(context.Context, lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
		return c, nil
	}
}

// Fail returns a step answering with err.
func Fail(err error) Step {
	return func(context.Context, lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
		return nil, err
	}
}

// StopCompletion is a terminal text answer.
func StopCompletion(text string) *lazyopenai.Completion {
	return &lazyopenai.Completion{Choices: []lazyopenai.Choice{{
		FinishReason: lazyopenai.FinishReasonStop,
		Message:      lazyopenai.Message{Role: lazyopenai.RoleAssistant, Content: text},
	}}}
}

// ParsedCompletion is a terminal structured answer carrying v as JSON.
func ParsedCompletion(v any) *lazyopenai.Completion {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &lazyopenai.Completion{Choices: []lazyopenai.Choice{{
		FinishReason: lazyopenai.FinishReasonStop,
		Message:      lazyopenai.Message{Role: lazyopenai.RoleAssistant, Content: string(data)},
		Parsed:       data,
	}}}
}

// ToolCallsCompletion requests the given tool calls.
func ToolCallsCompletion(calls ...lazyopenai.ToolCall) *lazyopenai.Completion {
	return &lazyopenai.Completion{Choices: []lazyopenai.Choice{{
		FinishReason: lazyopenai.FinishReasonToolCalls,
		Message:      lazyopenai.Message{Role: lazyopenai.RoleAssistant, ToolCalls: calls},
	}}}
}

var _ lazyopenai.Completer = (*ScriptedCompleter)(nil)
