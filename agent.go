package lazyopenai

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Agent is one conversation: a message buffer, a tool registry and a
// Completer. Create runs the tool-calling loop until the model produces a
// terminal answer. Calls on one Agent are serialized; separate Agents share
// nothing mutable.
type Agent struct {
	id       uuid.UUID
	client   Completer
	registry *Registry
	buffer   *Buffer
	opts     options
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewAgent creates a conversation over c.
func NewAgent(c Completer, opts ...Option) (*Agent, error) {
	if c == nil {
		return nil, ErrNilCompleter
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	reg := NewRegistry(o.registry...)
	if len(o.middlewares) > 0 {
		reg.Use(o.middlewares...)
	}
	reg.Register(o.tools...)

	id := uuid.New()
	a := &Agent{
		id:       id,
		client:   c,
		registry: reg,
		buffer:   &Buffer{},
		opts:     o,
		logger:   o.logger.With().Str("conversation_id", id.String()).Logger(),
	}
	if o.instruction != "" {
		a.buffer.AddSystem(o.instruction)
	}
	return a, nil
}

// ID returns the conversation id.
func (a *Agent) ID() string { return a.id.String() }

// Registry returns the agent's tool registry. Tools registered on it are
// offered to the model from the next round on.
func (a *Agent) Registry() *Registry { return a.registry }

// AddMessage appends a system, user or assistant message. Tool messages need
// AddToolMessage.
func (a *Agent) AddMessage(role Role, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer.Add(Message{Role: role, Content: content})
}

// AddToolMessage appends the result of tool call toolCallID.
func (a *Agent) AddToolMessage(content, toolCallID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer.AddTool(content, toolCallID)
}

// AddMessages appends caller input in any shape accepted by NormalizeMessages.
// Nothing is appended when any element is invalid.
func (a *Agent) AddMessages(in any) error {
	msgs, err := NormalizeMessages(in)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range msgs {
		if err := a.buffer.Add(m); err != nil {
			return err
		}
	}
	return nil
}

// Messages returns a copy of the conversation so far.
func (a *Agent) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer.Messages()
}

// Create runs completion rounds until the model stops. With a nil format the
// answer is text; otherwise the structured object is validated against format.
// Messages appended before a failure stay in the conversation.
func (a *Agent) Create(ctx context.Context, format *ResponseFormat) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.create(ctx, format)
}

// Ask appends a user message and runs Create without a response format in one
// critical section, so concurrent askers never interleave their turns.
func (a *Agent) Ask(ctx context.Context, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.buffer.Add(Message{Role: RoleUser, Content: text}); err != nil {
		return "", err
	}
	res, err := a.create(ctx, nil)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// create is Create with a.mu held.
func (a *Agent) create(ctx context.Context, format *ResponseFormat) (Result, error) {
	for round := 1; ; round++ {
		if a.opts.maxRounds > 0 && round > a.opts.maxRounds {
			return Result{}, fmt.Errorf("%w: %d rounds", ErrLoopBoundExceeded, a.opts.maxRounds)
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		req := CompletionRequest{
			Model:          a.opts.model,
			Messages:       a.buffer.Messages(),
			Temperature:    a.opts.temperature,
			MaxTokens:      a.opts.maxTokens,
			Tools:          a.registry.Descriptors(),
			ResponseFormat: format,
		}
		a.logger.Debug().
			Int("round", round).
			Int("messages", len(req.Messages)).
			Int("tools", len(req.Tools)).
			Msg("requesting completion")

		resp, err := a.client.Complete(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("complete: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return Result{}, ErrEmptyCompletionChoices
		}
		choice := resp.Choices[0]
		a.buffer.AddAssistant(choice.Message)

		switch choice.FinishReason {
		case FinishReasonToolCalls:
			a.dispatch(ctx, choice.Message.ToolCalls)
			continue
		case FinishReasonStop:
		default:
			a.logger.Warn().Str("finish_reason", string(choice.FinishReason)).Msg("unhandled finish reason")
		}
		return terminalResult(choice, format)
	}
}

// dispatch executes calls in response order and appends one tool message per
// executed call. Unknown tools are skipped; failures are reported to the
// model as the tool message text.
func (a *Agent) dispatch(ctx context.Context, calls []ToolCall) {
	for _, call := range calls {
		a.logger.Info().Str("tool", call.Name).Str("call_id", call.ID).Msg("dispatching tool call")
		out, err := a.registry.Execute(ctx, call)
		add := a.buffer.AddTool
		switch {
		case errors.Is(err, ErrToolNotFound):
			a.logger.Warn().Err(err).Str("tool", call.Name).Msg("skipping tool call")
			continue
		case err != nil:
			a.logger.Warn().Err(err).Str("tool", call.Name).Msg("tool execution failed")
			out = "error: " + err.Error()
			add = a.buffer.AddToolError
		}
		if err := add(out, call.ID); err != nil {
			a.logger.Warn().Err(err).Str("tool", call.Name).Msg("dropping tool result")
		}
	}
}

func terminalResult(choice Choice, format *ResponseFormat) (Result, error) {
	res := Result{
		Text:         choice.Message.Content,
		Parsed:       slices.Clone(choice.Parsed),
		FinishReason: choice.FinishReason,
	}
	if format != nil {
		if len(res.Parsed) == 0 {
			return Result{}, ErrMissingParsedContent
		}
		if err := format.Validate(res.Parsed); err != nil {
			return Result{}, err
		}
		return res, nil
	}
	if res.Text == "" {
		return Result{}, ErrMissingTextContent
	}
	return res, nil
}

// CreateText runs Create without a response format and returns the text.
func (a *Agent) CreateText(ctx context.Context) (string, error) {
	res, err := a.Create(ctx, nil)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// CreateAs runs Create with a response format reflected from T and decodes the answer.
func CreateAs[T any](ctx context.Context, a *Agent) (T, error) {
	var out T
	format, err := NewResponseFormat[T]()
	if err != nil {
		return out, err
	}
	res, err := a.Create(ctx, format)
	if err != nil {
		return out, err
	}
	if err := res.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// Start runs Create in a goroutine. The channel receives exactly one Outcome
// and is then closed. Cancel ctx to abandon the run.
func (a *Agent) Start(ctx context.Context, format *ResponseFormat) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := a.Create(ctx, format)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

// Generate runs a one-shot conversation: optional instruction, then messages,
// then the tool loop. Use WithResponseFormat for a structured answer.
func Generate(ctx context.Context, c Completer, messages any, opts ...Option) (Result, error) {
	a, err := NewAgent(c, opts...)
	if err != nil {
		return Result{}, err
	}
	if err := a.AddMessages(messages); err != nil {
		return Result{}, err
	}
	return a.Create(ctx, a.opts.format)
}

// Send runs a one-shot conversation and returns the text answer.
func Send(ctx context.Context, c Completer, messages any, opts ...Option) (string, error) {
	res, err := Generate(ctx, c, messages, opts...)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Parse runs a one-shot conversation that must answer with a T.
func Parse[T any](ctx context.Context, c Completer, messages any, opts ...Option) (T, error) {
	var out T
	format, err := NewResponseFormat[T]()
	if err != nil {
		return out, err
	}
	res, err := Generate(ctx, c, messages, slices.Concat(opts, []Option{WithResponseFormat(format)})...)
	if err != nil {
		return out, err
	}
	if err := res.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
