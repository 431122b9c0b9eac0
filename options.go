package lazyopenai

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// toolOptions hold optional tool settings.
type toolOptions struct {
	timeout time.Duration
}

// ToolOption configures a tool (e.g. WithTimeout).
type ToolOption func(*toolOptions)

// WithTimeout sets a per-tool timeout that overrides the registry default.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout       time.Duration
	recoverPanics bool
	onBefore      func(context.Context, ToolCall)
	onAfter       func(context.Context, ToolCall, ExecutionSummary, time.Duration)
}

// WithDefaultTimeout sets the default execution timeout for tools. Zero disables it.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithRecoverPanics enables panic recovery in Execute (returns SystemError).
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeExecute sets a hook called before each tool execution.
func WithOnBeforeExecute(fn func(context.Context, ToolCall)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute sets a hook called after each tool execution.
func WithOnAfterExecute(fn func(context.Context, ToolCall, ExecutionSummary, time.Duration)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}

// DefaultMaxRounds bounds the completion rounds of one Create call.
const DefaultMaxRounds = 10

// Option configures an Agent or a one-shot Generate/Send/Parse call.
type Option func(*options)

type options struct {
	model       string
	temperature float64
	maxTokens   int
	maxRounds   int
	instruction string
	format      *ResponseFormat
	tools       []Tool
	middlewares []Middleware
	registry    []RegistryOption
	logger      zerolog.Logger
}

func defaultOptions() options {
	return options{
		maxRounds: DefaultMaxRounds,
		logger:    log.Logger,
	}
}

// WithModel sets the model name. Empty leaves the choice to the Completer.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithTemperature sets the sampling temperature (default 0).
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = t
	}
}

// WithMaxTokens caps the completion length. Zero uses the provider default.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

// WithMaxRounds bounds the completion rounds of one Create call. n <= 0 removes the bound.
func WithMaxRounds(n int) Option {
	return func(o *options) {
		o.maxRounds = n
	}
}

// WithInstruction prepends a system message to the conversation.
func WithInstruction(text string) Option {
	return func(o *options) {
		o.instruction = text
	}
}

// WithResponseFormat requests a structured answer. Only used by Generate;
// agents take the format per Create call.
func WithResponseFormat(f *ResponseFormat) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithTools registers tools with the conversation. May be given more than once.
func WithTools(tools ...Tool) Option {
	return func(o *options) {
		o.tools = append(o.tools, tools...)
	}
}

// WithMiddleware installs registry middleware (see Registry.Use).
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithRegistryOptions configures the conversation's tool registry.
func WithRegistryOptions(opts ...RegistryOption) Option {
	return func(o *options) {
		o.registry = append(o.registry, opts...)
	}
}

// WithLogger sets the logger. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
