package lazyopenai

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DefaultToolTimeout is the registry's default per-call timeout.
const DefaultToolTimeout = 30 * time.Second

// Registry holds tools by name and executes them with timeout, hooks and optional panic recovery.
// Descriptors are reported in registration order.
type Registry struct {
	tools       map[string]Tool // wrapped with middlewares, used by Execute
	rawTools    map[string]Tool // unwrapped, used by Use() to re-apply middlewares from scratch
	order       []string
	opts        registryOptions
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		timeout:       DefaultToolTimeout,
		recoverPanics: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		tools:    make(map[string]Tool),
		rawTools: make(map[string]Tool),
		opts:     o,
	}
}

// Register adds tools. Stored middlewares (see Use) are applied before registration.
// A tool whose name is already registered replaces the earlier one and keeps its position.
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := t.Name()
		if _, exists := r.rawTools[name]; !exists {
			r.order = append(r.order, name)
		}
		r.rawTools[name] = t
		r.tools[name] = r.wrap(t)
	}
}

// Lookup returns the tool with the given name (after middlewares are applied), or (nil, false).
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Descriptors returns the descriptors sent to the model, in registration order.
// It returns nil when the registry is empty.
func (r *Registry) Descriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil
	}
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor())
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Use stores the given middlewares and reapplies them from scratch to all registered tools (onion order:
// first middleware is outermost). Tools registered after Use will also get these middlewares applied.
// Calling Use multiple times replaces the middleware chain.
func (r *Registry) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = middlewares
	for name, raw := range r.rawTools {
		r.tools[name] = r.wrap(raw)
	}
}

func (r *Registry) wrap(t Tool) Tool {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		t = r.middlewares[i](t)
	}
	return t
}

// Execute runs one tool call and returns its text output.
// Unknown names return ErrToolNotFound. When the per-call timeout fires the error wraps ErrTimeout.
// The after-execution hook (WithOnAfterExecute) is always invoked with the final summary.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (out string, err error) {
	tool, ok := r.Lookup(call.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}

	timeout := r.opts.timeout
	if tm, ok := tool.(ToolMetadata); ok && tm.Timeout() > 0 {
		timeout = tm.Timeout()
	}
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	summary := ExecutionSummary{CallID: call.ID, ToolName: call.Name}
	start := time.Now()
	// Recover defer is registered after onAfter so it runs first on panic and sets summary.Error before the hook runs.
	defer func() {
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, summary, time.Since(start))
		}
	}()
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				summary.Error = &SystemError{Err: &panicError{p: p}}
				out, err = "", summary.Error
			}
		}()
	}

	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}

	summary.Output, summary.Error = tool.Execute(ctx, []byte(call.Arguments))
	if summary.Error != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		summary.Error = fmt.Errorf("%w: %s exceeded %s", ErrTimeout, call.Name, timeout)
	}
	return summary.Output, summary.Error
}
