package lazyopenai

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Middleware wraps a Tool with cross-cutting behavior (logging, recovery, timeout).
type Middleware func(Tool) Tool

// WithLogging returns a middleware that logs start, end, duration, and errors.
func WithLogging(logger zerolog.Logger) Middleware {
	return func(next Tool) Tool {
		return &loggingTool{toolBase: toolBase{next: next}, logger: logger}
	}
}

// WithRecovery returns a middleware that recovers panics and returns SystemError.
func WithRecovery() Middleware {
	return func(next Tool) Tool {
		return &recoveryTool{toolBase{next: next}}
	}
}

// WithTimeoutMiddleware returns a middleware that bounds each execution by d. Named with
// "Middleware" suffix to avoid collision with ToolOption WithTimeout. It adds a deadline on
// top of the registry's per-call timeout, so the shorter of the two wins.
func WithTimeoutMiddleware(d time.Duration) Middleware {
	return func(next Tool) Tool {
		return &timeoutTool{toolBase: toolBase{next: next}, timeout: d}
	}
}

// toolBase delegates Tool and ToolMetadata to the wrapped Tool; used by middleware wrappers.
type toolBase struct{ next Tool }

func (b *toolBase) Name() string               { return b.next.Name() }
func (b *toolBase) Descriptor() ToolDescriptor { return b.next.Descriptor() }

func (b *toolBase) Timeout() time.Duration {
	if tm, ok := b.next.(ToolMetadata); ok {
		return tm.Timeout()
	}
	return 0
}

type loggingTool struct {
	toolBase
	logger zerolog.Logger
}

func (m *loggingTool) Execute(ctx context.Context, args []byte) (string, error) {
	m.logger.Info().Str("tool", m.next.Name()).Msg("tool start")
	start := time.Now()
	res, err := m.next.Execute(ctx, args)
	dur := time.Since(start)
	if err != nil {
		m.logger.Error().Err(err).Str("tool", m.next.Name()).Dur("duration", dur).Msg("tool error")
		return "", err
	}
	m.logger.Info().Str("tool", m.next.Name()).Dur("duration", dur).Msg("tool end")
	return res, nil
}

type recoveryTool struct{ toolBase }

func (r *recoveryTool) Execute(ctx context.Context, args []byte) (res string, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = ""
			err = &SystemError{Err: &panicError{p: p}}
		}
	}()
	return r.next.Execute(ctx, args)
}

type timeoutTool struct {
	toolBase
	timeout time.Duration
}

func (t *timeoutTool) Execute(ctx context.Context, args []byte) (string, error) {
	if t.timeout <= 0 {
		return t.next.Execute(ctx, args)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Execute(ctx, args)
}
