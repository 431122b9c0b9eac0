package lazyopenai

import (
	"errors"
	"fmt"
)

// Sentinel errors for lazyopenai. Use errors.Is to check.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidRole       = fmt.Errorf("%w: invalid message role", ErrInvalidInput)
	ErrMissingToolCallID = fmt.Errorf("%w: tool message requires a tool call id", ErrInvalidInput)

	ErrToolNotFound = errors.New("tool not found")
	ErrTimeout      = errors.New("tool execution timeout")
	ErrValidation   = errors.New("validation failed")

	ErrEmptyCompletionChoices = errors.New("no completion choices returned")
	ErrMissingParsedContent   = errors.New("no completion parsed content returned")
	ErrMissingTextContent     = errors.New("no completion content returned")
	ErrInvalidParsedContent   = errors.New("completion parsed content does not match response format")
	ErrLoopBoundExceeded      = errors.New("tool call rounds exceeded limit")

	ErrNilCompleter = errors.New("completer must not be nil")
)

// ClientError is a tool input problem that is sent back to the model for
// self-correction (invalid JSON, schema validation failure, bad enum value).
// Reason must not carry stack traces, file paths or other host details.
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains (e.g. errors.Is(err, ErrValidation)).
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (panic, unmarshalable result).
// The model does not see the underlying message.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// ToolExecutionError wraps an error returned by a tool handler.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error()}
}

// panicError wraps a recovered panic value for SystemError; used by Registry and WithRecovery middleware.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
