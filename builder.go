package lazyopenai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// tool is the internal implementation of Tool built by NewTool, NewFuncTool or NewStructTool.
type tool struct {
	descriptor ToolDescriptor
	execute    func(context.Context, []byte) (string, error)
	opts       toolOptions
}

// NewTool builds a Tool from an argument struct T and a typed function. The
// descriptor is reflected from T's fields (see DescribeStruct); arguments are
// validated before fn runs and its result is stringified for the model.
func NewTool[T any, R any](
	name, doc string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...ToolOption,
) (Tool, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: tool %s handler must not be nil", ErrInvalidInput, name)
	}
	ext, err := NewExtractor[T](name, doc)
	if err != nil {
		return nil, err
	}
	execute := func(ctx context.Context, argsJSON []byte) (string, error) {
		args, err := ext.ParseAndValidate(argsJSON)
		if err != nil {
			return "", err
		}
		res, err := fn(ctx, args)
		if err != nil {
			return "", wrapHandlerError(name, err)
		}
		return stringify(res)
	}
	return newTool(ext.Descriptor(), execute, opts), nil
}

// Args holds the decoded arguments of a NewFuncTool call.
type Args map[string]any

// Has reports whether key was supplied.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// String returns the string argument key, or "" when absent or not a string.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Float returns the numeric argument key, or 0.
func (a Args) Float(key string) float64 {
	f, _ := a[key].(float64)
	return f
}

// Bool returns the boolean argument key, or false.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Decode re-encodes the arguments into v.
func (a Args) Decode(v any) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// NewFuncTool builds a Tool from an explicit descriptor (see Describe) and a
// function over the decoded arguments.
func NewFuncTool(desc ToolDescriptor, fn func(ctx context.Context, args Args) (any, error), opts ...ToolOption) (Tool, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: tool %s handler must not be nil", ErrInvalidInput, desc.Name)
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("%w: tool name must not be empty", ErrInvalidInput)
	}
	v, err := compileArgsValidator(desc)
	if err != nil {
		return nil, err
	}
	desc.Parameters = append([]ParameterSpec(nil), desc.Parameters...)
	execute := func(ctx context.Context, argsJSON []byte) (string, error) {
		if err := v.Validate(argsJSON); err != nil {
			return "", err
		}
		args := Args{}
		if err := json.Unmarshal(normalizeArgs(argsJSON), &args); err != nil {
			return "", wrapJSONParseError(err)
		}
		res, err := fn(ctx, args)
		if err != nil {
			return "", wrapHandlerError(desc.Name, err)
		}
		return stringify(res)
	}
	return newTool(desc, execute, opts), nil
}

// Callable is a type that declares its own arguments: its exported fields are
// the parameters and Call runs the tool on a populated value.
//
// The tool name defaults to the snake_case type name; implement
// ToolName() string to override it. Implement Doc() string to provide
// the description.
type Callable interface {
	Call(ctx context.Context) (any, error)
}

type toolNamer interface{ ToolName() string }

type documented interface{ Doc() string }

// NewStructTool builds a Tool from a Callable argument type.
func NewStructTool[T Callable](opts ...ToolOption) (Tool, error) {
	typ := reflect.TypeFor[T]()
	sample := newSample[T]()
	name := snakeCase(indirect(typ).Name())
	if n, ok := any(sample).(toolNamer); ok {
		name = n.ToolName()
	}
	if name == "" {
		return nil, fmt.Errorf("%w: cannot derive tool name from %v", ErrInvalidInput, typ)
	}
	var doc string
	if d, ok := any(sample).(documented); ok {
		doc = d.Doc()
	}
	return NewTool(name, doc, func(ctx context.Context, args T) (any, error) {
		return args.Call(ctx)
	}, opts...)
}

func newTool(d ToolDescriptor, execute func(context.Context, []byte) (string, error), opts []ToolOption) *tool {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &tool{descriptor: d, execute: execute, opts: o}
}

func (t *tool) Name() string { return t.descriptor.Name }

func (t *tool) Descriptor() ToolDescriptor {
	d := t.descriptor
	d.Parameters = append([]ParameterSpec(nil), t.descriptor.Parameters...)
	return d
}

func (t *tool) Execute(ctx context.Context, argsJSON []byte) (string, error) {
	return t.execute(ctx, argsJSON)
}

func (t *tool) Timeout() time.Duration { return t.opts.timeout }

// wrapHandlerError passes through ClientError; wraps other errors as ToolExecutionError.
func wrapHandlerError(name string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) {
		return err
	}
	return &ToolExecutionError{Tool: name, Err: err}
}

// stringify renders a tool result as message text. Floats keep a trailing
// ".0" when integral so the model sees 110.0 rather than 110.
func stringify(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case float64:
		return formatFloat(x, 64), nil
	case float32:
		return formatFloat(float64(x), 32), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case error:
		return x.Error(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", &SystemError{Err: err}
	}
	return string(b), nil
}

// formatFloat renders the shortest text that round-trips at bitSize precision.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, bitSize)
	}
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func indirect(typ reflect.Type) reflect.Type {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}

// newSample returns a usable T: a zero value, or a pointer to a zero value
// when T is a pointer type, so optional methods can be called on it.
func newSample[T any]() T {
	var zero T
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Pointer {
		return reflect.New(typ.Elem()).Interface().(T)
	}
	return zero
}

var (
	_ Tool         = (*tool)(nil)
	_ ToolMetadata = (*tool)(nil)
)
