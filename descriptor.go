package lazyopenai

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// JSONType is the JSON Schema type assigned to a tool parameter.
type JSONType string

// Parameter types understood by the model side.
const (
	TypeString  JSONType = "string"
	TypeNumber  JSONType = "number"
	TypeBoolean JSONType = "boolean"
	TypeObject  JSONType = "object"
	TypeArray   JSONType = "array"
	TypeNull    JSONType = "null"
)

// resolveJSONType maps a declared type name onto a JSONType. Integers collapse
// to number. Unknown or empty names degrade to object and report ok=false.
func resolveJSONType(name string) (JSONType, bool) {
	switch JSONType(name) {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeNull:
		return JSONType(name), true
	}
	if name == "integer" {
		return TypeNumber, true
	}
	return TypeObject, false
}

// ParameterSpec describes one tool parameter.
type ParameterSpec struct {
	Name        string
	Type        JSONType
	Description string
	Required    bool

	// degraded is set when the declared type was not recognized; validation
	// then accepts any value for the parameter.
	degraded bool
}

// Degraded reports whether the parameter type fell back to object.
func (p ParameterSpec) Degraded() bool { return p.degraded }

// ToolDescriptor is the machine-readable description of a tool shown to the model.
// It is a value type; Build and DescribeStruct return fresh copies.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  []ParameterSpec
	Strict      bool
}

// ParametersSchema renders the parameters as a JSON Schema object with
// additionalProperties: false.
func (d ToolDescriptor) ParametersSchema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Schema renders the full function tool definition:
//
//	{"type":"function","name":…,"description":…,"parameters":{…},"strict":true}
func (d ToolDescriptor) Schema() map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        d.Name,
		"description": d.Description,
		"parameters":  d.ParametersSchema(),
		"strict":      d.Strict,
	}
}

// RequiredNames returns the names of required parameters in declaration order.
func (d ToolDescriptor) RequiredNames() []string {
	out := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// ParamOption configures a single parameter added through DescriptorBuilder.
type ParamOption func(*ParameterSpec)

// Optional marks the parameter as having a default value, so it is not required.
func Optional() ParamOption {
	return func(p *ParameterSpec) {
		p.Required = false
	}
}

// DescriptorBuilder assembles a ToolDescriptor from explicit parameter declarations.
type DescriptorBuilder struct {
	d     ToolDescriptor
	index map[string]int
}

// Describe starts a descriptor for the tool name. The description is the first
// non-empty line of doc, or name when doc is blank.
func Describe(name, doc string) *DescriptorBuilder {
	return &DescriptorBuilder{
		d: ToolDescriptor{
			Name:        name,
			Description: describeFromDoc(name, doc),
			Strict:      true,
		},
		index: make(map[string]int),
	}
}

// Param declares a parameter. typ is a JSON Schema type name ("integer" is
// accepted as number); anything unrecognized degrades to object. An empty
// description defaults to the parameter name. Declaring the same name twice
// replaces the earlier declaration in place.
func (b *DescriptorBuilder) Param(name, typ, description string, opts ...ParamOption) *DescriptorBuilder {
	jt, ok := resolveJSONType(typ)
	return b.param(name, jt, description, !ok, opts...)
}

// String declares a string parameter.
func (b *DescriptorBuilder) String(name, description string, opts ...ParamOption) *DescriptorBuilder {
	return b.param(name, TypeString, description, false, opts...)
}

// Number declares a number parameter.
func (b *DescriptorBuilder) Number(name, description string, opts ...ParamOption) *DescriptorBuilder {
	return b.param(name, TypeNumber, description, false, opts...)
}

// Boolean declares a boolean parameter.
func (b *DescriptorBuilder) Boolean(name, description string, opts ...ParamOption) *DescriptorBuilder {
	return b.param(name, TypeBoolean, description, false, opts...)
}

// Object declares an object parameter.
func (b *DescriptorBuilder) Object(name, description string, opts ...ParamOption) *DescriptorBuilder {
	return b.param(name, TypeObject, description, false, opts...)
}

// Array declares an array parameter.
func (b *DescriptorBuilder) Array(name, description string, opts ...ParamOption) *DescriptorBuilder {
	return b.param(name, TypeArray, description, false, opts...)
}

func (b *DescriptorBuilder) param(name string, typ JSONType, description string, degraded bool, opts ...ParamOption) *DescriptorBuilder {
	description = nonEmpty(description, name)
	if degraded {
		log.Warn().
			Str("tool", b.d.Name).
			Str("parameter", name).
			Msg("schema generation degraded: unrecognized parameter type, using object")
	}
	p := ParameterSpec{
		Name:        name,
		Type:        typ,
		Description: description,
		Required:    true,
		degraded:    degraded,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if i, ok := b.index[name]; ok {
		b.d.Parameters[i] = p
		return b
	}
	b.index[name] = len(b.d.Parameters)
	b.d.Parameters = append(b.d.Parameters, p)
	return b
}

// Build returns the descriptor. The builder may keep being used; later
// changes do not affect descriptors already built.
func (b *DescriptorBuilder) Build() ToolDescriptor {
	d := b.d
	d.Parameters = append([]ParameterSpec(nil), b.d.Parameters...)
	return d
}

func describeFromDoc(name, doc string) string {
	for line := range strings.SplitSeq(doc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return name
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
