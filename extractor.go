package lazyopenai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	invopop "github.com/invopop/jsonschema"
)

// DescribeStruct builds a ToolDescriptor from the fields of argument struct T,
// in declaration order.
//
// Field names follow the json tag. The description comes from
// `jsonschema:"description=…"`, `jsonschema_description:"…"` or a plain
// `description:"…"` tag and defaults to the field name. A field is optional
// when its json tag has omitempty or it declares a default
// (`jsonschema:"default=…"` or `default:"…"`). Interfaces and other kinds
// without a JSON mapping degrade to object.
func DescribeStruct[T any](name, doc string) (ToolDescriptor, error) {
	return describeType(reflect.TypeFor[T](), name, doc)
}

func describeType(typ reflect.Type, name, doc string) (ToolDescriptor, error) {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return ToolDescriptor{}, fmt.Errorf("%w: tool arguments must be a struct, got %v", ErrInvalidInput, typ)
	}
	r := &invopop.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.ReflectFromType(typ)
	if schema == nil {
		return ToolDescriptor{}, errNilSchema
	}
	required := make(map[string]bool, len(schema.Required))
	for _, n := range schema.Required {
		required[n] = true
	}
	fields := fieldsByJSONName(typ)

	b := Describe(name, doc)
	if schema.Properties == nil {
		return b.Build(), nil
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		key, prop := pair.Key, pair.Value
		field, hasField := fields[key]
		desc := prop.Description
		if desc == "" && hasField {
			desc = field.Tag.Get("description")
		}
		var opts []ParamOption
		hasDefault := prop.Default != nil || (hasField && field.Tag.Get("default") != "")
		if !required[key] || hasDefault {
			opts = append(opts, Optional())
		}
		jt, ok := jsonTypeOf(prop)
		b.param(key, jt, desc, !ok, opts...)
	}
	return b.Build(), nil
}

// jsonTypeOf reads the single JSON type of a reflected property. Schemas
// without a type (interfaces) or with unions report ok=false.
func jsonTypeOf(s *invopop.Schema) (JSONType, bool) {
	if s == nil || s.Type == "" {
		return TypeObject, false
	}
	return resolveJSONType(s.Type)
}

// fieldsByJSONName maps json property names to struct fields for the root struct.
func fieldsByJSONName(typ reflect.Type) map[string]reflect.StructField {
	out := make(map[string]reflect.StructField, typ.NumField())
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonName := strings.Split(field.Tag.Get("json"), ",")[0]
		switch jsonName {
		case "-":
			continue
		case "":
			jsonName = field.Name
		}
		out[jsonName] = field
	}
	return out
}

// Extractor couples the descriptor of argument struct T with argument
// validation. NewTool and NewStructTool use it; custom Tool implementations
// can use it directly.
type Extractor[T any] struct {
	descriptor ToolDescriptor
	validator  *argsValidator
}

// NewExtractor reflects T into a descriptor named name and compiles its validator.
func NewExtractor[T any](name, doc string) (*Extractor[T], error) {
	d, err := DescribeStruct[T](name, doc)
	if err != nil {
		return nil, err
	}
	v, err := compileArgsValidator(d)
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{descriptor: d, validator: v}, nil
}

// Descriptor returns the reflected descriptor.
func (e *Extractor[T]) Descriptor() ToolDescriptor {
	d := e.descriptor
	d.Parameters = append([]ParameterSpec(nil), e.descriptor.Parameters...)
	return d
}

// ParseAndValidate validates argsJSON against the descriptor (layer 1),
// deserializes it into T and runs Validatable.Validate() when T implements it
// (layer 2). Failures are ClientErrors so the message can go back to the model.
func (e *Extractor[T]) ParseAndValidate(argsJSON []byte) (T, error) {
	var zero T
	if err := e.validator.Validate(argsJSON); err != nil {
		return zero, err
	}
	var args T
	if err := json.Unmarshal(normalizeArgs(argsJSON), &args); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := runLayer2Validation(args); err != nil {
		if IsClientError(err) {
			return zero, err
		}
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return args, nil
}

// runLayer2Validation runs Validatable.Validate() on args; if args does not implement Validatable,
// it tries &args for value types (pointer receiver). Never calls Validate twice for the same receiver.
func runLayer2Validation[T any](args T) error {
	if err := validateCustom(any(args)); err != nil {
		return err
	}
	if _, ok := any(args).(Validatable); ok {
		return nil
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	return validateCustom(any(&args))
}

// normalizeArgs treats an empty argument payload as an empty object.
func normalizeArgs(argsJSON []byte) []byte {
	if len(strings.TrimSpace(string(argsJSON))) == 0 {
		return []byte("{}")
	}
	return argsJSON
}
