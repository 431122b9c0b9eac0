package lazyopenai

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	customTypesMu sync.RWMutex
	customTypes   = make(map[reflect.Type]*jsonschema.Schema)
)

// RegisterType registers a custom Go type to be mapped to a JSON Schema type/format in
// generated response formats. emptyInstance must not be nil and jsonType must not be empty.
// Pointer fields (*T) use the same mapping as T. Call it at startup before the first
// NewResponseFormat.
func RegisterType(emptyInstance any, jsonType, format string) {
	if emptyInstance == nil {
		panic("lazyopenai: RegisterType emptyInstance must not be nil")
	}
	if jsonType == "" {
		panic("lazyopenai: RegisterType jsonType must not be empty")
	}
	t := reflect.TypeOf(emptyInstance)
	s := &jsonschema.Schema{Type: jsonType, Format: format}
	customTypesMu.Lock()
	defer customTypesMu.Unlock()
	customTypes[t] = s
}

// buildTypeSchemas returns a copy of registered type schemas for use in ForOptions.
func buildTypeSchemas() map[reflect.Type]*jsonschema.Schema {
	customTypesMu.RLock()
	defer customTypesMu.RUnlock()
	out := make(map[reflect.Type]*jsonschema.Schema, len(customTypes))
	for t, s := range customTypes {
		if s != nil {
			out[t] = s.CloneSchemas()
		}
	}
	return out
}

// ResponseFormat describes the structured object the model must answer with.
// It is immutable after construction and safe to share.
type ResponseFormat struct {
	name     string
	schema   map[string]any
	resolved *jsonschema.Resolved
}

// NewResponseFormat reflects T into a strict JSON Schema. The format name is
// derived from the type name ("response" for unnamed types).
func NewResponseFormat[T any]() (*ResponseFormat, error) {
	schemaMap, resolved, err := generateSchema[T](true)
	if err != nil {
		return nil, fmt.Errorf("response format: %w", err)
	}
	return &ResponseFormat{
		name:     formatName(reflect.TypeFor[T]()),
		schema:   schemaMap,
		resolved: resolved,
	}, nil
}

// NewResponseFormatFromSchema builds a format from a raw JSON Schema map. The
// map is copied before strict mode is applied; the caller's map is not mutated.
func NewResponseFormatFromSchema(name string, schemaMap map[string]any) (*ResponseFormat, error) {
	if schemaMap == nil {
		return nil, fmt.Errorf("%w: response format schema must not be nil", ErrInvalidInput)
	}
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("copy response format schema: %w", err)
	}
	var schemaCopy map[string]any
	if err := json.Unmarshal(data, &schemaCopy); err != nil {
		return nil, fmt.Errorf("copy response format schema: %w", err)
	}
	applyStrictMode(schemaCopy)
	stripSchemaIDs(schemaCopy)
	resolved, err := compileRawSchema(schemaCopy)
	if err != nil {
		return nil, fmt.Errorf("compile response format schema: %w", err)
	}
	return &ResponseFormat{
		name:     sanitizeFormatName(name),
		schema:   schemaCopy,
		resolved: resolved,
	}, nil
}

// Name returns the format name sent to the provider.
func (f *ResponseFormat) Name() string { return f.name }

// Schema returns a shallow copy of the JSON Schema. Nested maps are shared;
// callers must not mutate them.
func (f *ResponseFormat) Schema() map[string]any { return maps.Clone(f.schema) }

// Validate checks that raw is a JSON value conforming to the schema.
func (f *ResponseFormat) Validate(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParsedContent, err)
	}
	if err := f.resolved.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParsedContent, err)
	}
	return nil
}

// generateSchema produces a JSON Schema map and a resolved validator for type T.
// strict sets additionalProperties: false and marks every property required for
// all objects, as structured outputs require.
func generateSchema[T any](strict bool) (map[string]any, *jsonschema.Resolved, error) {
	opts := &jsonschema.ForOptions{TypeSchemas: buildTypeSchemas()}
	schema, err := jsonschema.For[T](opts)
	if err != nil {
		return nil, nil, err
	}
	if schema == nil {
		return nil, nil, errNilSchema
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, err
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, nil, err
	}
	enrichSchemaFromStructTags(schemaMap, reflect.TypeFor[T]())
	if strict {
		applyStrictMode(schemaMap)
	}
	stripSchemaIDs(schemaMap)
	resolved, err := compileRawSchema(schemaMap)
	if err != nil {
		return nil, nil, err
	}
	return schemaMap, resolved, nil
}

// enrichSchemaFromStructTags adds description and enum from struct tags to
// properties, descending into nested structs and slices of structs.
func enrichSchemaFromStructTags(schemaMap map[string]any, typ reflect.Type) {
	if schemaMap == nil || typ == nil {
		return
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return
	}
	props, ok := schemaMap["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return
	}
	jsonToField := fieldsByJSONName(typ)
	for key, val := range props {
		prop, ok := val.(map[string]any)
		if !ok {
			continue
		}
		field, ok := jsonToField[key]
		if !ok {
			continue
		}
		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}
		if enumStr := field.Tag.Get("enum"); enumStr != "" {
			parts := strings.Split(enumStr, ",")
			enum := make([]any, len(parts))
			for i, p := range parts {
				enum[i] = strings.TrimSpace(p)
			}
			prop["enum"] = enum
		}
		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.Struct:
			enrichSchemaFromStructTags(prop, ft)
		case reflect.Slice, reflect.Array:
			if items, ok := prop["items"].(map[string]any); ok {
				enrichSchemaFromStructTags(items, ft.Elem())
			}
		}
	}
}

// walkSchema recursively visits every map node in the schema tree (including $defs and definitions).
func walkSchema(schemaMap map[string]any, visit func(map[string]any)) {
	if schemaMap == nil {
		return
	}
	visit(schemaMap)
	for _, val := range schemaMap {
		switch v := val.(type) {
		case map[string]any:
			walkSchema(v, visit)
		case []any:
			for _, item := range v {
				if m2, ok := item.(map[string]any); ok {
					walkSchema(m2, visit)
				}
			}
		}
	}
}

// applyStrictMode sets additionalProperties: false for every object in the schema
// and lists every property as required.
func applyStrictMode(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		props, isObj := n["properties"].(map[string]any)
		if !isObj {
			return
		}
		n["additionalProperties"] = false
		keys := slices.Sorted(maps.Keys(props))
		if len(keys) == 0 {
			return
		}
		required := make([]any, len(keys))
		for i, k := range keys {
			required[i] = k
		}
		n["required"] = required
	})
}

var errNilSchema = errors.New("schema reflection returned nil")

// compileRawSchema compiles a raw JSON Schema map into a resolved validator. The map is not mutated.
func compileRawSchema(schemaMap map[string]any) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

// stripSchemaIDs removes id and $id from schema so resolution does not depend on them.
func stripSchemaIDs(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		delete(n, "id")
		delete(n, "$id")
	})
}

func formatName(typ reflect.Type) string {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil {
		return "response"
	}
	return sanitizeFormatName(typ.Name())
}

// sanitizeFormatName keeps [a-zA-Z0-9_-], the character set providers accept
// for format names.
func sanitizeFormatName(name string) string {
	out := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return r
		}
		return -1
	}, name)
	if out == "" {
		return "response"
	}
	return out
}
