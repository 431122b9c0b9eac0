package lazyopenai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// schemaBaseURL is absolute so the compiler never resolves tool schemas
// against the working directory.
const schemaBaseURL = "mem:///tools/"

// Validatable is implemented by argument structs that need custom business validation.
// Called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// validateCustom runs Layer 2 (Validatable) if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// argsValidator checks tool arguments against the descriptor's parameter schema.
type argsValidator struct {
	schema *santhosh.Schema
}

// compileArgsValidator compiles the validation schema for d. Degraded parameters
// carry no type constraint so any value is accepted for them.
func compileArgsValidator(d ToolDescriptor) (*argsValidator, error) {
	data, err := json.Marshal(validationSchema(d))
	if err != nil {
		return nil, err
	}
	doc, err := santhosh.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	url := schemaBaseURL + schemaResourceName(d.Name) + ".json"
	c := santhosh.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema for tool %s: %w", d.Name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool %s: %w", d.Name, err)
	}
	return &argsValidator{schema: s}, nil
}

// Validate parses argsJSON and validates it. Parse and validation failures are ClientErrors.
func (v *argsValidator) Validate(argsJSON []byte) error {
	inst, err := santhosh.UnmarshalJSON(bytes.NewReader(normalizeArgs(argsJSON)))
	if err != nil {
		return wrapJSONParseError(err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return &ClientError{Reason: validationReason(err), Err: ErrValidation}
	}
	return nil
}

// validationReason renders the instance locations that failed, without the
// schema URL header, as one line.
func validationReason(err error) string {
	var ve *santhosh.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	causes := []*santhosh.ValidationError{ve}
	if _, ok := ve.ErrorKind.(*kind.Schema); ok && len(ve.Causes) > 0 {
		causes = ve.Causes
	}
	parts := make([]string, 0, len(causes))
	for _, c := range causes {
		for _, line := range strings.Split(c.Error(), "\n") {
			if line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- ")); line != "" {
				parts = append(parts, line)
			}
		}
	}
	return strings.Join(parts, "; ")
}

func validationSchema(d ToolDescriptor) map[string]any {
	schema := d.ParametersSchema()
	props := schema["properties"].(map[string]any)
	for _, p := range d.Parameters {
		if p.degraded {
			props[p.Name] = map[string]any{"description": p.Description}
		}
	}
	return schema
}

func schemaResourceName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "tool"
	}
	return b.String()
}
