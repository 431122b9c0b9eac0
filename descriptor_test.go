package lazyopenai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe_AddNumbers(t *testing.T) {
	t.Parallel()
	d := Describe("add_numbers", "Add two numbers").
		Number("a", "First number").
		Number("b", "Second number").
		Build()
	data, err := json.Marshal(d.Schema())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "function",
		"name": "add_numbers",
		"description": "Add two numbers",
		"parameters": {
			"type": "object",
			"properties": {
				"a": {"type": "number", "description": "First number"},
				"b": {"type": "number", "description": "Second number"}
			},
			"required": ["a", "b"],
			"additionalProperties": false
		},
		"strict": true
	}`, string(data))
}

func TestDescribe_RequiredEqualsParamsWithoutDefault(t *testing.T) {
	t.Parallel()
	d := Describe("greet", "").
		String("name", "").
		Boolean("shout", "", Optional()).
		Number("times", "How many", Optional()).
		String("greeting", "").
		Build()
	assert.Equal(t, []string{"name", "greeting"}, d.RequiredNames())
	assert.Equal(t, []string{"name", "greeting"}, d.ParametersSchema()["required"])

	seen := map[string]int{}
	for _, p := range d.Parameters {
		seen[p.Name]++
	}
	assert.Len(t, seen, 4)
	for name, n := range seen {
		assert.Equal(t, 1, n, name)
	}
}

func TestDescribe_Defaults(t *testing.T) {
	t.Parallel()
	d := Describe("current_time", "\n  Get the current time.\n\n  More details here.").Build()
	assert.Equal(t, "Get the current time.", d.Description)
	assert.True(t, d.Strict)
	assert.Empty(t, d.Parameters)
	assert.Equal(t, []string{}, d.ParametersSchema()["required"])

	d = Describe("noop", "   ").String("x", "").Build()
	assert.Equal(t, "noop", d.Description)
	assert.Equal(t, "x", d.Parameters[0].Description)
}

func TestDescribe_ParamTypes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		typ      string
		want     JSONType
		degraded bool
	}{
		{"string", TypeString, false},
		{"number", TypeNumber, false},
		{"integer", TypeNumber, false},
		{"boolean", TypeBoolean, false},
		{"object", TypeObject, false},
		{"array", TypeArray, false},
		{"null", TypeNull, false},
		{"datetime", TypeObject, true},
		{"", TypeObject, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			d := Describe("t", "").Param("p", tt.typ, "").Build()
			require.Len(t, d.Parameters, 1)
			assert.Equal(t, tt.want, d.Parameters[0].Type)
			assert.Equal(t, tt.degraded, d.Parameters[0].Degraded())
			assert.Equal(t, "p", d.Parameters[0].Description)
		})
	}
}

func TestDescribe_DuplicateParamReplacesInPlace(t *testing.T) {
	t.Parallel()
	d := Describe("t", "").
		String("a", "first").
		Number("b", "").
		Boolean("a", "second", Optional()).
		Build()
	require.Len(t, d.Parameters, 2)
	assert.Equal(t, "a", d.Parameters[0].Name)
	assert.Equal(t, TypeBoolean, d.Parameters[0].Type)
	assert.Equal(t, "second", d.Parameters[0].Description)
	assert.False(t, d.Parameters[0].Required)
}

func TestDescriptorBuilder_BuildIsSnapshot(t *testing.T) {
	t.Parallel()
	b := Describe("t", "").String("a", "")
	first := b.Build()
	b.String("b", "")
	second := b.Build()
	assert.Len(t, first.Parameters, 1)
	assert.Len(t, second.Parameters, 2)
	assert.Equal(t, first, Describe("t", "").String("a", "").Build())
}
