// Package testutil provides test helpers for lazyopenai (MockTool, ScriptedCompleter).
package testutil

import (
	"context"

	"github.com/narumiruna/lazyopenai"
)

// MockTool is a configurable Tool implementation for tests.
type MockTool struct {
	NameVal   string
	DescVal   lazyopenai.ToolDescriptor
	ExecuteFn func(ctx context.Context, args []byte) (string, error)
}

// Name returns the tool name.
func (m *MockTool) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Descriptor returns DescVal, filling in the name and strict flag when unset.
func (m *MockTool) Descriptor() lazyopenai.ToolDescriptor {
	d := m.DescVal
	if d.Name == "" {
		d.Name = m.Name()
		d.Strict = true
	}
	if d.Description == "" {
		d.Description = d.Name
	}
	return d
}

// Execute runs ExecuteFn if set, otherwise returns an empty result.
func (m *MockTool) Execute(ctx context.Context, args []byte) (string, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, args)
	}
	return "", nil
}

// Ensure MockTool implements Tool.
var _ lazyopenai.Tool = (*MockTool)(nil)
