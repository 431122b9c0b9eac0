package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/narumiruna/lazyopenai"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMockTool(t *testing.T) {
	m := &MockTool{
		NameVal: "test_tool",
		ExecuteFn: func(_ context.Context, _ []byte) (string, error) {
			return "done", nil
		},
	}
	assert.Equal(t, "test_tool", m.Name())
	d := m.Descriptor()
	assert.Equal(t, "test_tool", d.Name)
	assert.True(t, d.Strict)
	out, err := m.Execute(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestNewTestRegistry(t *testing.T) {
	m := &MockTool{NameVal: "m", ExecuteFn: func(_ context.Context, _ []byte) (string, error) {
		return "ok", nil
	}}
	reg := NewTestRegistry(m)
	require.NotNil(t, reg)
	all := reg.Tools()
	require.Len(t, all, 1)
	assert.Equal(t, "m", all[0].Name())
	out, err := reg.Execute(context.Background(), lazyopenai.ToolCall{ID: "1", Name: "m", Arguments: `{}`})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestScriptedCompleter(t *testing.T) {
	boom := errors.New("boom")
	c := NewScriptedCompleter(Respond(StopCompletion("hi")), Fail(boom))
	ctx := context.Background()

	resp, err := c.Complete(ctx, lazyopenai.CompletionRequest{Model: "a"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)

	_, err = c.Complete(ctx, lazyopenai.CompletionRequest{Model: "b"})
	require.ErrorIs(t, err, boom)

	_, err = c.Complete(ctx, lazyopenai.CompletionRequest{Model: "c"})
	require.ErrorIs(t, err, ErrScriptExhausted)

	reqs := c.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "c", reqs[2].Model)
}

func TestParsedCompletion(t *testing.T) {
	c := ParsedCompletion(map[string]int{"a": 1})
	assert.JSONEq(t, `{"a":1}`, string(c.Choices[0].Parsed))
	assert.Equal(t, lazyopenai.FinishReasonStop, c.Choices[0].FinishReason)
}
