package lazyopenai_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narumiruna/lazyopenai"
	"github.com/narumiruna/lazyopenai/testutil"
)

type addArgs struct {
	A float64 `json:"a" description:"First number"`
	B float64 `json:"b" description:"Second number"`
}

func addNumbers(t *testing.T) lazyopenai.Tool {
	t.Helper()
	tool, err := lazyopenai.NewTool("add_numbers", "Add two numbers", func(_ context.Context, a addArgs) (float64, error) {
		return a.A + a.B, nil
	})
	require.NoError(t, err)
	return tool
}

func call(id, name, args string) lazyopenai.ToolCall {
	return lazyopenai.ToolCall{ID: id, Name: name, Arguments: args}
}

func roles(msgs []lazyopenai.Message) []lazyopenai.Role {
	out := make([]lazyopenai.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestSend_ToolRoundTrip(t *testing.T) {
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.ToolCallsCompletion(call("call_1", "add_numbers", `{"a":100,"b":10}`))),
		testutil.Respond(testutil.StopCompletion("110")),
	)
	got, err := lazyopenai.Send(context.Background(), c, "100 + 10 = ?", lazyopenai.WithTools(addNumbers(t)))
	require.NoError(t, err)
	assert.Equal(t, "110", got)

	reqs := c.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "add_numbers", reqs[0].Tools[0].Name)

	msgs := reqs[1].Messages
	assert.Equal(t, []lazyopenai.Role{lazyopenai.RoleUser, lazyopenai.RoleAssistant, lazyopenai.RoleTool}, roles(msgs))
	assert.Equal(t, "100 + 10 = ?", msgs[0].Content)
	assert.Equal(t, "add_numbers", msgs[1].ToolCalls[0].Name)
	assert.Equal(t, "110.0", msgs[2].Content)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
}

func TestCreate_UnknownToolIsSkipped(t *testing.T) {
	var logs bytes.Buffer
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.ToolCallsCompletion(
			call("call_1", "subtract_numbers", `{"a":1,"b":2}`),
			call("call_2", "add_numbers", `{"a":1,"b":2}`),
		)),
		testutil.Respond(testutil.StopCompletion("3")),
	)
	a, err := lazyopenai.NewAgent(c, lazyopenai.WithTools(addNumbers(t)), lazyopenai.WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	require.NoError(t, a.AddMessages("1 + 2 = ?"))
	got, err := a.CreateText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	reqs := c.Requests()
	require.Len(t, reqs, 2, "follow-up request must still be issued")
	msgs := reqs[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "call_2", msgs[2].ToolCallID)
	assert.Equal(t, "3.0", msgs[2].Content)
	assert.Contains(t, logs.String(), "subtract_numbers")
	assert.Contains(t, logs.String(), "tool not found")
}

func TestCreate_OnlyUnknownTools(t *testing.T) {
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.ToolCallsCompletion(call("call_1", "subtract_numbers", `{}`))),
		testutil.Respond(testutil.StopCompletion("cannot subtract")),
	)
	got, err := lazyopenai.Send(context.Background(), c, "1 - 2 = ?", lazyopenai.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "cannot subtract", got)
	reqs := c.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []lazyopenai.Role{lazyopenai.RoleUser, lazyopenai.RoleAssistant}, roles(reqs[1].Messages))
}

type mathAnswer struct {
	Steps       []string `json:"steps"`
	FinalAnswer string   `json:"final_answer"`
}

func TestParse_MissingParsedContent(t *testing.T) {
	c := testutil.NewScriptedCompleter(testutil.Respond(testutil.StopCompletion("x = -3.75")))
	_, err := lazyopenai.Parse[mathAnswer](context.Background(), c, "solve 8x + 7 = -23")
	require.ErrorIs(t, err, lazyopenai.ErrMissingParsedContent)
}

func TestParse_Success(t *testing.T) {
	want := mathAnswer{Steps: []string{"8x = -30", "x = -3.75"}, FinalAnswer: "x = -3.75"}
	c := testutil.NewScriptedCompleter(testutil.Respond(testutil.ParsedCompletion(want)))
	got, err := lazyopenai.Parse[mathAnswer](context.Background(), c, "solve 8x + 7 = -23",
		lazyopenai.WithInstruction("You are a helpful math tutor."))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	req := c.Requests()[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "mathAnswer", req.ResponseFormat.Name())
	assert.Equal(t, []lazyopenai.Role{lazyopenai.RoleSystem, lazyopenai.RoleUser}, roles(req.Messages))
	assert.Nil(t, req.Tools)
}

func TestParse_InvalidParsedContent(t *testing.T) {
	c := testutil.NewScriptedCompleter(testutil.Respond(testutil.ParsedCompletion(map[string]int{"answer": 1})))
	_, err := lazyopenai.Parse[mathAnswer](context.Background(), c, "solve")
	require.ErrorIs(t, err, lazyopenai.ErrInvalidParsedContent)
}

func TestCreate_EmptyChoices(t *testing.T) {
	c := testutil.NewScriptedCompleter(testutil.Respond(&lazyopenai.Completion{}))
	_, err := lazyopenai.Send(context.Background(), c, "hi")
	require.ErrorIs(t, err, lazyopenai.ErrEmptyCompletionChoices)
}

func TestCreate_MissingTextContent(t *testing.T) {
	c := testutil.NewScriptedCompleter(testutil.Respond(testutil.StopCompletion("")))
	_, err := lazyopenai.Send(context.Background(), c, "hi")
	require.ErrorIs(t, err, lazyopenai.ErrMissingTextContent)
}

func TestCreate_NoToolsOmitsField(t *testing.T) {
	c := testutil.NewScriptedCompleter(testutil.Respond(testutil.StopCompletion("hello")))
	_, err := lazyopenai.Send(context.Background(), c, "hi", lazyopenai.WithTools())
	require.NoError(t, err)
	assert.Nil(t, c.Requests()[0].Tools)
}

func TestCreate_OneMessagePerRoundAndCall(t *testing.T) {
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.ToolCallsCompletion(
			call("c1", "add_numbers", `{"a":1,"b":1}`),
			call("c2", "add_numbers", `{"a":2,"b":2}`),
		)),
		testutil.Respond(testutil.ToolCallsCompletion(call("c3", "add_numbers", `{"a":3,"b":3}`))),
		testutil.Respond(testutil.StopCompletion("done")),
	)
	a, err := lazyopenai.NewAgent(c, lazyopenai.WithTools(addNumbers(t)))
	require.NoError(t, err)
	require.NoError(t, a.AddMessage(lazyopenai.RoleUser, "add things"))
	_, err = a.CreateText(context.Background())
	require.NoError(t, err)

	msgs := a.Messages()
	assert.Equal(t, []lazyopenai.Role{
		lazyopenai.RoleUser,
		lazyopenai.RoleAssistant, lazyopenai.RoleTool, lazyopenai.RoleTool,
		lazyopenai.RoleAssistant, lazyopenai.RoleTool,
		lazyopenai.RoleAssistant,
	}, roles(msgs))
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, "2.0", msgs[2].Content)
	assert.Equal(t, "c2", msgs[3].ToolCallID)
	assert.Equal(t, "4.0", msgs[3].Content)
	assert.Equal(t, "6.0", msgs[5].Content)
	assert.Equal(t, "done", msgs[6].Content)
}

func TestCreate_ToolErrorSurfacedToModel(t *testing.T) {
	divide, err := lazyopenai.NewTool("divide", "Divide a by b", func(_ context.Context, a addArgs) (float64, error) {
		if a.B == 0 {
			return 0, errors.New("division by zero")
		}
		return a.A / a.B, nil
	})
	require.NoError(t, err)
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.ToolCallsCompletion(
			call("c1", "divide", `{"a":1,"b":0}`),
			call("c2", "divide", `{"a":"one"}`),
		)),
		testutil.Respond(testutil.StopCompletion("undefined")),
	)
	got, err := lazyopenai.Send(context.Background(), c, "1 / 0", lazyopenai.WithTools(divide), lazyopenai.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "undefined", got)

	msgs := c.Requests()[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "error: tool divide failed: division by zero", msgs[2].Content)
	assert.True(t, msgs[2].IsError)
	assert.Contains(t, msgs[3].Content, "error: invalid tool input:")
	assert.True(t, msgs[3].IsError)
	assert.False(t, msgs[1].IsError)
}

func TestCreate_LoopBoundExceeded(t *testing.T) {
	loop := testutil.Respond(testutil.ToolCallsCompletion(call("c", "add_numbers", `{"a":1,"b":1}`)))
	c := testutil.NewScriptedCompleter(loop, loop, loop)
	_, err := lazyopenai.Send(context.Background(), c, "loop", lazyopenai.WithTools(addNumbers(t)), lazyopenai.WithMaxRounds(2))
	require.ErrorIs(t, err, lazyopenai.ErrLoopBoundExceeded)
	assert.Len(t, c.Requests(), 2)
}

func TestCreate_UnhandledFinishReason(t *testing.T) {
	var logs bytes.Buffer
	c := testutil.NewScriptedCompleter(testutil.Respond(&lazyopenai.Completion{Choices: []lazyopenai.Choice{{
		FinishReason: lazyopenai.FinishReasonLength,
		Message:      lazyopenai.Message{Role: lazyopenai.RoleAssistant, Content: "truncated answ"},
	}}}))
	res, err := lazyopenai.Generate(context.Background(), c, "write a lot", lazyopenai.WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	assert.Equal(t, "truncated answ", res.Text)
	assert.Equal(t, lazyopenai.FinishReasonLength, res.FinishReason)
	assert.Contains(t, logs.String(), "unhandled finish reason")
}

func TestCreate_CompleterError(t *testing.T) {
	boom := errors.New("503 service unavailable")
	c := testutil.NewScriptedCompleter(testutil.Fail(boom))
	_, err := lazyopenai.Send(context.Background(), c, "hi")
	require.ErrorIs(t, err, boom)
}

func TestCreate_RequestFields(t *testing.T) {
	c := testutil.NewScriptedCompleter(testutil.Respond(testutil.StopCompletion("ok")))
	_, err := lazyopenai.Send(context.Background(), c, []string{"a", "b"},
		lazyopenai.WithModel("gpt-4o"),
		lazyopenai.WithTemperature(0.2),
		lazyopenai.WithMaxTokens(64),
	)
	require.NoError(t, err)
	req := c.Requests()[0]
	assert.Equal(t, "gpt-4o", req.Model)
	assert.InDelta(t, 0.2, req.Temperature, 1e-9)
	assert.Equal(t, 64, req.MaxTokens)
	assert.Nil(t, req.ResponseFormat)
	assert.Len(t, req.Messages, 2)
}

func TestAgent_MultiTurn(t *testing.T) {
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.StopCompletion("Hello!")),
		testutil.Respond(testutil.StopCompletion("You said hi.")),
	)
	a, err := lazyopenai.NewAgent(c, lazyopenai.WithInstruction("Be friendly."))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID())

	require.NoError(t, a.AddMessage(lazyopenai.RoleUser, "hi"))
	first, err := a.CreateText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello!", first)

	require.NoError(t, a.AddMessage(lazyopenai.RoleUser, "what did I say?"))
	second, err := a.CreateText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "You said hi.", second)

	reqs := c.Requests()
	assert.Equal(t, []lazyopenai.Role{
		lazyopenai.RoleSystem, lazyopenai.RoleUser, lazyopenai.RoleAssistant, lazyopenai.RoleUser,
	}, roles(reqs[1].Messages))
	assert.Len(t, a.Messages(), 5)
}

func TestAgent_AskKeepsTurnsTogether(t *testing.T) {
	echo := lazyopenai.CompleterFunc(func(_ context.Context, req lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
		time.Sleep(5 * time.Millisecond)
		last := req.Messages[len(req.Messages)-1]
		return testutil.StopCompletion("echo: " + last.Content), nil
	})
	a, err := lazyopenai.NewAgent(echo)
	require.NoError(t, err)

	const askers = 8
	var wg sync.WaitGroup
	for i := range askers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := string(rune('a' + i))
			got, err := a.Ask(context.Background(), q)
			assert.NoError(t, err)
			assert.Equal(t, "echo: "+q, got)
		}()
	}
	wg.Wait()

	msgs := a.Messages()
	require.Len(t, msgs, 2*askers)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, lazyopenai.RoleUser, msgs[i].Role, i)
		assert.Equal(t, lazyopenai.RoleAssistant, msgs[i+1].Role, i+1)
		assert.Equal(t, "echo: "+msgs[i].Content, msgs[i+1].Content)
	}
}

func TestAgent_AddMessageValidation(t *testing.T) {
	a, err := lazyopenai.NewAgent(testutil.NewScriptedCompleter())
	require.NoError(t, err)
	require.ErrorIs(t, a.AddMessage("robot", "beep"), lazyopenai.ErrInvalidRole)
	require.ErrorIs(t, a.AddMessage(lazyopenai.RoleTool, "1"), lazyopenai.ErrMissingToolCallID)
	require.NoError(t, a.AddToolMessage("1", "call_1"))
	require.ErrorIs(t, a.AddMessages(42), lazyopenai.ErrInvalidInput)
	assert.Len(t, a.Messages(), 1)

	_, err = lazyopenai.NewAgent(nil)
	require.ErrorIs(t, err, lazyopenai.ErrNilCompleter)
}

func TestAgent_RegistryAddsToolsLater(t *testing.T) {
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.StopCompletion("no tools")),
		testutil.Respond(testutil.StopCompletion("with tools")),
	)
	a, err := lazyopenai.NewAgent(c)
	require.NoError(t, err)
	require.NoError(t, a.AddMessages("hi"))
	_, err = a.CreateText(context.Background())
	require.NoError(t, err)
	a.Registry().Register(addNumbers(t))
	_, err = a.CreateText(context.Background())
	require.NoError(t, err)
	reqs := c.Requests()
	assert.Nil(t, reqs[0].Tools)
	assert.Len(t, reqs[1].Tools, 1)
}

func TestCreateAs(t *testing.T) {
	c := testutil.NewScriptedCompleter(testutil.Respond(testutil.ParsedCompletion(mathAnswer{Steps: []string{}, FinalAnswer: "4"})))
	a, err := lazyopenai.NewAgent(c)
	require.NoError(t, err)
	require.NoError(t, a.AddMessages("2 + 2"))
	got, err := lazyopenai.CreateAs[mathAnswer](context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "4", got.FinalAnswer)
}

func TestAgent_Start(t *testing.T) {
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.ToolCallsCompletion(call("c1", "add_numbers", `{"a":100,"b":10}`))),
		testutil.Respond(testutil.StopCompletion("110")),
	)
	a, err := lazyopenai.NewAgent(c, lazyopenai.WithTools(addNumbers(t)))
	require.NoError(t, err)
	require.NoError(t, a.AddMessages("100 + 10 = ?"))

	out, ok := <-a.Start(context.Background(), nil)
	require.True(t, ok)
	require.NoError(t, out.Err)
	assert.Equal(t, "110", out.Result.Text)
	assert.Len(t, a.Messages(), 4)
}

func TestAgent_StartCancellation(t *testing.T) {
	entered := make(chan struct{})
	blocking := func(ctx context.Context, _ lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := testutil.NewScriptedCompleter(
		testutil.Respond(testutil.ToolCallsCompletion(call("c1", "add_numbers", `{"a":1,"b":1}`))),
		blocking,
	)
	a, err := lazyopenai.NewAgent(c, lazyopenai.WithTools(addNumbers(t)))
	require.NoError(t, err)
	require.NoError(t, a.AddMessages("1 + 1"))

	ctx, cancel := context.WithCancel(context.Background())
	ch := a.Start(ctx, nil)
	<-entered
	cancel()

	select {
	case out := <-ch:
		require.ErrorIs(t, out.Err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not finish after cancellation")
	}
	_, open := <-ch
	assert.False(t, open)
	// appended messages are not rolled back
	assert.Equal(t, []lazyopenai.Role{lazyopenai.RoleUser, lazyopenai.RoleAssistant, lazyopenai.RoleTool}, roles(a.Messages()))
}

func TestAgents_Independent(t *testing.T) {
	shared := lazyopenai.CompleterFunc(func(_ context.Context, req lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
		last := req.Messages[len(req.Messages)-1]
		return testutil.StopCompletion("echo: " + last.Content), nil
	})
	agents := make([]*lazyopenai.Agent, 4)
	for i := range agents {
		a, err := lazyopenai.NewAgent(shared)
		require.NoError(t, err)
		agents[i] = a
	}
	chans := make([]<-chan lazyopenai.Outcome, len(agents))
	for i, a := range agents {
		require.NoError(t, a.AddMessages(string(rune('a'+i))))
		chans[i] = a.Start(context.Background(), nil)
	}
	for i, ch := range chans {
		out := <-ch
		require.NoError(t, out.Err)
		assert.Equal(t, "echo: "+string(rune('a'+i)), out.Result.Text)
		assert.Len(t, agents[i].Messages(), 2)
	}
	assert.NotEqual(t, agents[0].ID(), agents[1].ID())
}
