// Package lazyopenai is a convenience layer over LLM chat completion APIs with
// typed tool calling and structured output.
//
// # Overview
//
// A caller submits prompts, optional tools and an optional response format. The
// Agent sends the conversation to a Completer together with the tool
// descriptors, runs every tool the model asks for, appends the results to the
// conversation and asks again until the model answers with text or with an
// object that matches the response format.
//
// Pipeline: prompt → Buffer → Completer → tool_calls? → Registry.Execute → tool
// messages → Completer → … → stop → Result (text or parsed JSON).
//
// # Key concepts
//
//   - ToolDescriptor: the schema shown to the model, built explicitly with
//     Describe or reflected from an argument struct with DescribeStruct.
//   - Tool: anything with a name, a descriptor and Execute(ctx, argsJSON).
//     NewTool, NewFuncTool and NewStructTool cover the common shapes.
//   - Tool failures are surfaced to the model as tool result text so it can
//     react; unknown tools are logged and skipped.
//   - Completer: the remote completion boundary. See adapters/openai and
//     adapters/anthropic.
//
// # Example
//
//	type AddArgs struct {
//	    A float64 `json:"a" jsonschema:"description=First number"`
//	    B float64 `json:"b" jsonschema:"description=Second number"`
//	}
//	add, err := lazyopenai.NewTool("add_numbers", "Add two numbers",
//	    func(_ context.Context, in AddArgs) (float64, error) { return in.A + in.B, nil })
//	if err != nil { ... }
//	answer, err := lazyopenai.Send(ctx, client, "100 + 10 = ?", lazyopenai.WithTools(add))
package lazyopenai
