// Package anthropic implements lazyopenai.Completer over the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/narumiruna/lazyopenai"
)

const (
	// DefaultModel is used when neither the client nor the request names a model.
	DefaultModel = "claude-sonnet-4-20250514"
	// DefaultMaxTokens is sent when the request does not cap the output; the API requires a value.
	DefaultMaxTokens = 4096
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("anthropic: api key is required")

// Client is a Completer backed by anthropic-sdk-go. Safe for concurrent use.
type Client struct {
	client anthropic.Client
	model  string
}

type options struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	httpClient *http.Client
}

// Option configures New.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel sets the default model for requests that do not name one.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithMaxRetries sets how many times the SDK retries failed requests. Negative keeps the SDK default.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	o := options{model: DefaultModel, maxRetries: -1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(o.apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(o.maxRetries))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	return &Client{client: anthropic.NewClient(reqOpts...), model: o.model}, nil
}

// Complete sends one Messages API request. Response formats are expressed as a
// schema instruction in the system prompt; the text answer is returned as Parsed.
func (c *Client) Complete(ctx context.Context, req lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	msg := lazyopenai.Message{Role: lazyopenai.RoleAssistant}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			inputJSON, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic tool_use input: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, lazyopenai.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(inputJSON),
			})
		}
	}
	msg.Content = text.String()

	choice := lazyopenai.Choice{
		FinishReason: finishReason(resp.StopReason),
		Message:      msg,
	}
	if req.ResponseFormat != nil {
		if obj := extractJSON(msg.Content); obj != "" {
			choice.Parsed = json.RawMessage(obj)
		}
	}
	return &lazyopenai.Completion{Choices: []lazyopenai.Choice{choice}}, nil
}

func (c *Client) buildParams(req lazyopenai.CompletionRequest) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case lazyopenai.RoleSystem:
			system = append(system, m.Content)
		case lazyopenai.RoleUser:
			params.Messages = appendBlocks(params.Messages, anthropic.MessageParamRoleUser, anthropic.NewTextBlock(m.Content))
		case lazyopenai.RoleTool:
			params.Messages = appendBlocks(params.Messages, anthropic.MessageParamRoleUser,
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		case lazyopenai.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(nonEmptyArgs(tc.Arguments)), tc.Name))
			}
			if len(blocks) > 0 {
				params.Messages = appendBlocks(params.Messages, anthropic.MessageParamRoleAssistant, blocks...)
			}
		default:
			return params, fmt.Errorf("%w: %q", lazyopenai.ErrInvalidRole, m.Role)
		}
	}

	if f := req.ResponseFormat; f != nil {
		schema, err := json.Marshal(f.Schema())
		if err != nil {
			return params, fmt.Errorf("anthropic response format: %w", err)
		}
		system = append(system, "Respond only with a single JSON object that conforms to this JSON Schema, without code fences or commentary:\n"+string(schema))
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	for _, d := range req.Tools {
		schema := d.ParametersSchema()
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   d.RequiredNames(),
				},
			},
		})
	}
	return params, nil
}

// appendBlocks adds blocks to the last message when it has the same role, so
// consecutive tool results travel in one user turn.
func appendBlocks(msgs []anthropic.MessageParam, role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) []anthropic.MessageParam {
	if n := len(msgs); n > 0 && msgs[n-1].Role == role {
		msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
		return msgs
	}
	return append(msgs, anthropic.MessageParam{Role: role, Content: blocks})
}

func finishReason(r anthropic.StopReason) lazyopenai.FinishReason {
	switch r {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return lazyopenai.FinishReasonStop
	case anthropic.StopReasonToolUse:
		return lazyopenai.FinishReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		return lazyopenai.FinishReasonLength
	case anthropic.StopReasonRefusal:
		return lazyopenai.FinishReasonContentFilter
	}
	return lazyopenai.FinishReason(r)
}

// extractJSON returns the outermost JSON object in text, tolerating code fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	obj := text[start : end+1]
	if !json.Valid([]byte(obj)) {
		return ""
	}
	return obj
}

func nonEmptyArgs(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	return args
}

var _ lazyopenai.Completer = (*Client)(nil)
