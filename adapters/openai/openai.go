// Package openai implements lazyopenai.Completer over the OpenAI and Azure
// OpenAI chat completion APIs.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/narumiruna/lazyopenai"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "gpt-4o-mini"

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Client is a Completer backed by go-openai. Safe for concurrent use.
type Client struct {
	client *goopenai.Client
	model  string
}

type options struct {
	apiKey     string
	baseURL    string
	azure      bool
	endpoint   string
	apiVersion string
	model      string
	httpClient *http.Client
}

// Option configures New.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides the API base URL (e.g. a proxy or a compatible server).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithAzure targets an Azure OpenAI resource. The model name is used as the deployment name.
func WithAzure(endpoint, apiVersion string) Option {
	return func(o *options) {
		o.azure = true
		o.endpoint = endpoint
		o.apiVersion = apiVersion
	}
}

// WithModel sets the default model for requests that do not name one.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	o := options{model: DefaultModel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var cfg goopenai.ClientConfig
	if o.azure {
		if o.endpoint == "" {
			return nil, errors.New("openai: azure endpoint is required")
		}
		cfg = goopenai.DefaultAzureConfig(o.apiKey, o.endpoint)
		if o.apiVersion != "" {
			cfg.APIVersion = o.apiVersion
		}
	} else {
		cfg = goopenai.DefaultConfig(o.apiKey)
		if o.baseURL != "" {
			cfg.BaseURL = o.baseURL
		}
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return &Client{client: goopenai.NewClientWithConfig(cfg), model: o.model}, nil
}

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, req lazyopenai.CompletionRequest) (*lazyopenai.Completion, error) {
	creq := c.buildRequest(req)
	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	out := &lazyopenai.Completion{Choices: make([]lazyopenai.Choice, 0, len(resp.Choices))}
	for _, ch := range resp.Choices {
		choice := lazyopenai.Choice{
			FinishReason: lazyopenai.FinishReason(ch.FinishReason),
			Message:      fromChatMessage(ch.Message),
		}
		if req.ResponseFormat != nil && ch.Message.Content != "" && ch.Message.Refusal == "" {
			choice.Parsed = json.RawMessage(ch.Message.Content)
		}
		out.Choices = append(out.Choices, choice)
	}
	return out, nil
}

func (c *Client) buildRequest(req lazyopenai.CompletionRequest) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	creq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)),
		Temperature: temperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, toChatMessage(m))
	}
	for _, d := range req.Tools {
		creq.Tools = append(creq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Strict:      d.Strict,
				Parameters:  d.ParametersSchema(),
			},
		})
	}
	if f := req.ResponseFormat; f != nil {
		creq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   f.Name(),
				Schema: rawSchema(f.Schema()),
				Strict: true,
			},
		}
	}
	return creq
}

// temperature converts to the wire type. go-openai omits a zero temperature,
// which the API reads as 1, so zero is sent as the smallest positive value.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

type rawSchema map[string]any

func (s rawSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

func toChatMessage(m lazyopenai.Message) goopenai.ChatCompletionMessage {
	out := goopenai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, goopenai.ToolCall{
			ID:   tc.ID,
			Type: goopenai.ToolTypeFunction,
			Function: goopenai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func fromChatMessage(m goopenai.ChatCompletionMessage) lazyopenai.Message {
	out := lazyopenai.Message{
		Role:    lazyopenai.RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, lazyopenai.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

var _ lazyopenai.Completer = (*Client)(nil)
