// Package provider builds the Completer selected by config.Settings.
// Construct one per process and pass it to the conversations that need it.
package provider

import (
	"fmt"

	"github.com/narumiruna/lazyopenai"
	"github.com/narumiruna/lazyopenai/adapters/anthropic"
	"github.com/narumiruna/lazyopenai/adapters/openai"
	"github.com/narumiruna/lazyopenai/config"
)

// New validates s and returns the matching Completer.
func New(s *config.Settings) (lazyopenai.Completer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	model := s.ResolvedModel()
	switch p := s.ResolvedProvider(); p {
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithAPIKey(s.OpenAIAPIKey), openai.WithModel(model)}
		if s.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(s.OpenAIBaseURL))
		}
		return completer(openai.New(opts...))
	case config.ProviderAzure:
		return completer(openai.New(
			openai.WithAPIKey(s.AzureAPIKey),
			openai.WithAzure(s.AzureEndpoint, s.APIVersion),
			openai.WithModel(model),
		))
	case config.ProviderAnthropic:
		return completer(anthropic.New(anthropic.WithAPIKey(s.AnthropicAPIKey), anthropic.WithModel(model)))
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, p)
	}
}

// completer keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func completer[C lazyopenai.Completer](c C, err error) (lazyopenai.Completer, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
