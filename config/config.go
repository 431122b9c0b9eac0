// Package config loads lazyopenai settings: built-in defaults, then an
// optional YAML file, then the environment. API keys missing from both fall
// back to the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/narumiruna/lazyopenai"
	"github.com/narumiruna/lazyopenai/internal/credentials"
)

type Provider string

const (
	ProviderAuto      Provider = "auto"
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
	ProviderAnthropic Provider = "anthropic"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
)

var (
	ErrConflictingKeys = errors.New("both OPENAI_API_KEY and AZURE_OPENAI_API_KEY are set")
	ErrMissingKey      = errors.New("no API key configured")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Settings holds every tunable. Fields carry no envconfig defaults so values
// from the YAML file survive when the variable is unset.
type Settings struct {
	Provider Provider `yaml:"provider" envconfig:"LAZYOPENAI_PROVIDER"`

	OpenAIAPIKey  string `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`

	AzureAPIKey   string `yaml:"azure_openai_api_key" envconfig:"AZURE_OPENAI_API_KEY"`
	AzureEndpoint string `yaml:"azure_openai_endpoint" envconfig:"AZURE_OPENAI_ENDPOINT"`
	APIVersion    string `yaml:"openai_api_version" envconfig:"OPENAI_API_VERSION"`

	AnthropicAPIKey string `yaml:"anthropic_api_key" envconfig:"ANTHROPIC_API_KEY"`

	Model       string        `yaml:"model" envconfig:"OPENAI_MODEL"`
	Temperature float64       `yaml:"temperature" envconfig:"OPENAI_TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" envconfig:"OPENAI_MAX_TOKENS"`
	MaxRounds   int           `yaml:"max_rounds" envconfig:"LAZYOPENAI_MAX_ROUNDS"`
	ToolTimeout time.Duration `yaml:"tool_timeout" envconfig:"LAZYOPENAI_TOOL_TIMEOUT"`
	LogLevel    string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

func Defaults() Settings {
	return Settings{
		Provider:    ProviderAuto,
		MaxRounds:   lazyopenai.DefaultMaxRounds,
		ToolTimeout: lazyopenai.DefaultToolTimeout,
		LogLevel:    "info",
	}
}

// Load builds Settings. path may be empty; a named file that does not exist
// is an error.
func Load(path string) (*Settings, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.OpenAIAPIKey = credentials.GetOrEnv(credentials.KeyOpenAI, cfg.OpenAIAPIKey)
	cfg.AzureAPIKey = credentials.GetOrEnv(credentials.KeyAzure, cfg.AzureAPIKey)
	cfg.AnthropicAPIKey = credentials.GetOrEnv(credentials.KeyAnthropic, cfg.AnthropicAPIKey)

	cfg.Provider = Provider(strings.ToLower(string(cfg.Provider)))
	if cfg.Provider == "" {
		cfg.Provider = ProviderAuto
	}
	return &cfg, nil
}

// ResolvedProvider picks the backend. With auto: Azure when an Azure key and
// endpoint are present, then OpenAI, then Anthropic; OpenAI when nothing is set.
func (s *Settings) ResolvedProvider() Provider {
	if s.Provider != "" && s.Provider != ProviderAuto {
		return s.Provider
	}
	switch {
	case s.AzureAPIKey != "" && s.AzureEndpoint != "":
		return ProviderAzure
	case s.OpenAIAPIKey != "":
		return ProviderOpenAI
	case s.AnthropicAPIKey != "":
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// ResolvedModel returns the configured model, or the provider's default.
func (s *Settings) ResolvedModel() string {
	if s.Model != "" {
		return s.Model
	}
	if s.ResolvedProvider() == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultModel
}

func (s *Settings) Validate() error {
	if s.OpenAIAPIKey != "" && s.AzureAPIKey != "" {
		return ErrConflictingKeys
	}
	switch p := s.ResolvedProvider(); p {
	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingKey)
		}
	case ProviderAzure:
		if s.AzureAPIKey == "" {
			return fmt.Errorf("%w: set AZURE_OPENAI_API_KEY", ErrMissingKey)
		}
		if s.AzureEndpoint == "" {
			return errors.New("AZURE_OPENAI_ENDPOINT is required for azure")
		}
	case ProviderAnthropic:
		if s.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrMissingKey)
		}
	default:
		return fmt.Errorf("%w: %q (valid: auto, openai, azure, anthropic)", ErrUnknownProvider, p)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", s.Temperature)
	}
	return nil
}

// Level parses LogLevel, falling back to info.
func (s *Settings) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// AgentOptions converts the settings into conversation options.
func (s *Settings) AgentOptions() []lazyopenai.Option {
	opts := []lazyopenai.Option{
		lazyopenai.WithModel(s.ResolvedModel()),
		lazyopenai.WithTemperature(s.Temperature),
		lazyopenai.WithMaxRounds(s.MaxRounds),
	}
	if s.MaxTokens > 0 {
		opts = append(opts, lazyopenai.WithMaxTokens(s.MaxTokens))
	}
	if s.ToolTimeout > 0 {
		opts = append(opts, lazyopenai.WithRegistryOptions(lazyopenai.WithDefaultTimeout(s.ToolTimeout)))
	}
	return opts
}
