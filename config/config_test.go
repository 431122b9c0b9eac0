package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/narumiruna/lazyopenai/internal/credentials"
)

var envNames = []string{
	"LAZYOPENAI_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "OPENAI_API_VERSION",
	"ANTHROPIC_API_KEY", "OPENAI_MODEL", "OPENAI_TEMPERATURE", "OPENAI_MAX_TOKENS",
	"LAZYOPENAI_MAX_ROUNDS", "LAZYOPENAI_TOOL_TIMEOUT", "LOG_LEVEL",
}

// cleanEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func cleanEnv(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	for _, name := range envNames {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderAuto, cfg.Provider)
	assert.Equal(t, DefaultModel, cfg.ResolvedModel())
	assert.Zero(t, cfg.Temperature)
	assert.Zero(t, cfg.MaxTokens)
	assert.Equal(t, 10, cfg.MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "lazyopenai.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: gpt-4o
temperature: 0.7
max_rounds: 3
tool_timeout: 5s
log_level: debug
`), 0o600))
	t.Setenv("OPENAI_MODEL", "gpt-4.1")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, 3, cfg.MaxRounds)
	assert.Equal(t, 5*time.Second, cfg.ToolTimeout)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "sk-env", cfg.OpenAIAPIKey)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	cleanEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_KeyringFallback(t *testing.T) {
	cleanEnv(t)
	require.NoError(t, credentials.Set(credentials.KeyAnthropic, "sk-ant-stored"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-stored", cfg.AnthropicAPIKey)
	assert.Equal(t, ProviderAnthropic, cfg.ResolvedProvider())
	assert.Equal(t, DefaultAnthropicModel, cfg.ResolvedModel())
	require.NoError(t, cfg.Validate())
}

func TestResolvedProvider(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
		want Provider
	}{
		{"nothing set", Settings{}, ProviderOpenAI},
		{"openai key", Settings{OpenAIAPIKey: "k"}, ProviderOpenAI},
		{"azure key and endpoint", Settings{AzureAPIKey: "k", AzureEndpoint: "https://x"}, ProviderAzure},
		{"azure key without endpoint", Settings{AzureAPIKey: "k"}, ProviderOpenAI},
		{"anthropic key", Settings{AnthropicAPIKey: "k"}, ProviderAnthropic},
		{"explicit wins", Settings{Provider: ProviderAnthropic, OpenAIAPIKey: "k"}, ProviderAnthropic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.ResolvedProvider())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr error
	}{
		{"both openai and azure keys", Settings{OpenAIAPIKey: "a", AzureAPIKey: "b", AzureEndpoint: "https://x"}, ErrConflictingKeys},
		{"no key", Settings{}, ErrMissingKey},
		{"anthropic without key", Settings{Provider: ProviderAnthropic, OpenAIAPIKey: "a"}, ErrMissingKey},
		{"unknown provider", Settings{Provider: "cohere", OpenAIAPIKey: "a"}, ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.s.Validate(), tt.wantErr)
		})
	}

	assert.Error(t, (&Settings{OpenAIAPIKey: "a", Temperature: 3}).Validate())
	assert.Error(t, (&Settings{Provider: ProviderAzure, AzureAPIKey: "a"}).Validate())
}

func TestAgentOptions(t *testing.T) {
	s := Defaults()
	s.MaxTokens = 256
	assert.Len(t, s.AgentOptions(), 5)

	s = Settings{}
	assert.Len(t, s.AgentOptions(), 3)
}
