package summary

import "time"

const (
	// ProviderOpenAI selects the OpenAI chat completions API.
	ProviderOpenAI = "openai"

	// ProviderAnthropic selects the Anthropic messages API.
	ProviderAnthropic = "anthropic"

	// ProviderGemini selects the Gemini API.
	ProviderGemini = "gemini"

	// ProviderMock selects the offline canned summarizer.
	ProviderMock = "mock"
)

const (
	// DefaultProvider is the provider used when none is configured.
	DefaultProvider = ProviderOpenAI

	// DefaultOpenAIModel is the OpenAI model used for summaries.
	DefaultOpenAIModel = "gpt-4o-mini"

	// DefaultAnthropicModel is the Anthropic model used for summaries.
	DefaultAnthropicModel = "claude-haiku-4-5-20251001"

	// DefaultGeminiModel is the Gemini model used for summaries.
	DefaultGeminiModel = "gemini-2.5-flash"

	// DefaultMaxTokens caps the completion length.
	DefaultMaxTokens = 825

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.5

	// DefaultMaxConcurrent is the max simultaneous provider calls.
	DefaultMaxConcurrent = 2

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the summary service.
type Config struct {
	// Provider names the backend: openai, anthropic, gemini or mock.
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// APIKey authenticates with the provider. Without one the mock
	// provider is used.
	APIKey string `yaml:"-"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`

	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// SystemPrompt replaces the built-in system prompt when set.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxConcurrent is the max simultaneous provider calls.
	MaxConcurrent int `yaml:"max_concurrent"`

	// Timeout bounds a single provider call.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:      DefaultProvider,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
		MaxConcurrent: DefaultMaxConcurrent,
		Timeout:       DefaultTimeout,
	}
}

// model returns the configured model or the provider's default.
func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}

	switch c.Provider {
	case ProviderAnthropic:
		return DefaultAnthropicModel

	case ProviderGemini:
		return DefaultGeminiModel

	default:
		return DefaultOpenAIModel
	}
}

// systemPrompt returns the configured system prompt or the built-in one.
func (c Config) systemPrompt() string {
	if c.SystemPrompt != "" {
		return c.SystemPrompt
	}

	return defaultSystemPrompt
}
