package llm

import (
	"fmt"
	"strings"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Settings selects and configures a provider for New.
type Settings struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	SystemPrompt string
}

// New builds the client for s.Provider. An empty provider means Anthropic.
func New(s Settings) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", ProviderAnthropic:
		return NewAnthropicClient(AnthropicOptions{
			APIKey:       s.APIKey,
			BaseURL:      s.BaseURL,
			Model:        s.Model,
			MaxTokens:    s.MaxTokens,
			SystemPrompt: s.SystemPrompt,
		}), nil
	case ProviderOpenAI:
		return NewOpenAIClient(OpenAIOptions{
			APIKey:       s.APIKey,
			BaseURL:      s.BaseURL,
			Model:        s.Model,
			MaxTokens:    s.MaxTokens,
			SystemPrompt: s.SystemPrompt,
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q (want %q or %q)", s.Provider, ProviderAnthropic, ProviderOpenAI)
	}
}
