package providers

import "strings"

// New selects a backend by provider tag. Unknown tags fall through to the
// OpenAI-compatible backend, which covers most self-hosted and proxy setups.
func New(tag, apiKey, baseURL string, retry RetryConfig) Provider {
	switch strings.ToLower(tag) {
	case "anthropic", "claude":
		return NewAnthropicProvider(apiKey, baseURL, retry)
	case "gemini", "google":
		return NewGeminiProvider(apiKey, baseURL, retry)
	case "", "openai":
		return NewOpenAIProvider("openai", apiKey, baseURL, retry)
	default:
		return NewOpenAIProvider(strings.ToLower(tag), apiKey, baseURL, retry)
	}
}
