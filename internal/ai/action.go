// Package ai turns a matched AI rule action into one or two LLM completion
// rounds, running bound tool commands in between and sending the outcome
// back through the reply path.
package ai

import (
	"github.com/nextlevelbuilder/gewegate/internal/command"
)

// Defaults for the retry policy when the action doesn't set its own.
const (
	DefaultMaxRetries   = 2
	DefaultRetryDelayMs = 1000
)

// Action is the resolved configuration of one AI rule action.
type Action struct {
	Provider     string         `json:"provider,omitempty"` // "openai" (default), "anthropic"/"claude", "gemini"/"google"
	Model        string         `json:"model,omitempty"`
	APIKey       string         `json:"api_key,omitempty"`
	APIKeyEnv    string         `json:"api_key_env,omitempty"`
	BaseURL      string         `json:"base_url,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	UserPrefix   string         `json:"user_prefix,omitempty"`
	PreCommand   *command.Spec  `json:"pre_command,omitempty"`
	Tools        []Tool         `json:"tools,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	MaxTokens    int            `json:"max_tokens,omitempty"`
	// ResponseFormat is "json" to request a JSON object response.
	ResponseFormat string `json:"response_format,omitempty"`
	MaxRetries     *int   `json:"max_retries,omitempty"`
	RetryDelayMs   int    `json:"retry_delay_ms,omitempty"`
}

// Tool declares a model-callable tool and the command bound to it.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Command     *command.Spec          `json:"command,omitempty"`
}

// findTool resolves a tool by name.
func (a *Action) findTool(name string) *Tool {
	for i := range a.Tools {
		if a.Tools[i].Name == name {
			return &a.Tools[i]
		}
	}
	return nil
}

// defaultModel picks a model when the action doesn't name one.
func defaultModel(provider string) string {
	switch provider {
	case "anthropic", "claude":
		return "claude-sonnet-4-5-20250929"
	case "gemini", "google":
		return "gemini-2.0-flash"
	default:
		return "gpt-4o-mini"
	}
}
