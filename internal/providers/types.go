// Package providers implements the LLM completion backends used by AI rule
// actions. All backends speak through the Provider interface; selection happens
// by tag at construction (see New).
package providers

import "context"

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Complete sends one completion request and returns the model's response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// Request contains the input for a Complete call.
type Request struct {
	Model       string           `json:"model,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	// ResponseFormat is "json" to request a JSON object response, empty for text.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Response is the result from an LLM call. At most one of Content / ToolCall
// is meaningful: a tool_calls finish carries the first requested call.
type Response struct {
	Content      string    `json:"content"`
	ToolCall     *ToolCall `json:"tool_call,omitempty"`
	FinishReason string    `json:"finish_reason"` // "stop", "tool_calls", "length"
}

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
