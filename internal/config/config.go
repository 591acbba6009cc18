// Package config defines the gateway configuration file format and its
// loading rules: JSON5 file, defaults, then env var overlay.
package config

import (
	"github.com/nextlevelbuilder/gewegate/internal/rules"
)

// Config is the root configuration of the gateway.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Webhook   WebhookConfig   `json:"webhook"`
	Gewe      GeweConfig      `json:"gewe"`
	Commands  CommandsConfig  `json:"commands"`
	AI        AIConfig        `json:"ai"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Bots      []BotConfig     `json:"bots"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// WebhookConfig tunes the receiver pipeline.
type WebhookConfig struct {
	EnforceSignature bool   `json:"enforce_signature"`
	DebugBody        bool   `json:"debug_body,omitempty"`
	DebugHeaders     bool   `json:"debug_headers,omitempty"`
	DumpDir          string `json:"dump_dir,omitempty"`
	CaptureOnly      bool   `json:"capture_only,omitempty"`
	QueueSize        int    `json:"queue_size,omitempty"`
}

// GeweConfig points at the messaging provider API.
type GeweConfig struct {
	BaseURL string `json:"base_url"`
}

// CommandsConfig gates and bounds command execution.
type CommandsConfig struct {
	// AllowExternal enables spawning arbitrary external programs from rule
	// actions. Off by default.
	AllowExternal     bool   `json:"allow_external"`
	MaxOutputBytes    int    `json:"max_output_bytes,omitempty"`
	DefaultTimeoutSec int    `json:"default_timeout_sec,omitempty"`
	ChangelogPath     string `json:"changelog_path,omitempty"`
}

// AIConfig carries gateway-level LLM defaults.
type AIConfig struct {
	// DefaultKeyEnv is the fallback env var for API keys when a rule's AI
	// action names neither a key nor its own env var.
	DefaultKeyEnv string         `json:"default_key_env,omitempty"`
	ImageGen      ImageGenConfig `json:"image_gen,omitempty"`
}

// ImageGenConfig configures the image generation builtin.
type ImageGenConfig struct {
	APIKey  string `json:"-"` // from env GEWEGATE_IMAGE_API_KEY only
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// RateLimitConfig tunes the per-bot outbound sliding window.
type RateLimitConfig struct {
	MaxPerWindow int `json:"max_per_window,omitempty"`
	WindowSec    int `json:"window_sec,omitempty"`
	JitterMs     int `json:"jitter_ms,omitempty"`
}

// BotConfig is one account and its rule list.
// Token and WebhookSecret are secrets: env-only for the first bot, see
// applyEnvOverrides.
type BotConfig struct {
	AppID         string       `json:"app_id"`
	Token         string       `json:"token,omitempty"`
	WebhookSecret string       `json:"webhook_secret,omitempty"`
	Description   string       `json:"description,omitempty"`
	Rules         []rules.Rule `json:"rules"`
}
