package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 18791,
		},
		Webhook: WebhookConfig{
			EnforceSignature: true,
			QueueSize:        256,
		},
		Gewe: GeweConfig{
			BaseURL: "http://127.0.0.1:2531/v2/api",
		},
		Commands: CommandsConfig{
			MaxOutputBytes:    20 * 1024,
			DefaultTimeoutSec: 15,
		},
		RateLimit: RateLimitConfig{
			MaxPerWindow: 40,
			WindowSec:    60,
			JitterMs:     300,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("GEWEGATE_HOST", &c.Server.Host)
	if v := os.Getenv("GEWEGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	envStr("GEWEGATE_GEWE_BASE_URL", &c.Gewe.BaseURL)
	envStr("GEWEGATE_DUMP_DIR", &c.Webhook.DumpDir)
	envStr("GEWEGATE_AI_KEY_ENV", &c.AI.DefaultKeyEnv)

	// Image generation key is a secret: env only, never read from the file.
	envStr("GEWEGATE_IMAGE_API_KEY", &c.AI.ImageGen.APIKey)
	envStr("GEWEGATE_IMAGE_BASE_URL", &c.AI.ImageGen.BaseURL)

	// Single-bot deployments can keep credentials out of the file entirely.
	if len(c.Bots) > 0 {
		envStr("GEWEGATE_BOT_TOKEN", &c.Bots[0].Token)
		envStr("GEWEGATE_BOT_WEBHOOK_SECRET", &c.Bots[0].WebhookSecret)
	}
}

// Validate rejects configurations that cannot produce a working gateway.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Bots) == 0 {
		return fmt.Errorf("no bots configured")
	}
	seen := make(map[string]bool, len(c.Bots))
	for i, b := range c.Bots {
		if b.AppID == "" {
			return fmt.Errorf("bots[%d]: app_id is required", i)
		}
		if b.Token == "" {
			return fmt.Errorf("bots[%d] (%s): token is required", i, b.AppID)
		}
		if seen[b.AppID] {
			return fmt.Errorf("bots[%d]: duplicate app_id %s", i, b.AppID)
		}
		seen[b.AppID] = true
	}
	return nil
}
