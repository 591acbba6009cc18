package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 18791 {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
	if !cfg.Webhook.EnforceSignature {
		t.Error("signature enforcement should default to on")
	}
	if cfg.RateLimit.MaxPerWindow != 40 || cfg.RateLimit.WindowSec != 60 {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
}

func TestLoad_JSON5WithComments(t *testing.T) {
	path := writeConfig(t, `{
		// listener
		server: { host: "127.0.0.1", port: 9000 },
		bots: [
			{
				app_id: "wx_a",
				token: "tok-a",
				rules: [
					{ kind: "text", match: { contains: "hi" }, action: { reply: "hello" } },
				],
			},
		],
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Bots) != 1 || cfg.Bots[0].AppID != "wx_a" {
		t.Fatalf("bots = %+v", cfg.Bots)
	}
	if len(cfg.Bots[0].Rules) != 1 || cfg.Bots[0].Rules[0].Action.Reply != "hello" {
		t.Errorf("rules = %+v", cfg.Bots[0].Rules)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `{
		server: { port: 9000 },
		bots: [{ app_id: "wx_a", token: "from-file", rules: [] }],
	}`)

	t.Setenv("GEWEGATE_PORT", "9100")
	t.Setenv("GEWEGATE_BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, env should win", cfg.Server.Port)
	}
	if cfg.Bots[0].Token != "from-env" {
		t.Errorf("token = %q, env should win", cfg.Bots[0].Token)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Bots = []BotConfig{{AppID: "wx_a", Token: "t"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no bots", func(c *Config) { c.Bots = nil }, true},
		{"missing app id", func(c *Config) { c.Bots[0].AppID = "" }, true},
		{"missing token", func(c *Config) { c.Bots[0].Token = "" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"duplicate app id", func(c *Config) {
			c.Bots = append(c.Bots, BotConfig{AppID: "wx_a", Token: "t2"})
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
