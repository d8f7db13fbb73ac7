package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lodestone-ai/lodestone/pkg/genai"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Model.ID != "gemini-2.5-pro" || cfg.Model.Fallback != "gemini-2.5-flash" {
		t.Errorf("model defaults %+v", cfg.Model)
	}
	if cfg.Server.Listen != "127.0.0.1:8090" {
		t.Errorf("listen %q", cfg.Server.Listen)
	}
	if cfg.MaxTurns != 100 {
		t.Errorf("max_turns %d", cfg.MaxTurns)
	}
	if cfg.Model.Timeout != 600*time.Second {
		t.Errorf("timeout %v", cfg.Model.Timeout)
	}
	if cfg.ApprovalMode() != genai.ApprovalDefault {
		t.Errorf("approval %q", cfg.Approval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.ID != "gemini-2.5-pro" {
		t.Errorf("model %q", cfg.Model.ID)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  id: gemini-1.5-pro
server:
  listen: ":9000"
max_turns: 12
approval_mode: yolo
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.ID != "gemini-1.5-pro" {
		t.Errorf("model %q", cfg.Model.ID)
	}
	// Unset keys keep their defaults.
	if cfg.Model.Fallback != "gemini-2.5-flash" {
		t.Errorf("fallback %q", cfg.Model.Fallback)
	}
	if cfg.Server.Listen != ":9000" || cfg.MaxTurns != 12 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.ApprovalMode() != genai.ApprovalYolo {
		t.Errorf("approval %q", cfg.Approval)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_MODEL_KEY", "sk-from-env")
	path := writeConfig(t, `
model:
  api_key: ${TEST_MODEL_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.APIKey != "sk-from-env" {
		t.Errorf("api key %q", cfg.Model.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "model: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("bad yaml should error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"missingModel", func(c *Config) { c.Model.ID = "" }, false},
		{"badApproval", func(c *Config) { c.Approval = "always" }, false},
		{"autoEdit", func(c *Config) { c.Approval = "auto_edit" }, true},
		{"negativeMaxTurns", func(c *Config) { c.MaxTurns = -1 }, false},
		{"zeroMaxTurns", func(c *Config) { c.MaxTurns = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateMCPServers(t *testing.T) {
	path := writeConfig(t, `
tools:
  mcp_servers:
    - name: github
`)
	if _, err := Load(path); err == nil {
		t.Fatal("mcp server without url should be rejected")
	}
}
