// Package config loads the YAML configuration with environment
// variable expansion and supplies defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lodestone-ai/lodestone/internal/mcp"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Model    ModelConfig   `yaml:"model"`
	Tools    ToolsConfig   `yaml:"tools"`
	Storage  StorageConfig `yaml:"storage"`
	Logging  LoggingConfig `yaml:"logging"`
	Approval string        `yaml:"approval_mode"`
	MaxTurns int           `yaml:"max_turns"`
}

// ServerConfig configures the gateway listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// ModelConfig configures the content generator.
type ModelConfig struct {
	ID       string `yaml:"id"`
	Fallback string `yaml:"fallback"`
	APIKey   string `yaml:"api_key"`
	AuthType string `yaml:"auth_type"`
	// Timeout bounds one model call.
	Timeout time.Duration `yaml:"timeout"`
}

// ToolsConfig configures tool discovery.
type ToolsConfig struct {
	// DiscoveryCommand prints function declarations as JSON.
	DiscoveryCommand string `yaml:"discovery_command"`
	// CallCommand executes a discovered tool by name.
	CallCommand string `yaml:"call_command"`
	// MCPServers are remote tool sources.
	MCPServers []mcp.ServerConfig `yaml:"mcp_servers"`
}

// StorageConfig configures persistent state.
type StorageConfig struct {
	// StateDir is the root of the per-project subtrees.
	StateDir string `yaml:"state_dir"`
	// ProjectDir is the working directory the agent operates in.
	ProjectDir string `yaml:"project_dir"`
}

// LoggingConfig mirrors observability.LogConfig.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, _ := os.UserHomeDir()
	wd, _ := os.Getwd()
	return &Config{
		Server: ServerConfig{Listen: "127.0.0.1:8090"},
		Model: ModelConfig{
			ID:       "gemini-2.5-pro",
			Fallback: "gemini-2.5-flash",
			APIKey:   os.Getenv("GEMINI_API_KEY"),
			AuthType: "api-key",
			Timeout:  600 * time.Second,
		},
		Storage: StorageConfig{
			StateDir:   filepath.Join(home, ".lodestone"),
			ProjectDir: wd,
		},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Approval: string(genai.ApprovalDefault),
		MaxTurns: 100,
	}
}

// Load reads path, expands ${ENV} references, and overlays the result
// on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	if c.Model.ID == "" {
		return fmt.Errorf("model.id is required")
	}
	switch genai.ApprovalMode(c.Approval) {
	case genai.ApprovalDefault, genai.ApprovalAutoEdit, genai.ApprovalYolo:
	default:
		return fmt.Errorf("approval_mode must be one of default, auto_edit, yolo; got %q", c.Approval)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns must be non-negative")
	}
	for i := range c.Tools.MCPServers {
		if err := c.Tools.MCPServers[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApprovalMode returns the typed approval mode.
func (c *Config) ApprovalMode() genai.ApprovalMode {
	return genai.ApprovalMode(c.Approval)
}
