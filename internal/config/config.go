// Package config loads the agent configuration from YAML with
// environment variable expansion.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Tools     ToolsConfig     `yaml:"tools"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type LLMConfig struct {
	APIKey       string            `yaml:"api_key"`
	BaseURL      string            `yaml:"base_url"`
	SystemPrompt string            `yaml:"system_prompt"`
	Models       map[string]string `yaml:"models"`
}

type AgentConfig struct {
	MaxRounds    int  `yaml:"max_rounds"`
	HistoryLimit int  `yaml:"history_limit"`
	PlanMode     bool `yaml:"plan_mode"`
}

type RateLimitConfig struct {
	Capacity        float64 `yaml:"capacity"`
	RefillPerSecond float64 `yaml:"refill_per_second"`
}

type StorageConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory
	// stores.
	Path string `yaml:"path"`
}

type ToolsConfig struct {
	Shell ShellToolConfig `yaml:"shell"`
}

type ShellToolConfig struct {
	Enabled bool   `yaml:"enabled"`
	Workdir string `yaml:"workdir"`
}

type TelegramConfig struct {
	Token          string   `yaml:"token"`
	AllowedChatIDs []string `yaml:"allowed_chat_ids"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{
			SystemPrompt: "You are a helpful assistant.",
			Models: map[string]string{
				"standard": "gpt-4o-mini",
				"coding":   "gpt-4o",
			},
		},
		Agent: AgentConfig{
			MaxRounds:    10,
			HistoryLimit: 100,
			PlanMode:     true,
		},
		RateLimit: RateLimitConfig{
			Capacity:        5,
			RefillPerSecond: 0.5,
		},
		Metrics: MetricsConfig{Addr: ":9091"},
	}
}

// Load reads the YAML file at path on top of the defaults. ${VAR}
// references in the file are expanded from the environment before
// parsing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnv()
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills well-known settings from the environment when the
// file left them empty.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
}

func (c *Config) validate() error {
	if c.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be positive")
	}
	if len(c.LLM.Models) == 0 {
		return fmt.Errorf("llm.models must name at least one model")
	}
	if _, ok := c.LLM.Models["standard"]; !ok {
		return fmt.Errorf("llm.models must include the standard tier")
	}
	return nil
}
