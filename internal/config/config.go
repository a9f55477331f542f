package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type AgentConfig struct {
	Model             string  `toml:"model"`
	Temperature       float32 `toml:"temperature"`
	MaxResponseTokens int     `toml:"max_tokens"`
	MaxIterations     int     `toml:"max_iterations"`
	HistoryLimit      int     `toml:"history_limit"`
	SystemPrompt      string  `toml:"system_prompt"`
	EnableToolCalls   bool    `toml:"enable_tools"`
	APITimeout        int     `toml:"api_timeout"` // seconds
}

type RetryConfig struct {
	Attempts      int  `toml:"attempts"`
	BaseBackoffMs int  `toml:"base_backoff_ms"`
	MaxBackoffMs  int  `toml:"max_backoff_ms"`
	Jitter        bool `toml:"jitter"`
}

type BatchConfig struct {
	Workers int `toml:"workers"`
}

type CacheConfig struct {
	Size int `toml:"size"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

type SearchConfig struct {
	BaseURL    string `toml:"base_url"`
	MaxResults int    `toml:"max_results"`
}

type IRCConfig struct {
	Server           string   `toml:"server"`
	TLS              bool     `toml:"tls"`
	Nick             string   `toml:"nick"`
	User             string   `toml:"user"`
	RealName         string   `toml:"real_name"`
	Password         string   `toml:"password"`
	Channels         []string `toml:"channels"`
	OperatorPasshash string   `toml:"operator_passhash"`
}

type Config struct {
	DataDir string        `toml:"data_dir"`
	LogsDir string        `toml:"logs_dir"`
	Agent   AgentConfig   `toml:"agent"`
	Retry   RetryConfig   `toml:"retry"`
	Batch   BatchConfig   `toml:"batch"`
	Cache   CacheConfig   `toml:"cache"`
	Store   StoreConfig   `toml:"store"`
	Metrics MetricsConfig `toml:"metrics"`
	Search  SearchConfig  `toml:"search"`
	IRC     IRCConfig     `toml:"irc"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		LogsDir: "./logs",
		Agent: AgentConfig{
			Model:             "gpt-4o",
			Temperature:       0.7,
			MaxResponseTokens: 2000,
			MaxIterations:     5,
			HistoryLimit:      20,
			EnableToolCalls:   true,
			APITimeout:        120,
		},
		Retry: RetryConfig{
			Attempts:      3,
			BaseBackoffMs: 500,
			MaxBackoffMs:  8000,
			Jitter:        true,
		},
		Batch:  BatchConfig{Workers: 4},
		Cache:  CacheConfig{Size: 128},
		Store:  StoreConfig{Path: "./data/agentloop.db"},
		Search: SearchConfig{BaseURL: "https://html.duckduckgo.com/html/", MaxResults: 5},
		IRC: IRCConfig{
			Nick:     "agentloop",
			User:     "agentloop",
			RealName: "Think/Act/Observe agent",
		},
	}
}

// ValidateConfig checks if all required configuration fields are properly set
func ValidateConfig(cfg *Config) error {
	var problems []string

	if cfg.Agent.Model == "" {
		problems = append(problems, "agent.model is required")
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		problems = append(problems, "agent.temperature must be between 0 and 2")
	}
	if cfg.Agent.MaxIterations < 1 {
		problems = append(problems, "agent.max_iterations must be at least 1")
	}
	if cfg.Agent.HistoryLimit < 0 {
		problems = append(problems, "agent.history_limit must not be negative")
	}
	if cfg.Agent.APITimeout < 1 {
		problems = append(problems, "agent.api_timeout must be at least 1 second")
	}
	if cfg.Retry.Attempts < 0 {
		problems = append(problems, "retry.attempts must not be negative")
	}
	if cfg.Batch.Workers < 1 {
		problems = append(problems, "batch.workers must be at least 1")
	}
	if cfg.Cache.Size < 0 {
		problems = append(problems, "cache.size must not be negative")
	}
	if cfg.IRC.Server != "" && !strings.Contains(cfg.IRC.Server, ":") {
		problems = append(problems, "irc.server does not contain a port (format should be host:port)")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateIRC checks the fields the chat bridge needs.
func ValidateIRC(cfg *IRCConfig) error {
	var missingFields []string
	if cfg.Server == "" {
		missingFields = append(missingFields, "server")
	}
	if cfg.Nick == "" {
		missingFields = append(missingFields, "nick")
	}
	if cfg.User == "" {
		missingFields = append(missingFields, "user")
	}
	if len(missingFields) > 0 {
		return fmt.Errorf("missing required irc configuration fields: %s", strings.Join(missingFields, ", "))
	}
	return nil
}

// LoadConfig decodes path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for config file: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			fmt.Printf("failed to close config file: %v\n", err)
		}
	}(file)

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// GetConfigPath returns the config path from CONFIG_PATH or the default.
func GetConfigPath(fallback string) string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return fallback
}
