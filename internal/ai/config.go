package ai

import (
	"fmt"
	"time"

	botconfig "agentloop/internal/config"
)

type Config struct {
	Model             string
	MaxResponseTokens int
	Temperature       float32
	SystemPrompt      string
	APITimeout        time.Duration

	// MaxIterations bounds the Think/Act/Observe rounds of a single turn.
	MaxIterations   int
	HistoryLimit    int
	EnableToolCalls bool

	Retry RetryPolicy
}

const defaultSystemPromptTemplate = `You are a helpful assistant that solves tasks step by step.

Work in a loop:
1. Think: read the conversation and decide whether a tool would help.
2. Act: call at most the tools you need, with precise arguments.
3. Observe: read each tool result before deciding what to do next.

Rules:
- Prefer tools over guessing for arithmetic, current time, web pages and searches.
- When you have the answer, reply in plain natural language, or call final_answer.
- If a tool fails, say so briefly and try another approach.
- Use the user's saved notes to personalize answers. Save a note when asked to remember something.

Current date: %s`

func formatSystemPrompt(template string, now time.Time) string {
	return fmt.Sprintf(template, now.Format("2006-01-02"))
}

func DefaultConfig() *Config {
	return &Config{
		Model:             "gpt-4o",
		MaxResponseTokens: 2000,
		Temperature:       0.7,
		SystemPrompt:      formatSystemPrompt(defaultSystemPromptTemplate, time.Now()),
		APITimeout:        120 * time.Second,
		MaxIterations:     5,
		HistoryLimit:      20,
		EnableToolCalls:   true,
		Retry:             DefaultRetryPolicy(),
	}
}

// ConfigFromFile maps the [agent] and [retry] file sections onto a runtime Config.
func ConfigFromFile(file *botconfig.Config) *Config {
	cfg := DefaultConfig()
	agent := file.Agent

	if agent.Model != "" {
		cfg.Model = agent.Model
	}
	if agent.MaxResponseTokens > 0 {
		cfg.MaxResponseTokens = agent.MaxResponseTokens
	}
	cfg.Temperature = agent.Temperature
	if agent.SystemPrompt != "" {
		cfg.SystemPrompt = agent.SystemPrompt
	}
	if agent.APITimeout > 0 {
		cfg.APITimeout = time.Duration(agent.APITimeout) * time.Second
	}
	if agent.MaxIterations > 0 {
		cfg.MaxIterations = agent.MaxIterations
	}
	cfg.HistoryLimit = agent.HistoryLimit
	cfg.EnableToolCalls = agent.EnableToolCalls

	cfg.Retry = RetryPolicy{
		MaxRetries: file.Retry.Attempts,
		Base:       time.Duration(file.Retry.BaseBackoffMs) * time.Millisecond,
		Max:        time.Duration(file.Retry.MaxBackoffMs) * time.Millisecond,
		Jitter:     file.Retry.Jitter,
	}
	return cfg
}
