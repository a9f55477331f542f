package ai

import (
	"context"

	"agentloop/internal/ai/tools"
	"agentloop/internal/logger"
)

func (a *Agent) RegisterCustomTool(tool tools.Tool) {
	a.registry.RegisterTool(tool)
}

// Status summarizes the agent's configuration for display.
func (a *Agent) Status() map[string]interface{} {
	cfg := a.Config()

	availableTools := a.registry.GetAllTools()
	toolNames := make([]string, 0, len(availableTools))
	for _, tool := range availableTools {
		toolNames = append(toolNames, tool.Name())
	}

	return map[string]interface{}{
		"model":          cfg.Model,
		"enableTools":    cfg.EnableToolCalls,
		"maxIterations":  cfg.MaxIterations,
		"historyLimit":   cfg.HistoryLimit,
		"persistent":     a.persister != nil,
		"activeSessions": len(a.sessions.IDs()),
		"availableTools": toolNames,
	}
}

func (a *Agent) UpdateSystemPrompt(newPrompt string) {
	a.UpdateConfig(func(cfg *Config) {
		cfg.SystemPrompt = newPrompt
	})
}

func (a *Agent) SetModel(modelName string) {
	a.UpdateConfig(func(cfg *Config) {
		cfg.Model = modelName
	})
}

func (a *Agent) EnableToolCalls(enable bool) {
	a.UpdateConfig(func(cfg *Config) {
		cfg.EnableToolCalls = enable
	})
}

// ResetSession forgets a session's history, including its stored transcript.
func (a *Agent) ResetSession(ctx context.Context, sessionID string) error {
	defer a.lockSession(sessionID)()

	a.sessions.Delete(sessionID)
	if a.persister == nil {
		return nil
	}
	if err := a.persister.Delete(ctx, sessionID); err != nil {
		logger.Errorf("Failed to delete session %s: %v", sessionID, err)
		return err
	}
	return nil
}

// SessionIDs lists the sessions held in memory.
func (a *Agent) SessionIDs() []string {
	return a.sessions.IDs()
}
