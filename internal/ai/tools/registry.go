// Package tools provides a framework for creating and managing the tools an
// agent can call, plus the built-in tool set.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"agentloop/internal/logger"
	"agentloop/internal/metrics"
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// ToolRegistry manages the collection of available tools.
// It provides thread-safe registration, retrieval, and execution of tools.
type ToolRegistry struct {
	tools map[string]Tool
	mu    sync.RWMutex
	cache *lru.Cache[string, string]
}

// NewToolRegistry creates an empty registry without a result cache.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// EnableCache keeps the last size results of cacheable tools. size <= 0
// disables caching.
func (r *ToolRegistry) EnableCache(size int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if size <= 0 {
		r.cache = nil
		return nil
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return fmt.Errorf("failed to create tool result cache: %w", err)
	}
	r.cache = cache
	return nil
}

// RegisterTool adds a new tool to the registry.
// If a tool with the same name already exists, it will be replaced.
func (r *ToolRegistry) RegisterTool(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		logger.Warnf("Replacing existing tool: %s", name)
	}

	r.tools[name] = tool
	logger.AIDebugf("Registered tool: %s", name)
}

// DeregisterTool removes a tool from the registry.
// If the tool doesn't exist, this operation is a no-op.
func (r *ToolRegistry) DeregisterTool(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		delete(r.tools, name)
		logger.Debugf("Deregistered tool: %s", name)
	}
}

func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrToolNotFound, name)
	}
	return tool, nil
}

// GetAllTools returns all registered tools sorted by name.
func (r *ToolRegistry) GetAllTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// GetOpenAITools converts all registered tools to the API tool format,
// in name order so requests are stable.
func (r *ToolRegistry) GetOpenAITools() []openai.Tool {
	all := r.GetAllTools()
	tools := make([]openai.Tool, 0, len(all))
	for _, tool := range all {
		tools = append(tools, tool.ToOpenAITool())
	}
	return tools
}

// ExecuteTool validates args against the tool's schema and runs it.
// Arguments should be a JSON object; an empty string means "{}".
func (r *ToolRegistry) ExecuteTool(ctx context.Context, name string, args string) (string, error) {
	tool, err := r.GetTool(name)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "not_found").Inc()
		return "", err
	}

	if args == "" {
		args = "{}"
	}
	if err := validateArgs(tool.Parameters(), args); err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "invalid").Inc()
		return "", fmt.Errorf("%s: %w", name, err)
	}

	cacheKey := ""
	r.mu.RLock()
	cache := r.cache
	r.mu.RUnlock()
	if c, ok := tool.(Cacheable); ok && c.Cacheable() && cache != nil {
		cacheKey = name + "\x00" + args
		if result, hit := cache.Get(cacheKey); hit {
			logger.AIDebugf("Tool %s served from cache", name)
			metrics.ToolCacheHitsTotal.Inc()
			return result, nil
		}
	}

	logger.AIDebugf("Executing tool: %s with args: %s", name, args)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		logger.Errorf("Tool execution error: %s: %v", name, err)
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		return "", err
	}
	metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()

	if cacheKey != "" {
		cache.Add(cacheKey, result)
	}
	return result, nil
}

func validateArgs(schema jsonschema.Definition, args string) error {
	var data any
	if err := json.Unmarshal([]byte(args), &data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if schema.Type == "" {
		return nil
	}
	if !jsonschema.Validate(schema, data) {
		return fmt.Errorf("%w: arguments do not match schema", ErrInvalidArguments)
	}
	return nil
}
