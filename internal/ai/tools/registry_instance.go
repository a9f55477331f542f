package tools

import (
	"time"

	"agentloop/internal/logger"
)

// Options configures the built-in tool set.
type Options struct {
	Notes            NoteStore // nil leaves the note tools out
	SearchBaseURL    string
	SearchMaxResults int
	HTTPTimeout      time.Duration
	CacheSize        int
}

// NewDefaultRegistry returns a registry holding every built-in tool.
func NewDefaultRegistry(opts Options) (*ToolRegistry, error) {
	registry := NewToolRegistry()
	if err := registry.EnableCache(opts.CacheSize); err != nil {
		return nil, err
	}

	calculator, err := NewCalculatorTool()
	if err != nil {
		return nil, err
	}

	defaultTools := []Tool{
		calculator,
		NewTimeTool(),
		NewWebsiteTool(opts.HTTPTimeout),
		NewSearchTool(opts.SearchBaseURL, opts.SearchMaxResults, opts.HTTPTimeout),
		NewFinalAnswerTool(),
	}
	if opts.Notes != nil {
		defaultTools = append(defaultTools,
			NewSaveNoteTool(opts.Notes),
			NewDeleteNoteTool(opts.Notes),
			NewListNotesTool(opts.Notes),
			NewSearchNotesTool(opts.Notes),
		)
	}

	for _, tool := range defaultTools {
		registry.RegisterTool(tool)
	}

	logger.Successf("Initialized tool registry with %d default tools", len(defaultTools))
	return registry, nil
}
