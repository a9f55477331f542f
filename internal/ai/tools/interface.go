package tools

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

type Tool interface {
	Name() string
	Description() string
	Parameters() jsonschema.Definition
	Execute(ctx context.Context, args string) (string, error)
	ToOpenAITool() openai.Tool
}

// Cacheable is implemented by tools whose results depend only on their
// arguments, so identical calls may be served from the registry cache.
type Cacheable interface {
	Cacheable() bool
}

type BaseTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  jsonschema.Definition
	ToolCacheable   bool
}

func (b *BaseTool) Name() string {
	return b.ToolName
}

func (b *BaseTool) Description() string {
	return b.ToolDescription
}

func (b *BaseTool) Parameters() jsonschema.Definition {
	return b.ToolParameters
}

func (b *BaseTool) Cacheable() bool {
	return b.ToolCacheable
}

func (b *BaseTool) ToOpenAITool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        b.Name(),
			Description: b.Description(),
			Parameters:  b.Parameters(),
		},
	}
}

type callerKey struct{}

// WithCaller attaches the user on whose behalf tools run.
func WithCaller(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, callerKey{}, user)
}

// CallerFrom returns the user set by WithCaller, or "anonymous".
func CallerFrom(ctx context.Context) string {
	if user, ok := ctx.Value(callerKey{}).(string); ok && user != "" {
		return user
	}
	return "anonymous"
}
