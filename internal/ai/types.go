package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"

	// RoleFunction is the legacy name for tool results; ParseRole maps it to RoleTool.
	RoleFunction MessageRole = "function"
)

var ErrInvalidMessage = errors.New("invalid message")

// ToolCall is the structured request to invoke a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content,omitempty"`
	Name       string      `json:"name,omitempty"`         // For tool messages
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`   // For assistant messages
	ToolCallID string      `json:"tool_call_id,omitempty"` // For tool response messages
}

// ParseRole normalizes a role name and reports whether it is known.
func ParseRole(s string) (MessageRole, bool) {
	switch MessageRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSystem:
		return RoleSystem, true
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	case RoleTool, RoleFunction:
		return RoleTool, true
	}
	return "", false
}

// Validate enforces the message invariants: a known role, and either content
// or at least one call descriptor.
func (m Message) Validate() error {
	if _, ok := ParseRole(string(m.Role)); !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, m.Role)
	}
	if strings.TrimSpace(m.Content) == "" && len(m.ToolCalls) == 0 {
		return fmt.Errorf("%w: %s message has neither content nor tool calls", ErrInvalidMessage, m.Role)
	}
	for _, call := range m.ToolCalls {
		if call.Name == "" {
			return fmt.Errorf("%w: tool call %q has no name", ErrInvalidMessage, call.ID)
		}
	}
	if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
		return fmt.Errorf("%w: only assistant messages may carry tool calls", ErrInvalidMessage)
	}
	if (m.Role == RoleTool || m.Role == RoleFunction) && m.ToolCallID == "" {
		return fmt.Errorf("%w: tool message without tool_call_id", ErrInvalidMessage)
	}
	return nil
}

// ValidMessages returns the messages that pass Validate, in order. An
// assistant call and its tool results are kept or dropped together, so the
// sequence never holds an orphan result or an unanswered call.
func ValidMessages(msgs []Message) ([]Message, int) {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == RoleTool && m.Validate() == nil {
			answered[m.ToolCallID] = true
		}
	}

	keep := make([]bool, len(msgs))
	droppedCalls := make(map[string]bool)
	for i, m := range msgs {
		keep[i] = m.Validate() == nil
		for _, call := range m.ToolCalls {
			keep[i] = keep[i] && answered[call.ID]
		}
		if !keep[i] {
			for _, call := range m.ToolCalls {
				droppedCalls[call.ID] = true
			}
		}
	}

	kept := make([]Message, 0, len(msgs))
	for i, m := range msgs {
		if !keep[i] || (m.Role == RoleTool && droppedCalls[m.ToolCallID]) {
			continue
		}
		kept = append(kept, m)
	}
	return kept, len(msgs) - len(kept)
}

// HasToolCalls reports whether the message asks for tool execution.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

func (m Message) ToOpenAI() openai.ChatCompletionMessage {
	role, _ := ParseRole(string(m.Role))
	out := openai.ChatCompletionMessage{
		Role:       string(role),
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, call := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return out
}

func FromOpenAI(msg openai.ChatCompletionMessage) Message {
	role, ok := ParseRole(msg.Role)
	if !ok {
		role = MessageRole(msg.Role)
	}
	out := Message{
		Role:       role,
		Content:    msg.Content,
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	// Legacy single function_call responses
	if msg.FunctionCall != nil && len(out.ToolCalls) == 0 {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name:      msg.FunctionCall.Name,
			Arguments: msg.FunctionCall.Arguments,
		})
	}
	return out
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ToOpenAI())
	}
	return out
}
