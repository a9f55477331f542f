package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"agentloop/internal/ai/tools"
	"agentloop/internal/logger"
	"agentloop/internal/metrics"
)

var ErrEmptyInput = errors.New("input cannot be empty")

const (
	ErrorResponse       = "Sorry, I encountered an error processing your request."
	emptyResultFallback = "I've completed the operations but couldn't generate a final response."
)

// Persister loads and saves session transcripts.
type Persister interface {
	Load(ctx context.Context, sessionID string, limit int) ([]Message, error)
	Save(ctx context.Context, sessionID string, msgs []Message) error
	Delete(ctx context.Context, sessionID string) error
}

type Option func(*Agent)

// WithPersister restores sessions from p on first use and saves every turn to it.
func WithPersister(p Persister) Option {
	return func(a *Agent) { a.persister = p }
}

// WithNotes injects the caller's saved notes into the system prompt.
func WithNotes(n tools.NoteStore) Option {
	return func(a *Agent) { a.notes = n }
}

// Agent runs the Think/Act/Observe loop against a chat completion API.
type Agent struct {
	client    ChatClient
	registry  *tools.ToolRegistry
	sessions  *Sessions
	persister Persister
	notes     tools.NoteStore

	cfgMu sync.RWMutex
	cfg   Config

	locksMu sync.Mutex
	locks   map[string]*keyedLock
}

func NewAgent(client ChatClient, registry *tools.ToolRegistry, cfg *Config, opts ...Option) *Agent {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if registry == nil {
		registry = tools.NewToolRegistry()
	}
	a := &Agent{
		client:   client,
		registry: registry,
		sessions: NewSessions(cfg.HistoryLimit),
		cfg:      *cfg,
		locks:    make(map[string]*keyedLock),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns a copy of the current configuration.
func (a *Agent) Config() Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *Agent) UpdateConfig(fn func(cfg *Config)) {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	fn(&a.cfg)
}

func (a *Agent) Registry() *tools.ToolRegistry {
	return a.registry
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession serializes work on one session. The returned func unlocks it;
// the entry is dropped once no caller holds or waits for it.
func (a *Agent) lockSession(id string) (unlock func()) {
	a.locksMu.Lock()
	l, ok := a.locks[id]
	if !ok {
		l = &keyedLock{}
		a.locks[id] = l
	}
	l.refs++
	a.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.locksMu.Lock()
		defer a.locksMu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(a.locks, id)
		}
	}
}

// Run processes one user turn in the given session and returns the final
// response. On an API failure it returns ErrorResponse together with the
// wrapped error; the session is left unchanged.
func (a *Agent) Run(ctx context.Context, sessionID, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyInput
	}

	defer a.lockSession(sessionID)()

	cfg := a.Config()
	hist := a.history(ctx, sessionID)

	userMsg := Message{Role: RoleUser, Content: input}
	turn := []Message{userMsg}

	conversation := []Message{{Role: RoleSystem, Content: a.systemPrompt(ctx, cfg)}}
	conversation = append(conversation, hist.Messages()...)
	conversation = append(conversation, userMsg)

	var availableTools []openai.Tool
	if cfg.EnableToolCalls {
		availableTools = a.registry.GetOpenAITools()
	}

	var (
		answer string
		done   bool
	)
	for iteration := 0; iteration < cfg.MaxIterations && !done; iteration++ {
		metrics.IterationsTotal.Inc()

		start := time.Now()
		resp, err := createCompletion(ctx, a.client, newRequest(cfg, conversation, availableTools), cfg.APITimeout, cfg.Retry)
		metrics.ObserveLLM(start, err)
		if err != nil {
			logger.Errorf("OpenAI API error (iteration %d): %v", iteration, err)
			metrics.TurnsTotal.WithLabelValues("error").Inc()
			return ErrorResponse, fmt.Errorf("completion failed: %w", err)
		}

		reply := FromOpenAI(resp.Choices[0].Message)
		reply.Role = RoleAssistant
		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].ID == "" {
				reply.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
		}
		turn = append(turn, reply)
		conversation = append(conversation, reply)

		if !reply.HasToolCalls() {
			answer = strings.TrimSpace(reply.Content)
			done = true
			break
		}

		logger.Infof("Found %d tool calls in iteration %d", len(reply.ToolCalls), iteration)
		results, final, finished := a.act(ctx, reply.ToolCalls)
		turn = append(turn, results...)
		conversation = append(conversation, results...)
		if finished {
			answer = final
			done = true
			turn = append(turn, Message{Role: RoleAssistant, Content: final})
		}
	}

	outcome := "answered"
	if !done {
		logger.Warnf("Reached maximum tool call iterations (%d)", cfg.MaxIterations)
		outcome = "max_iterations"
		answer = fallbackResponse(turn)
	} else if answer == "" {
		logger.Warnf("Empty AI response after tool execution")
		outcome = "fallback"
		answer = fallbackResponse(turn)
		if last := &turn[len(turn)-1]; last.Role == RoleAssistant && !last.HasToolCalls() {
			last.Content = answer
		}
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()

	a.commit(ctx, sessionID, hist, turn)
	return answer, nil
}

// act executes the calls in order. A final_answer call that succeeds ends
// the turn with its result.
func (a *Agent) act(ctx context.Context, calls []ToolCall) (results []Message, final string, finished bool) {
	for _, call := range calls {
		logger.AIDebugf("Processing tool call: %s", call.Name)

		output, err := a.registry.ExecuteTool(ctx, call.Name, call.Arguments)
		if err != nil {
			output = "Error executing tool: " + err.Error()
		} else if strings.TrimSpace(output) == "" {
			output = "(no output)"
		} else {
			logger.AIDebugf("Tool %s executed, response length: %d chars", call.Name, len(output))
			if call.Name == tools.FinalAnswerToolName {
				final, finished = output, true
			}
		}

		results = append(results, Message{
			Role:       RoleTool,
			Content:    output,
			Name:       call.Name,
			ToolCallID: call.ID,
		})
	}
	return results, final, finished
}

func newRequest(cfg Config, conversation []Message, availableTools []openai.Tool) openai.ChatCompletionRequest {
	request := openai.ChatCompletionRequest{
		Model:       MapModelName(cfg.Model),
		Messages:    toOpenAIMessages(conversation),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxResponseTokens,
	}
	if len(availableTools) > 0 {
		request.Tools = availableTools
	}
	return request
}

func (a *Agent) systemPrompt(ctx context.Context, cfg Config) string {
	prompt := cfg.SystemPrompt
	if notes := tools.UserNotesContext(ctx, a.notes, tools.CallerFrom(ctx)); notes != "" {
		prompt += "\n\n" + notes
	}
	return prompt
}

// history returns the in-memory window for a session, seeding it from the
// persister the first time the session is seen.
func (a *Agent) history(ctx context.Context, sessionID string) *History {
	hist, existed := a.sessions.Get(sessionID)
	if existed || a.persister == nil {
		return hist
	}

	msgs, err := a.persister.Load(ctx, sessionID, hist.Limit())
	if err != nil {
		logger.Errorf("Failed to load session %s: %v", sessionID, err)
		return hist
	}
	hist.Append(msgs...)
	if len(msgs) > 0 {
		logger.Infof("Restored %d messages for session %s", hist.Len(), sessionID)
	}
	return hist
}

func (a *Agent) commit(ctx context.Context, sessionID string, hist *History, turn []Message) {
	turn, dropped := ValidMessages(turn)
	if dropped > 0 {
		logger.Warnf("Dropped %d invalid messages from session %s", dropped, sessionID)
	}
	hist.Append(turn...)
	for _, msg := range turn {
		if msg.Content != "" {
			logger.LogSessionMessage(sessionID, string(msg.Role), msg.Content)
		}
	}
	if a.persister == nil {
		return
	}
	if err := a.persister.Save(ctx, sessionID, turn); err != nil {
		logger.Errorf("Failed to save session %s: %v", sessionID, err)
	}
}

// fallbackResponse names the tools used during a turn that produced no text.
func fallbackResponse(turn []Message) string {
	var toolNames []string
	for _, msg := range turn {
		if msg.Role == RoleTool {
			toolNames = append(toolNames, msg.Name)
		}
	}
	if len(toolNames) > 0 {
		return "I've completed your request using: " + strings.Join(toolNames, ", ")
	}
	return emptyResultFallback
}
