package ai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentloop/internal/ai/tools"
	"agentloop/internal/logger"
	"agentloop/internal/store"
)

func TestMain(m *testing.M) {
	logger.SetOutput(nil)
	os.Exit(m.Run())
}

// fakeClient replays scripted responses and records every request.
type fakeClient struct {
	mu        sync.Mutex
	responses []openai.ChatCompletionMessage
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return openai.ChatCompletionResponse{}, err
		}
	}
	if len(f.responses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no scripted response")
	}
	msg := f.responses[0]
	f.responses = f.responses[1:]
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: msg}},
	}, nil
}

func (f *fakeClient) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func text(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
}

func toolCall(id, name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.SystemPrompt = "You are a test assistant."
	cfg.APITimeout = time.Second
	cfg.Retry = RetryPolicy{MaxRetries: 0, Base: time.Millisecond}
	return cfg
}

func testRegistry(t *testing.T) *tools.ToolRegistry {
	t.Helper()
	r := tools.NewToolRegistry()
	calc, err := tools.NewCalculatorTool()
	require.NoError(t, err)
	r.RegisterTool(calc)
	r.RegisterTool(tools.NewFinalAnswerTool())
	return r
}

func TestRunTextAnswer(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionMessage{text("Hello there!")}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	resp, err := agent.Run(context.Background(), "s1", "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", resp)

	require.Equal(t, 1, client.requestCount())
	req := client.requests[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)
	assert.Len(t, req.Tools, 2)
}

func TestRunEmptyInput(t *testing.T) {
	client := &fakeClient{}
	agent := NewAgent(client, testRegistry(t), testConfig())

	_, err := agent.Run(context.Background(), "s1", " \n\t")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, client.requestCount())
}

func TestRunToolThenAnswer(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionMessage{
		toolCall("call_1", "calculator", `{"expression":"6 * 7"}`),
		text("The answer is 42."),
	}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	resp, err := agent.Run(context.Background(), "s1", "what is 6 times 7?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", resp)

	require.Equal(t, 2, client.requestCount())
	second := client.requests[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "6 * 7 = 42", last.Content)

	// the whole turn is kept for the next one
	hist, _ := agent.sessions.Get("s1")
	assert.Equal(t, 4, hist.Len())
}

func TestRunStopsOnFinalAnswer(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionMessage{
		toolCall("call_1", tools.FinalAnswerToolName, `{"answer":"Done: 42"}`),
		text("never requested"),
	}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	resp, err := agent.Run(context.Background(), "s1", "finish up")
	require.NoError(t, err)
	assert.Equal(t, "Done: 42", resp)
	assert.Equal(t, 1, client.requestCount())

	msgs, _ := agent.sessions.Get("s1")
	last := msgs.Messages()[msgs.Len()-1]
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Equal(t, "Done: 42", last.Content)
}

func TestRunToolErrorsAreFedBack(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionMessage{
		toolCall("call_1", "does_not_exist", `{}`),
		toolCall("call_2", "calculator", `{"expression":"1 / 0"}`),
		text("I could not compute that."),
	}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	resp, err := agent.Run(context.Background(), "s1", "divide by zero")
	require.NoError(t, err)
	assert.Equal(t, "I could not compute that.", resp)

	second := client.requests[1].Messages
	assert.Contains(t, second[len(second)-1].Content, "Error executing tool: tool not found")
	third := client.requests[2].Messages
	assert.Contains(t, third[len(third)-1].Content, "Error executing tool:")
}

func TestRunMaxIterationsFallback(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 2
	client := &fakeClient{responses: []openai.ChatCompletionMessage{
		toolCall("call_1", "calculator", `{"expression":"1 + 1"}`),
		toolCall("call_2", "calculator", `{"expression":"2 + 2"}`),
		text("too late"),
	}}
	agent := NewAgent(client, testRegistry(t), cfg)

	resp, err := agent.Run(context.Background(), "s1", "loop forever")
	require.NoError(t, err)
	assert.Equal(t, "I've completed your request using: calculator, calculator", resp)
	assert.Equal(t, 2, client.requestCount())
}

func TestRunEmptyAnswerFallback(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionMessage{text("   "), text("ok")}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	resp, err := agent.Run(context.Background(), "s1", "say nothing")
	require.NoError(t, err)
	assert.Equal(t, emptyResultFallback, resp)

	resp, err = agent.Run(context.Background(), "s1", "and now?")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	// the empty reply is stored with the fallback text, never as a bare assistant message
	client.mu.Lock()
	next := client.requests[1].Messages
	client.mu.Unlock()
	require.Len(t, next, 4)
	for _, msg := range next[1:] {
		assert.NotEmpty(t, msg.Content, "role %s", msg.Role)
	}
	assert.Equal(t, emptyResultFallback, next[2].Content)

	hist, _ := agent.sessions.Get("s1")
	for _, msg := range hist.Messages() {
		assert.NoError(t, msg.Validate())
	}
}

func TestRunLegacyCallGetsID(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionMessage{
		{
			Role:         openai.ChatMessageRoleAssistant,
			FunctionCall: &openai.FunctionCall{Name: "calculator", Arguments: `{"expression":"2 + 2"}`},
		},
		text("4"),
	}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	_, err := agent.Run(context.Background(), "s1", "2+2")
	require.NoError(t, err)

	msgs := client.requests[1].Messages
	call := msgs[len(msgs)-2]
	result := msgs[len(msgs)-1]
	require.Len(t, call.ToolCalls, 1)
	assert.NotEmpty(t, call.ToolCalls[0].ID)
	assert.Equal(t, call.ToolCalls[0].ID, result.ToolCallID)
}

func TestRunAPIErrorReturnsApology(t *testing.T) {
	client := &fakeClient{errs: []error{&openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad request"}}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	resp, err := agent.Run(context.Background(), "s1", "hello")
	require.Error(t, err)
	assert.Equal(t, ErrorResponse, resp)

	var apiErr *openai.APIError
	assert.ErrorAs(t, err, &apiErr)

	hist, _ := agent.sessions.Get("s1")
	assert.Zero(t, hist.Len())
}

func TestRunRetriesTransientErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Retry = RetryPolicy{MaxRetries: 2, Base: time.Millisecond, Max: 5 * time.Millisecond}
	client := &fakeClient{
		errs: []error{
			&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests},
			&openai.RequestError{HTTPStatusCode: http.StatusBadGateway},
		},
		responses: []openai.ChatCompletionMessage{text("finally")},
	}
	agent := NewAgent(client, testRegistry(t), cfg)

	resp, err := agent.Run(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "finally", resp)
	assert.Equal(t, 3, client.requestCount())
}

func TestRunKeepsConversationAcrossTurns(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionMessage{text("Nice to meet you, Ana."), text("Your name is Ana.")}}
	agent := NewAgent(client, testRegistry(t), testConfig())

	_, err := agent.Run(context.Background(), "s1", "my name is Ana")
	require.NoError(t, err)
	_, err = agent.Run(context.Background(), "s1", "what is my name?")
	require.NoError(t, err)

	msgs := client.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "my name is Ana", msgs[1].Content)
	assert.Equal(t, "Nice to meet you, Ana.", msgs[2].Content)
}

func TestRunPersistsAndRestoresSessions(t *testing.T) {
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.SaveNote(context.Background(), "ana", "Prefers short answers")
	require.NoError(t, err)

	client := &fakeClient{responses: []openai.ChatCompletionMessage{
		toolCall("call_1", "calculator", `{"expression":"1 + 2"}`),
		text("3"),
		text("You asked about 1 + 2."),
	}}
	first := NewAgent(client, testRegistry(t), testConfig(), WithPersister(NewStorePersister(db)), WithNotes(db))

	ctx := tools.WithCaller(context.Background(), "ana")
	_, err = first.Run(ctx, "persisted", "what is 1 + 2?")
	require.NoError(t, err)
	assert.Contains(t, client.requests[0].Messages[0].Content, "- Prefers short answers")

	// a fresh agent picks the session up from the store
	second := NewAgent(client, testRegistry(t), testConfig(), WithPersister(NewStorePersister(db)))
	_, err = second.Run(context.Background(), "persisted", "what did I ask?")
	require.NoError(t, err)

	msgs := client.requests[2].Messages
	require.Len(t, msgs, 6)
	assert.Equal(t, "what is 1 + 2?", msgs[1].Content)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.NotContains(t, msgs[0].Content, "Prefers short answers")

	require.NoError(t, second.ResetSession(context.Background(), "persisted"))
	exists, err := db.SessionExists(context.Background(), "persisted")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStatus(t *testing.T) {
	agent := NewAgent(&fakeClient{}, testRegistry(t), testConfig())
	agent.SetModel("gpt-4o-mini")
	agent.EnableToolCalls(false)

	status := agent.Status()
	assert.Equal(t, "gpt-4o-mini", status["model"])
	assert.Equal(t, false, status["enableTools"])
	assert.Equal(t, []string{"calculator", "final_answer"}, status["availableTools"])
}

func TestToolsOmittedWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableToolCalls = false
	client := &fakeClient{responses: []openai.ChatCompletionMessage{text("ok")}}
	agent := NewAgent(client, testRegistry(t), cfg)

	_, err := agent.Run(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Empty(t, client.requests[0].Tools)
}

func TestStorePersisterSkipsInvalidRows(t *testing.T) {
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InsertMessages(context.Background(), "legacy", []store.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant"},
		{Role: "assistant", Content: "hello"},
	}))

	msgs, err := NewStorePersister(db).Load(context.Background(), "legacy", 20)
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}, msgs)
}

func TestSessionLocksAreReleased(t *testing.T) {
	agent := NewAgent(echoClient{}, testRegistry(t), testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agent.Run(context.Background(), "shared", "ping")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	hist, _ := agent.sessions.Get("shared")
	assert.Equal(t, 16, hist.Len())

	agent.locksMu.Lock()
	assert.Empty(t, agent.locks)
	agent.locksMu.Unlock()
}
