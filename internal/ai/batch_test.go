package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapQueriesPreservesOrder(t *testing.T) {
	queries := []string{"a", "b", "c", "d", "e", "f"}
	results := MapQueries(context.Background(), queries, 3, func(ctx context.Context, q string) (string, error) {
		// later queries finish first
		time.Sleep(time.Duration(len(queries)-strings.Index("abcdef", q)) * time.Millisecond)
		return strings.ToUpper(q), nil
	})

	require.Len(t, results, len(queries))
	for i, r := range results {
		assert.Equal(t, queries[i], r.Query)
		assert.Equal(t, strings.ToUpper(queries[i]), r.Response)
		assert.NoError(t, r.Err)
	}
}

func TestMapQueriesRespectsWorkerBound(t *testing.T) {
	var running, peak atomic.Int32
	queries := make([]string, 20)
	for i := range queries {
		queries[i] = fmt.Sprint(i)
	}

	MapQueries(context.Background(), queries, 4, func(ctx context.Context, q string) (string, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return q, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Positive(t, peak.Load())
}

func TestMapQueriesIsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	results := MapQueries(context.Background(), []string{"ok", "fail", "ok"}, 2, func(ctx context.Context, q string) (string, error) {
		if q == "fail" {
			return "", boom
		}
		return "fine", nil
	})

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "fine", results[2].Response)
}

func TestMapQueriesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := MapQueries(ctx, []string{"a", "b"}, 0, func(ctx context.Context, q string) (string, error) {
		calls.Add(1)
		return q, nil
	})

	assert.Zero(t, calls.Load())
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

// echoClient answers with the last user message.
type echoClient struct{}

func (echoClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	last := req.Messages[len(req.Messages)-1]
	if last.Content == "explode" {
		return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: 400, Message: "rejected"}
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: text("echo: " + last.Content)}},
	}, nil
}

func TestRunBatch(t *testing.T) {
	agent := NewAgent(echoClient{}, testRegistry(t), testConfig())

	results := agent.RunBatch(context.Background(), []string{"one", "explode", "three"}, 2)
	require.Len(t, results, 3)
	assert.Equal(t, "echo: one", results[0].Response)
	assert.Equal(t, ErrorResponse, results[1].Response)
	assert.Error(t, results[1].Err)
	assert.Equal(t, "echo: three", results[2].Response)

	// throwaway sessions are gone afterwards
	assert.Empty(t, agent.SessionIDs())
	agent.locksMu.Lock()
	assert.Empty(t, agent.locks)
	agent.locksMu.Unlock()
}
