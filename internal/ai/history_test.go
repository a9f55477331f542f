package ai

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryKeepsMostRecent(t *testing.T) {
	h := NewHistory(30)
	for i := 0; i < 100; i++ {
		h.Append(Message{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)})
	}

	msgs := h.Messages()
	require.Len(t, msgs, 30)
	assert.Equal(t, "msg 70", msgs[0].Content)
	assert.Equal(t, "msg 99", msgs[len(msgs)-1].Content)
}

func TestHistoryUnbounded(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 50; i++ {
		h.Append(Message{Role: RoleUser, Content: "x"})
	}
	assert.Equal(t, 50, h.Len())
}

func TestHistoryNeverStartsWithOrphanToolResult(t *testing.T) {
	h := NewHistory(3)
	h.Append(
		Message{Role: RoleUser, Content: "what time is it in Seoul?"},
		Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "get_current_time"}}},
		Message{Role: RoleTool, Content: "12:00", ToolCallID: "c1"},
		Message{Role: RoleAssistant, Content: "It is noon."},
	)

	msgs := h.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "It is noon.", msgs[0].Content)

	h.Append(Message{Role: RoleUser, Content: "thanks"})
	msgs = h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
}

func TestHistoryMessagesIsACopy(t *testing.T) {
	h := NewHistory(0)
	h.Append(Message{Role: RoleUser, Content: "a"})
	msgs := h.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "a", h.Messages()[0].Content)

	h.Reset()
	assert.Zero(t, h.Len())
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := NewHistory(10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Append(Message{Role: RoleUser, Content: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, h.Len())
}

func TestSessions(t *testing.T) {
	s := NewSessions(5)
	a, existed := s.Get("a")
	assert.False(t, existed)
	a.Append(Message{Role: RoleUser, Content: "hi"})

	again, existed := s.Get("a")
	assert.True(t, existed)
	assert.Same(t, a, again)
	assert.Equal(t, 5, again.Limit())

	s.Get("b")
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	s.Delete("a")
	assert.Equal(t, []string{"b"}, s.IDs())
}

func TestHistoryDropsLeadingToolResultsBelowLimit(t *testing.T) {
	h := NewHistory(10)
	h.Append(
		Message{Role: RoleTool, Content: "42", ToolCallID: "c9"},
		Message{Role: RoleAssistant, Content: "The answer is 42."},
		Message{Role: RoleUser, Content: "thanks"},
	)

	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "The answer is 42.", msgs[0].Content)
}
