package ai

import (
	"sort"
	"sync"
)

// History is an ordered conversation, optionally bounded to the most recent
// limit messages. A limit <= 0 keeps everything.
type History struct {
	mu       sync.RWMutex
	limit    int
	messages []Message
}

func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Append adds messages in order and trims the window.
func (h *History) Append(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
	h.trim()
}

// trim keeps the newest limit messages and then drops from the head until the
// window starts at a user message or a plain assistant answer, so a tool
// result never outlives the call that produced it.
func (h *History) trim() {
	start := 0
	if h.limit > 0 && len(h.messages) > h.limit {
		start = len(h.messages) - h.limit
	}
	for start < len(h.messages) && !isWindowStart(h.messages[start]) {
		start++
	}
	if start == 0 {
		return
	}
	kept := make([]Message, len(h.messages)-start)
	copy(kept, h.messages[start:])
	h.messages = kept
}

func isWindowStart(m Message) bool {
	switch m.Role {
	case RoleUser:
		return true
	case RoleAssistant:
		return !m.HasToolCalls()
	}
	return false
}

// Messages returns a copy of the current window.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

func (h *History) Limit() int {
	return h.limit
}

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Sessions holds one History per session id.
type Sessions struct {
	mu      sync.Mutex
	limit   int
	history map[string]*History
}

func NewSessions(limit int) *Sessions {
	return &Sessions{limit: limit, history: make(map[string]*History)}
}

// Get returns the history for id, creating it on first use. The bool reports
// whether it already existed.
func (s *Sessions) Get(id string) (*History, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.history[id]; ok {
		return h, true
	}
	h := NewHistory(s.limit)
	s.history[id] = h
	return h, false
}

func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, id)
}

// IDs lists known sessions in sorted order.
func (s *Sessions) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.history))
	for id := range s.history {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
