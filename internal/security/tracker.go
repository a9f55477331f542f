package security

import (
	"sync"
	"time"
)

// MessageTracker counts messages per hostmask in a sliding window and keeps
// a warning tally for flood protection.
type MessageTracker struct {
	mu               sync.Mutex
	userMessages     map[string][]time.Time
	warningCounts    map[string]int
	window           time.Duration
	maxPerWindow     int
	warningThreshold int
	now              func() time.Time
}

func NewMessageTracker(window time.Duration, maxPerWindow, warningThreshold int) *MessageTracker {
	return &MessageTracker{
		userMessages:     make(map[string][]time.Time),
		warningCounts:    make(map[string]int),
		window:           window,
		maxPerWindow:     maxPerWindow,
		warningThreshold: warningThreshold,
		now:              time.Now,
	}
}

// DefaultMessageTracker allows 5 messages per 10 seconds and 3 warnings.
func DefaultMessageTracker() *MessageTracker {
	return NewMessageTracker(10*time.Second, 5, 3)
}

// TrackMessage records a message and reports whether the sender is over the
// limit, along with the number of messages in the window.
func (m *MessageTracker) TrackMessage(hostmask string) (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	kept := m.userMessages[hostmask][:0]
	for _, t := range m.userMessages[hostmask] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	m.userMessages[hostmask] = kept

	return len(kept) > m.maxPerWindow, len(kept)
}

// AddWarning increments the warning count and reports whether the threshold
// has been reached.
func (m *MessageTracker) AddWarning(hostmask string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.warningCounts[hostmask]++
	return m.warningCounts[hostmask] >= m.warningThreshold
}

func (m *MessageTracker) WarningCount(hostmask string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warningCounts[hostmask]
}

func (m *MessageTracker) WarningThreshold() int {
	return m.warningThreshold
}

// ResetUser clears all tracking data for a user
func (m *MessageTracker) ResetUser(hostmask string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.userMessages, hostmask)
	delete(m.warningCounts, hostmask)
}
