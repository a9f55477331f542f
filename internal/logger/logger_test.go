package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMessage(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	dir := t.TempDir()
	require.NoError(t, Setup(dir))
	t.Cleanup(CloseLogFile)

	Infof("hello %s", "world")
	Errorf("boom %d", 42)
	AIDebugf("tool %s", "calculator")

	assert.Contains(t, buf.String(), "hello world")
	assert.Contains(t, buf.String(), "boom 42")

	errLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "boom 42")
	assert.NotContains(t, string(errLog), "hello world")

	aiLog, err := os.ReadFile(filepath.Join(dir, "ai.log"))
	require.NoError(t, err)
	assert.Contains(t, string(aiLog), "tool calculator")
}

func TestSetOutputNilSilencesConsole(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetOutput(nil)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Infof("should not appear")
	assert.Empty(t, buf.String())
}

func TestChatLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	cl := newChatLogger(dir)
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	cl.now = func() time.Time { return day }

	cl.write(SessionLog, "abc/def", "<user> hi")
	day = day.Add(2 * time.Minute)
	cl.write(SessionLog, "abc/def", "<assistant> hello")
	cl.mutex.Lock()
	cl.closeAll()
	cl.mutex.Unlock()

	first, err := os.ReadFile(filepath.Join(dir, "SESSION", "abc-def", "2026-03-01.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "SESSION", "abc-def", "2026-03-02.log"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(first)), "<user> hi"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(second)), "<assistant> hello"))
}

func TestGetColorFunc(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = noColor })

	tests := []struct {
		name string
		code string
	}{
		{"blue", "\x1b[34m"},
		{"yellow", "\x1b[33m"},
		{"cyan", "\x1b[36m"},
		{"red", "\x1b[31m"},
		{"bright_green", "\x1b[92m"},
		{"no-such-color", "\x1b[37m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(GetColorFunc(tt.name)("x"), tt.code))
		})
	}
}
