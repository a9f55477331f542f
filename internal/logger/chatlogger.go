package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type LogType string

const (
	SessionLog LogType = "SESSION"
	ChannelLog LogType = "CHANNEL"
)

// chatLogger keeps one open transcript file per session and day.
type chatLogger struct {
	baseDir     string
	logFiles    map[string]*os.File
	mutex       sync.Mutex
	currentDate string
	now         func() time.Time
}

var (
	chatLog     *chatLogger
	chatLogOnce sync.Once
)

func getChatLogger() *chatLogger {
	chatLogOnce.Do(func() {
		chatLog = newChatLogger(filepath.Join("logs"))
	})
	return chatLog
}

func newChatLogger(baseDir string) *chatLogger {
	return &chatLogger{
		baseDir:     baseDir,
		logFiles:    make(map[string]*os.File),
		currentDate: time.Now().Format("2006-01-02"),
		now:         time.Now,
	}
}

// SetTranscriptDir changes where transcripts are written. Open files are closed.
func SetTranscriptDir(dir string) {
	cl := getChatLogger()
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.closeAll()
	cl.baseDir = dir
}

func (cl *chatLogger) getLogFilePath(logType LogType, name string, date string) string {
	dirPath := filepath.Join(cl.baseDir, string(logType), sanitizeFilename(name))
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		Errorf("Failed to create directory for logs: %v", err)
		return ""
	}
	return filepath.Join(dirPath, fmt.Sprintf("%s.log", date))
}

func sanitizeFilename(name string) string {
	safeMap := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '\'',
		'<':  '(',
		'>':  ')',
		'|':  '-',
	}

	result := []rune(name)
	for i, char := range result {
		if replacement, found := safeMap[char]; found {
			result[i] = replacement
		}
	}
	return string(result)
}

// getLogWriter returns the transcript file, rotating when the day changes.
// Caller must hold cl.mutex.
func (cl *chatLogger) getLogWriter(logType LogType, name string) *os.File {
	currentDate := cl.now().Format("2006-01-02")
	logKey := fmt.Sprintf("%s:%s", logType, name)

	if currentDate != cl.currentDate {
		cl.closeAll()
		cl.currentDate = currentDate
	}

	if file, exists := cl.logFiles[logKey]; exists {
		return file
	}

	logPath := cl.getLogFilePath(logType, name, currentDate)
	if logPath == "" {
		return nil
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		Errorf("Failed to open log file %s: %v", logPath, err)
		return nil
	}
	cl.logFiles[logKey] = file
	return file
}

func (cl *chatLogger) write(logType LogType, name, entry string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	writer := cl.getLogWriter(logType, name)
	if writer == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", cl.now().Format("15:04:05"), entry)
	if _, err := writer.WriteString(line); err != nil {
		Errorf("Failed to write %s log: %v", logType, err)
	}
}

func (cl *chatLogger) closeAll() {
	for key, file := range cl.logFiles {
		file.Close()
		delete(cl.logFiles, key)
	}
}

// LogSessionMessage appends one conversation line to the session transcript.
func LogSessionMessage(sessionID, role, content string) {
	getChatLogger().write(SessionLog, sessionID, fmt.Sprintf("<%s> %s", role, content))
}

// LogChannelMessage appends a chat-bridge line to the channel transcript.
func LogChannelMessage(channel, sender, message string) {
	getChatLogger().write(ChannelLog, channel, fmt.Sprintf("<%s> %s", sender, message))
}

// CloseAllChatLogs closes all open transcript files
func CloseAllChatLogs() {
	if chatLog == nil {
		return
	}
	chatLog.mutex.Lock()
	defer chatLog.mutex.Unlock()
	chatLog.closeAll()
}
