package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelSuccess LogLevel = "SUCCESS"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
	LevelDebug   LogLevel = "DEBUG"
	LevelNotice  LogLevel = "NOTICE"
)

var (
	mu sync.Mutex

	console io.Writer = os.Stdout
	quiet   bool

	errorLogger  *stdlog.Logger
	errorLogFile *os.File

	// Separate AI logger that doesn't write to the error log
	aiLogger  *stdlog.Logger
	aiLogFile *os.File
)

// Setup opens error.log and ai.log inside dataDir. Until it is called the
// logger only writes to the console.
func Setup(dataDir string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	var err error
	errorLogFile, err = os.OpenFile(filepath.Join(dataDir, "error.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening error log file: %w", err)
	}
	errorLogger = stdlog.New(errorLogFile, "", 0)

	aiLogFile, err = os.OpenFile(filepath.Join(dataDir, "ai.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening AI log file: %w", err)
	}
	aiLogger = stdlog.New(aiLogFile, "", 0)

	return nil
}

// SetOutput redirects console output. Passing nil silences the console
// while keeping the file sinks.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		quiet = true
		return
	}
	quiet = false
	console = w
}

// CloseLogFile should be called during shutdown to properly close all log files
func CloseLogFile() {
	mu.Lock()
	defer mu.Unlock()

	if errorLogFile != nil {
		errorLogFile.Close()
		errorLogFile = nil
		errorLogger = nil
	}

	if aiLogFile != nil {
		aiLogFile.Close()
		aiLogFile = nil
		aiLogger = nil
	}
}

var colorMap = map[string]func(a ...interface{}) string{
	string(LevelInfo):    color.New(color.FgBlue).SprintFunc(),
	string(LevelSuccess): color.New(color.FgGreen).SprintFunc(),
	string(LevelWarning): color.New(color.FgYellow).SprintFunc(),
	string(LevelError):   color.New(color.FgRed).SprintFunc(),
	string(LevelDebug):   color.New(color.FgCyan).SprintFunc(),
	string(LevelNotice):  color.New(color.FgMagenta).SprintFunc(),

	"blue":    color.New(color.FgBlue).SprintFunc(),
	"green":   color.New(color.FgGreen).SprintFunc(),
	"yellow":  color.New(color.FgYellow).SprintFunc(),
	"red":     color.New(color.FgRed).SprintFunc(),
	"cyan":    color.New(color.FgCyan).SprintFunc(),
	"magenta": color.New(color.FgMagenta).SprintFunc(),
	"white":   color.New(color.FgWhite).SprintFunc(),
	"black":   color.New(color.FgBlack).SprintFunc(),
	"purple":  color.New(color.FgHiMagenta).SprintFunc(),

	"bright_blue":   color.New(color.FgHiBlue).SprintFunc(),
	"bright_green":  color.New(color.FgHiGreen).SprintFunc(),
	"bright_yellow": color.New(color.FgHiYellow).SprintFunc(),
	"bright_red":    color.New(color.FgHiRed).SprintFunc(),
	"bright_cyan":   color.New(color.FgHiCyan).SprintFunc(),
	"bright_white":  color.New(color.FgHiWhite).SprintFunc(),
}

// GetColorFunc returns the named color, falling back to white for unknown names.
func GetColorFunc(colorName string) func(a ...interface{}) string {
	if fn, ok := colorMap[colorName]; ok {
		return fn
	}
	return colorMap["white"]
}

func printConsole(tag, colorName, message string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	fmt.Fprintln(console, GetColorFunc(colorName)(fmt.Sprintf("[%s] ", tag))+message)
}

func logMessage(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	printConsole(string(level), string(level), message)

	// Only errors and warnings reach error.log
	if level == LevelError || level == LevelWarning {
		mu.Lock()
		if errorLogger != nil {
			errorLogger.Printf("[%s] %s: %s", level, timestamp, message)
		}
		mu.Unlock()
	}
}

func Infof(format string, args ...interface{}) {
	logMessage(LevelInfo, format, args...)
}

func Successf(format string, args ...interface{}) {
	logMessage(LevelSuccess, format, args...)
}

func Warnf(format string, args ...interface{}) {
	logMessage(LevelWarning, format, args...)
}

func Errorf(format string, args ...interface{}) {
	logMessage(LevelError, format, args...)
}

func Debugf(format string, args ...interface{}) {
	logMessage(LevelDebug, format, args...)
}

func Noticef(format string, args ...interface{}) {
	logMessage(LevelNotice, format, args...)
}

// AIDebugf logs model and tool traffic to ai.log instead of error.log
func AIDebugf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	printConsole("AI-DEBUG", string(LevelDebug), message)

	mu.Lock()
	defer mu.Unlock()
	if aiLogger != nil {
		aiLogger.Printf("[DEBUG] %s: %s", timestamp, message)
	}
}

// ChatMsgf prints a line of conversation to the console.
func ChatMsgf(format string, args ...interface{}) {
	printConsole("CHAT", "green", fmt.Sprintf(format, args...))
}
