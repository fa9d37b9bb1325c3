package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath is the viewer log file, relative to the working directory.
const DefaultPath = "logs/gyroview.txt"

// maxLines bounds the in-memory history shown by the console.
const maxLines = 500

// Logger keeps recent lines in memory for the on-screen console and appends every line to a file on disk.
// A nil *Logger discards everything, so components can be built without one in tests.
type Logger struct {
	mu    sync.Mutex
	path  string
	lines []string
	now   func() time.Time
}

// New returns a Logger writing to path. An empty path keeps lines in memory only.
// The parent directory is created if needed.
func New(path string) *Logger {
	if path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0755)
	}
	return &Logger{path: path, lines: make([]string, 0, 64), now: time.Now}
}

// Log appends a line prefixed with [timestamp] to memory and to the log file.
func (l *Logger) Log(line string) {
	if l == nil {
		return
	}
	stamped := "[" + l.now().Format("2006-01-02 15:04:05") + "] " + line

	l.mu.Lock()
	if len(l.lines) == maxLines {
		copy(l.lines, l.lines[1:])
		l.lines = l.lines[:maxLines-1]
	}
	l.lines = append(l.lines, stamped)
	path := l.path
	l.mu.Unlock()

	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	_, _ = f.WriteString(stamped + "\n")
	_ = f.Close()
}

// Logf formats and logs a line.
func (l *Logger) Logf(format string, v ...any) {
	if l == nil {
		return
	}
	l.Log(fmt.Sprintf(format, v...))
}

// Warnf logs a line tagged as a warning.
func (l *Logger) Warnf(format string, v ...any) {
	if l == nil {
		return
	}
	l.Log("WARN " + fmt.Sprintf(format, v...))
}

// Errorf logs a line tagged as an error.
func (l *Logger) Errorf(format string, v ...any) {
	if l == nil {
		return
	}
	l.Log("ERROR " + fmt.Sprintf(format, v...))
}

// Lines returns a copy of the stored lines, oldest first.
func (l *Logger) Lines() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}
