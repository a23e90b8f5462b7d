// internal/logging/logger.go
//
// Appends timestamped lines to .sluice/logs/sluice.log so pipeline
// activity can be inspected after a run finishes.

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dir is the per-project directory sluice writes under.
const Dir = ".sluice"

// Logger appends timestamped lines to the project log file.
type Logger struct {
	file *os.File
}

// New creates (or reuses) the log file for the given project directory.
func New(projectDir string) (*Logger, error) {
	logDir := filepath.Join(projectDir, Dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, "sluice.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{file: f}, nil
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Printf writes a single timestamped line to the log file.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := time.Now().Format(time.RFC3339)
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, line)
}

// Component returns a logger view that prefixes every line, so the
// executor and processor can share one file without losing attribution.
func (l *Logger) Component(name string) *ComponentLogger {
	return &ComponentLogger{parent: l, prefix: name}
}

// ComponentLogger is a named view over a shared Logger.
type ComponentLogger struct {
	parent *Logger
	prefix string
}

// Printf writes one line attributed to the component.
func (c *ComponentLogger) Printf(format string, args ...any) {
	if c == nil || c.parent == nil {
		return
	}
	c.parent.Printf("%s: %s", c.prefix, fmt.Sprintf(format, args...))
}
