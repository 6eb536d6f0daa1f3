package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rahul/onboardly/internal/analytics"
)

// Logger writes every lifecycle event as one JSON line to a local file and,
// optionally, to an echo writer. It is the local record of what was sent to
// the collector.
type Logger struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	echo    io.Writer
}

// NewLogger logs to path (empty disables the file). echo may be nil.
func NewLogger(path string, echo io.Writer) *Logger {
	return &Logger{
		path:    path,
		maxSize: 10 * 1024 * 1024, // 10MB
		echo:    echo,
	}
}

// Track implements analytics.Sink.
func (l *Logger) Track(_ context.Context, evt analytics.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = fmt.Appendf(nil, "{\"error\": \"failed to marshal event: %v\"}", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.echo != nil {
		fmt.Fprintln(l.echo, string(data))
	}
	if l.path != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.path)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.path + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.path, oldPath)
}
