package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	logger = newLogger()
	file   *os.File
	mu     sync.Mutex
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Logger returns the project logger for structured logging
func Logger() *logrus.Logger {
	return logger
}

// DefaultPath is ~/.config/go-looper/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-looper", "debug.log")
}

// Enable starts logging to path (DefaultPath if empty), truncating it.
// The TUI owns the terminal, so logs never go to stderr.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "open log %s", path)
	}

	file = f
	logger.SetOutput(f)
	logger.WithField("category", "debug").Info("=== Debug logging started ===")
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	logger.SetOutput(io.Discard)
	if file != nil {
		file.Close()
		file = nil
	}
}

// SetLevel parses a logrus level name such as "info" or "debug"
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// Log writes a debug message under a category
func Log(category, format string, args ...any) {
	logger.WithField("category", category).Debugf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
