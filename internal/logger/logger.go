package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	currentLevel atomic.Int32

	mu      sync.RWMutex
	slogger *slog.Logger
	output  io.Writer = os.Stdout
	format            = "text"
	closer  io.Closer
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	reconfigure()
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseLevel(level string) (Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	if l, ok := parseLevel(level); ok {
		currentLevel.Store(int32(l))
	}
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetOutput redirects log output. Mainly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
	reconfigure()
}

// Configure applies a complete logger configuration.
//
// Output may be "stdout", "stderr" or a file path; files are opened in append mode
// and closed on the next Configure call.
func Configure(cfg Config) error {
	var w io.Writer
	var c io.Closer

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		w = f
		c = f
	}

	f := strings.ToLower(cfg.Format)
	if f != "json" {
		f = "text"
	}

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
	}
	output = w
	closer = c
	format = f
	mu.Unlock()

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	reconfigure()
	return nil
}

// reconfigure rebuilds the slog handler. Level filtering happens in log() so the
// handler itself accepts everything.
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	slogger = slog.New(h)
}

func log(level Level, format string, v ...any) {
	if level < GetLevel() {
		return
	}

	mu.RLock()
	l := slogger
	mu.RUnlock()

	l.Log(context.Background(), level.slogLevel(), fmt.Sprintf(format, v...))
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
