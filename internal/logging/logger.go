// Package logging wraps logrus with the process-wide initialize-once
// setup required by spec §9 ("the logging filter is process-wide but
// initialized once before any build; treat as immutable after setup").
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus's levels but keeps the package self-contained so
// callers don't need to import logrus directly.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// Config configures the global logger.
type Config struct {
	Level      Level
	OutputFile string // empty = stdout only
	MaxSize    int64  // bytes before rotation, default 10MB
	MaxBackups int    // default 3
	JSONFormat bool
	AddSource  bool
}

// Logger wraps a logrus.Logger with file rotation and a Close hook.
// fields carries structured context attached via With, applied to
// every subsequent call through WithFields rather than by copying the
// underlying logrus.Logger (which embeds a mutex).
type Logger struct {
	base   *logrus.Logger
	fields logrus.Fields
	config Config
	file   *os.File
	mu     sync.Mutex
}

var (
	global *Logger
	once   sync.Once
)

// Initialize sets up the global logger exactly once; subsequent calls
// are no-ops, matching the "initialized once before any build" rule.
func Initialize(cfg Config) error {
	var initErr error
	once.Do(func() {
		l, err := New(cfg)
		if err != nil {
			initErr = fmt.Errorf("initialize logger: %w", err)
			return
		}
		global = l
	})
	return initErr
}

// New builds a standalone Logger (used by tests that don't want the
// process-wide singleton).
func New(cfg Config) (*Logger, error) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 10 * 1024 * 1024
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}

	l := &Logger{config: cfg}

	writers := []io.Writer{os.Stdout}

	if cfg.OutputFile != "" {
		dir := filepath.Dir(cfg.OutputFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", dir, err)
		}
		if err := l.rotateIfNeeded(); err != nil {
			return nil, fmt.Errorf("rotate logs: %w", err)
		}
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.OutputFile, err)
		}
		l.file = f
		writers = append(writers, f)
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetLevel(toLogrusLevel(cfg.Level))
	if cfg.JSONFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetReportCaller(cfg.AddSource)

	l.base = logger
	return l, nil
}

func (l *Logger) rotateIfNeeded() error {
	if l.config.OutputFile == "" {
		return nil
	}
	info, err := os.Stat(l.config.OutputFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < l.config.MaxSize {
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	for i := l.config.MaxBackups - 1; i >= 1; i-- {
		old := fmt.Sprintf("%s.%d", l.config.OutputFile, i)
		next := fmt.Sprintf("%s.%d", l.config.OutputFile, i+1)
		if _, err := os.Stat(old); err == nil {
			os.Rename(old, next)
		}
	}
	return os.Rename(l.config.OutputFile, l.config.OutputFile+".1")
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// fieldsFromArgs turns the slog-style "key", value, "key", value... pairs
// callers already pass into logrus.Fields, so every existing Debug/Info/
// Warn/Error call site keeps working unchanged.
func fieldsFromArgs(args []any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}

func (l *Logger) Debug(msg string, args ...any) { l.withAll(args).Debug(msg) }
func (l *Logger) Info(msg string, args ...any)  { l.withAll(args).Info(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.withAll(args).Warn(msg) }
func (l *Logger) Error(msg string, args ...any) { l.withAll(args).Error(msg) }

func (l *Logger) withAll(args []any) *logrus.Entry {
	merged := make(logrus.Fields, len(l.fields)+len(args)/2)
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fieldsFromArgs(args) {
		merged[k] = v
	}
	return l.base.WithFields(merged)
}

// With returns a child logger carrying additional structured fields,
// merged into every subsequent call rather than copying the
// underlying logrus.Logger.
func (l *Logger) With(args ...any) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(args)/2)
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fieldsFromArgs(args) {
		merged[k] = v
	}
	return &Logger{base: l.base, fields: merged, config: l.config, file: l.file}
}

// Close closes the rotating log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Debug logs via the global logger, falling back to logrus's standard
// logger if Initialize was never called.
func Debug(msg string, args ...any) { dispatch(logrus.DebugLevel, msg, args...) }
func Info(msg string, args ...any)  { dispatch(logrus.InfoLevel, msg, args...) }
func Warn(msg string, args ...any)  { dispatch(logrus.WarnLevel, msg, args...) }
func Error(msg string, args ...any) { dispatch(logrus.ErrorLevel, msg, args...) }

func dispatch(level logrus.Level, msg string, args ...any) {
	if global != nil {
		global.withAll(args).Log(level, msg)
		return
	}
	logrus.StandardLogger().WithFields(fieldsFromArgs(args)).Log(level, msg)
}

// With returns a child of the global logger.
func With(args ...any) *Logger {
	if global != nil {
		return global.With(args...)
	}
	return nil
}

// Close closes the global logger's file handle.
func Close() error {
	if global != nil {
		return global.Close()
	}
	return nil
}

// LevelFromEnv parses the JETTY_LOG_LEVEL override named in spec §6.
// Unrecognized or unset values default to INFO.
func LevelFromEnv() Level {
	switch strings.ToLower(os.Getenv("JETTY_LOG_LEVEL")) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// DefaultConfig returns the conventional dev/production split: human
// text + source locations when debugging, JSON otherwise. Both write
// to stdout only; OutputFile is left empty.
func DefaultConfig(debug bool) Config {
	level := LevelFromEnv()
	if debug {
		level = DEBUG
	}
	return Config{
		Level:      level,
		OutputFile: "",
		JSONFormat: !debug,
		AddSource:  debug,
	}
}
