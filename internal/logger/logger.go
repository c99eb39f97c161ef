package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log files kept in the log directory, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to per-level
// files and stdout.
type Logger struct {
	entry  *logrus.Entry
	logDir string
	files  []*os.File
	mu     sync.Mutex
}

// NewLogger creates a Logger writing to stdout and to info.log, warning.log
// and error.log inside logDir.
func NewLogger(logDir, level string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	base := newBase(os.Stdout, level)
	l := &Logger{entry: logrus.NewEntry(base), logDir: logDir}

	hook := &levelFileHook{writers: make(map[logrus.Level]io.Writer)}
	for _, target := range []struct {
		name   string
		levels []logrus.Level
	}{
		{InfoFile, []logrus.Level{logrus.DebugLevel, logrus.InfoLevel}},
		{WarningFile, []logrus.Level{logrus.WarnLevel}},
		{ErrorFile, []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}},
	} {
		file, err := os.OpenFile(filepath.Join(logDir, target.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", target.name, err)
		}
		l.files = append(l.files, file)
		for _, level := range target.levels {
			hook.writers[level] = file
		}
	}
	base.AddHook(hook)

	return l, nil
}

// NewConsole returns a Logger that only writes to w. CleanLogs is a no-op.
func NewConsole(w io.Writer, level string) *Logger {
	return &Logger{entry: logrus.NewEntry(newBase(w, level))}
}

func newBase(w io.Writer, level string) *logrus.Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006/01/02 15:04:05"})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	return base
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields), logDir: l.logDir}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

// Dir returns the log directory, empty for console loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates one of the log files.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file %q", fileName)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		return fmt.Errorf("failed to clear %s: %w", fileName, err)
	}
	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Close closes the log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// levelFileHook copies each entry into the file of its level.
type levelFileHook struct {
	writers map[logrus.Level]io.Writer
	mu      sync.Mutex
}

func (h *levelFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelFileHook) Fire(entry *logrus.Entry) error {
	w, ok := h.writers[entry.Level]
	if !ok {
		return nil
	}
	line, err := entry.Bytes()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = w.Write(line)
	return err
}
