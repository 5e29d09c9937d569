package build

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// LogConfig selects where and how much the binary logs.
type LogConfig struct {
	// Level is a btclog level name: trace, debug, info, warn, error,
	// critical or off.
	Level string

	// Console receives human readable output. Nil disables it.
	Console io.Writer

	// Rotator configures the log file. Nil or an empty LogDir disables
	// file logging.
	Rotator *LogRotatorConfig
}

// Logger is a configured logger and the resources behind it.
type Logger struct {
	*slog.Logger

	handler *HandlerSet
	rotator *RotatingLogWriter
}

// NewLogger builds a logger that fans out to the console and the rotating
// log file.
func NewLogger(cfg LogConfig) (*Logger, error) {
	level, ok := btclog.LevelFromString(cfg.Level)
	if cfg.Level == "" {
		level, ok = btclog.LevelInfo, true
	}
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	var (
		handlers []btclogv2.Handler
		rotator  *RotatingLogWriter
	)
	if cfg.Console != nil {
		handlers = append(handlers, btclogv2.NewDefaultHandler(cfg.Console))
	}
	if cfg.Rotator != nil && cfg.Rotator.LogDir != "" {
		rotator = NewRotatingLogWriter()
		if err := rotator.InitLogRotator(cfg.Rotator); err != nil {
			return nil, err
		}
		handlers = append(handlers, btclogv2.NewDefaultHandler(rotator))
	}

	set := NewHandlerSet(handlers...)
	set.SetLevel(level)

	return &Logger{
		Logger:  slog.New(set),
		handler: set,
		rotator: rotator,
	}, nil
}

// SetLevel changes the level of every output.
func (l *Logger) SetLevel(level btclog.Level) {
	l.handler.SetLevel(level)
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}

	return l.rotator.Close()
}
