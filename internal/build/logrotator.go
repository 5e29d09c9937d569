package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is the number of rotated log files kept.
	DefaultMaxLogFiles = 3

	// DefaultMaxLogFileSize is the size in MB at which the log rotates.
	DefaultMaxLogFileSize = 10

	// DefaultLogFilename is the log file name inside LogDir.
	DefaultLogFilename = "rca.log"
)

// LogRotatorConfig holds the configuration for the log file rotator.
type LogRotatorConfig struct {
	// LogDir is the directory where log files are written.
	LogDir string

	// MaxLogFiles is the number of rotated files to keep. Zero keeps a
	// single, unbounded file.
	MaxLogFiles int

	// MaxLogFileSize is the size in MB at which the file rotates.
	MaxLogFileSize int

	// Filename overrides DefaultLogFilename.
	Filename string
}

// DefaultLogRotatorConfig returns the default rotation policy for dir.
func DefaultLogRotatorConfig(dir string) *LogRotatorConfig {
	return &LogRotatorConfig{
		LogDir:         dir,
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
		Filename:       DefaultLogFilename,
	}
}

// RotatingLogWriter is an io.Writer over a jrick/logrotate rotator. Rotated
// files are gzip compressed.
type RotatingLogWriter struct {
	pipe *io.PipeWriter
	done chan struct{}
}

// NewRotatingLogWriter creates a writer. Writes are discarded until
// InitLogRotator succeeds.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// Path returns the active log file for cfg.
func (cfg *LogRotatorConfig) Path() string {
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFilename
	}

	return filepath.Join(cfg.LogDir, filename)
}

// InitLogRotator creates the log directory and starts the rotator.
func (r *RotatingLogWriter) InitLogRotator(cfg *LogRotatorConfig) error {
	logFile := cfg.Path()
	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator threshold is in kilobytes.
	rot, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	rot.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)

		// The rotator is the log destination, so its own failures go
		// to stderr.
		if err := rot.Run(pr); err != nil {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)
		}
	}()

	r.pipe = pw
	r.done = done

	return nil
}

// Write implements io.Writer.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.pipe == nil {
		return len(b), nil
	}

	return r.pipe.Write(b)
}

// Close ends the pipe and waits for the rotator to flush the file.
func (r *RotatingLogWriter) Close() error {
	if r.pipe == nil {
		return nil
	}

	err := r.pipe.Close()
	<-r.done

	return err
}
