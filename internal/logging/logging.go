// Package logging builds the component loggers used across ironlog. All
// components share one sink: stderr, or a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log sink. An empty File logs to stderr.
type Config struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Sink is the shared destination for component loggers.
type Sink struct {
	w      io.Writer
	closer io.Closer
}

// Open returns a sink for cfg. The log directory is created if needed.
func Open(cfg Config) (*Sink, error) {
	if cfg.File == "" {
		return &Sink{w: os.Stderr}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return &Sink{w: rotator, closer: rotator}, nil
}

// NewSink wraps an arbitrary writer, mostly for tests.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Logger returns a logger prefixed with "[component] ".
func (s *Sink) Logger(component string) *log.Logger {
	return log.New(s.w, "["+component+"] ", log.LstdFlags)
}

// Writer exposes the sink for libraries that take an io.Writer.
func (s *Sink) Writer() io.Writer {
	return s.w
}

// Close releases the log file, if any.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
