// Package logging builds the hclog root logger of the proxy.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// RootName prefixes every logger of the proxy
const RootName = "binkproxy"

// TimeFormat is the timestamp written at the start of every line
const TimeFormat = "2006-01-02 15:04:05.000"

// Options configures the root logger
type Options struct {
	Debug bool
	// File is truncated on open. Empty means no file.
	File string
	// Stderr mirrors the output to stderr
	Stderr bool
}

// Sink is the root logger and what it writes to
type Sink struct {
	Logger hclog.Logger
	file   *os.File
}

// Close flushes and closes the log file, if any
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// New creates the root logger. A file that cannot be opened is reported and
// logging falls back to stderr.
func New(opts Options) (*Sink, error) {
	level := hclog.Info
	if opts.Debug {
		level = hclog.Debug
	}

	var writers []io.Writer
	var file *os.File
	var openErr error
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			openErr = fmt.Errorf("failed to create log directory: %w", err)
		} else if file, openErr = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644); openErr == nil {
			writers = append(writers, file)
		} else {
			openErr = fmt.Errorf("failed to open log file: %w", openErr)
		}
	}
	if opts.Stderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:            RootName,
		Level:           level,
		Output:          io.MultiWriter(writers...),
		TimeFormat:      TimeFormat,
		Color:           hclog.ColorOff,
		IncludeLocation: opts.Debug,
	})
	return &Sink{Logger: logger, file: file}, openErr
}

// Discard returns a logger that drops everything
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}

// CLI returns the logger used by binkctl: stderr, errors only unless debugging
func CLI(debug bool) hclog.Logger {
	level := hclog.Error
	output := io.Discard

	if debug {
		level = hclog.Debug
		output = os.Stderr
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "binkctl",
		Level:  level,
		Output: output,
	})
}
