package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
)

// Output is the destination of log records: stdout, plus an append-only
// file when one is configured. Close releases the file.
type Output struct {
	io.Writer
	file     *os.File
	terminal bool
}

// OpenOutput returns stdout alone when path is empty, otherwise stdout and
// the file at path. Missing parent directories are created.
func OpenOutput(path string) (*Output, error) {
	return openOutput(os.Stdout, path)
}

func openOutput(stdout io.Writer, path string) (*Output, error) {
	if path == "" {
		return &Output{Writer: stdout, terminal: isTerminal(stdout)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Output{Writer: io.MultiWriter(stdout, file), file: file, terminal: isTerminal(stdout)}, nil
}

// IsTerminal reports whether stdout is an interactive terminal
func (o *Output) IsTerminal() bool {
	return o != nil && o.terminal
}

func isTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case interface{ IsTerminal() bool }:
		return v.IsTerminal()
	case *os.File:
		return isatty.IsTerminal(v.Fd()) || isatty.IsCygwinTerminal(v.Fd())
	}
	return false
}

// Close closes the log file, if any
func (o *Output) Close() error {
	if o == nil || o.file == nil {
		return nil
	}
	if err := o.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
