// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process logger of the FAP binaries.
//
// Records go to stderr, or to a size-rotated file when Options.File is
// set. The "auto" format is text when stderr is a terminal and JSON
// otherwise. The level lives in a [slog.LevelVar] so a daemon can
// change it while running.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format names.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto"
)

// Options configures New.
type Options struct {
	// Format is text, json or auto. Empty means auto.
	Format string

	// Level is the initial minimum level.
	Level slog.Level

	// File, when set, is the path of a rotated log file that replaces
	// stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Output replaces stderr. Ignored when File is set. Auto format on
	// a writer that is not a terminal selects JSON.
	Output io.Writer
}

// Logger is a process logger and the controls that go with it.
type Logger struct {
	*slog.Logger

	// Level can be changed at any time.
	Level *slog.LevelVar

	closer io.Closer
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// New builds a Logger from options.
func New(options Options) (*Logger, error) {
	level := new(slog.LevelVar)
	level.Set(options.Level)

	var output io.Writer = os.Stderr
	if options.Output != nil {
		output = options.Output
	}
	var closer io.Closer
	if options.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   options.File,
			MaxSize:    options.MaxSizeMB,
			MaxBackups: options.MaxBackups,
			MaxAge:     options.MaxAgeDays,
			Compress:   options.Compress,
		}
		output = rotated
		closer = rotated
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format := resolveFormat(options.Format, output); format {
	case FormatText:
		handler = slog.NewTextHandler(output, handlerOptions)
	case FormatJSON:
		handler = slog.NewJSONHandler(output, handlerOptions)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return &Logger{Logger: slog.New(handler), Level: level, closer: closer}, nil
}

func resolveFormat(format string, output io.Writer) string {
	if format != "" && format != FormatAuto {
		return format
	}
	if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}
