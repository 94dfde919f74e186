// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the global zerolog logger.
//
// Diagnostics go to stderr through a ConsoleWriter so stdout stays clean
// for reports and JSON. The TUI installer points logs at a file instead,
// since anything on stderr would tear the alternate screen.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is a textual log level as written in config files.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelOff   Level = "off"
)

// DefaultLevel keeps normal runs quiet.
const DefaultLevel = LevelWarn

// ParseLevel maps a config value to a zerolog level. Empty means
// DefaultLevel.
func ParseLevel(s string) (zerolog.Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ParseLevel(string(DefaultLevel))
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case LevelInfo:
		return zerolog.InfoLevel, nil
	case LevelWarn, "warning":
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelOff, "none", "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Options controls Setup.
type Options struct {
	// Level is the configured level; Verbose overrides it with debug.
	Level   string
	Verbose bool
	// Out receives console output. Nil means os.Stderr.
	Out io.Writer
	// NoColor disables ANSI colour in console output.
	NoColor bool
}

// Setup installs the global logger and returns the effective level.
// An unknown level falls back to DefaultLevel and the error is returned
// alongside so the caller can report it.
func Setup(opts Options) (zerolog.Level, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		level, _ = ParseLevel(string(DefaultLevel))
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	console := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    opts.NoColor,
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(console).With().Timestamp().Logger()
	return level, err
}

// SetupFile sends JSON logs to a dated file under dir and returns a close
// function. Used where the terminal belongs to a full-screen UI.
func SetupFile(dir string, levelName string, verbose bool) (func() error, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("gpusetup_%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level, err := ParseLevel(levelName)
	if err != nil {
		level, _ = ParseLevel(string(DefaultLevel))
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(file).With().Timestamp().Logger()
	return file.Close, nil
}

// Discard silences the global logger.
func Discard() {
	log.Logger = zerolog.New(io.Discard)
}
