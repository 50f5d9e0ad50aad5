// Package logkit creates the structured loggers used by the
// command line tools.
package logkit

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Config configures New.
type Config struct {
	// Verbose enables debug messages.
	Verbose bool

	// Quiet only writes errors to the console. The log file,
	// if any, still receives everything.
	Quiet bool

	// NoColor disables ANSI colors in console output.
	NoColor bool

	// OptLogFile, when non-empty, is a file path that log messages
	// are appended to (in JSON format).
	OptLogFile string

	// OptConsole overrides the console writer. Defaults to os.Stderr.
	OptConsole io.Writer
}

// New creates a zerolog.Logger according to config. The returned
// function closes the log file, if any, and must be called when
// the logger is no longer needed.
func New(config Config) (zerolog.Logger, func() error, error) {
	out := config.OptConsole
	if out == nil {
		out = os.Stderr
	}

	fileLevel := zerolog.InfoLevel
	if config.Verbose {
		fileLevel = zerolog.DebugLevel
	}

	consoleLevel := fileLevel
	if config.Quiet {
		consoleLevel = zerolog.ErrorLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    config.NoColor,
		TimeFormat: "15:04:05",
	}

	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  consoleLevel,
		},
	}

	closeFn := func() error { return nil }

	if config.OptLogFile != "" {
		f, err := os.OpenFile(config.OptLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file - %w", err)
		}

		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: f},
			Level:  fileLevel,
		})

		closeFn = f.Close
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(fileLevel).
		With().
		Timestamp().
		Logger()

	return logger, closeFn, nil
}
