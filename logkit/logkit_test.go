package logkit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expDebug bool
		expInfo  bool
	}{
		{name: "Default", config: Config{}, expDebug: false, expInfo: true},
		{name: "Verbose", config: Config{Verbose: true}, expDebug: true, expInfo: true},
		{name: "Quiet", config: Config{Quiet: true}, expDebug: false, expInfo: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			console := bytes.NewBuffer(nil)
			test.config.OptConsole = console
			test.config.NoColor = true

			logger, closeFn, err := New(test.config)
			if err != nil {
				t.Fatal(err)
			}
			defer closeFn()

			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")
			logger.Error().Msg("error message")

			out := console.String()

			if strings.Contains(out, "debug message") != test.expDebug {
				t.Fatalf("debug message presence should be %t - got %q", test.expDebug, out)
			}

			if strings.Contains(out, "info message") != test.expInfo {
				t.Fatalf("info message presence should be %t - got %q", test.expInfo, out)
			}

			if !strings.Contains(out, "error message") {
				t.Fatalf("errors should always be logged - got %q", out)
			}
		})
	}
}

func TestNew_NoColor(t *testing.T) {
	console := bytes.NewBuffer(nil)

	logger, closeFn, err := New(Config{NoColor: true, OptConsole: console})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	logger.Info().Str("addr", "0x1000").Msg("found pattern")

	if strings.Contains(console.String(), "\x1b[") {
		t.Fatalf("expected no ansi escape codes - got %q", console.String())
	}
}

func TestNew_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "heapkit.log")

	logger, closeFn, err := New(Config{
		Quiet:      true,
		OptLogFile: logPath,
		OptConsole: bytes.NewBuffer(nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info().Msg("info message")

	err = closeFn()
	if err != nil {
		t.Fatal(err)
	}

	contents, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(contents), `"message":"info message"`) {
		t.Fatalf("expected log file to contain the info message - got %q", contents)
	}
}

func TestNew_BadLogFile(t *testing.T) {
	_, _, err := New(Config{OptLogFile: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	if err == nil {
		t.Fatal("expected an error")
	}
}
