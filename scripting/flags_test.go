package scripting

import (
	"bytes"
	"flag"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestParseInterspersed(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		expPos    []string
		expAll    bool
		expBackup string
	}{
		{
			name:   "FlagsFirst",
			args:   []string{"-all", "-backup", "heap", "1234", "Holberton", "Fortnite!"},
			expPos: []string{"1234", "Holberton", "Fortnite!"},
			expAll: true, expBackup: "heap",
		},
		{
			name:   "FlagsLast",
			args:   []string{"1234", "Holberton", "Fortnite!", "--all", "--backup=heap"},
			expPos: []string{"1234", "Holberton", "Fortnite!"},
			expAll: true, expBackup: "heap",
		},
		{
			name:   "FlagsBetween",
			args:   []string{"1234", "-all", "Holberton", "-backup", "heap", "Fortnite!"},
			expPos: []string{"1234", "Holberton", "Fortnite!"},
			expAll: true, expBackup: "heap",
		},
		{
			name:   "Terminator",
			args:   []string{"-all", "1234", "--", "-v", "--all"},
			expPos: []string{"1234", "-v", "--all"},
			expAll: true,
		},
		{
			name:   "NoFlags",
			args:   []string{"1234", "a", "b"},
			expPos: []string{"1234", "a", "b"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			flagSet := flag.NewFlagSet("test", flag.ContinueOnError)
			all := flagSet.Bool("all", false, "")
			backup := flagSet.String("backup", "", "")

			positional, err := ParseInterspersed(flagSet, test.args)
			if err != nil {
				t.Fatal(err)
			}

			if !reflect.DeepEqual(positional, test.expPos) {
				t.Fatalf("expected positional args %q - got %q", test.expPos, positional)
			}

			if *all != test.expAll {
				t.Fatalf("expected -all to be %t - got %t", test.expAll, *all)
			}

			if *backup != test.expBackup {
				t.Fatalf("expected -backup to be %q - got %q", test.expBackup, *backup)
			}
		})
	}
}

func TestParseInterspersed_UnknownFlag(t *testing.T) {
	flagSet := flag.NewFlagSet("test", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	_, err := ParseInterspersed(flagSet, []string{"1234", "-nope"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestExactArgs(t *testing.T) {
	err := ExactArgs([]string{"a", "b"}, 2, "x", "y")
	if err != nil {
		t.Fatal(err)
	}

	err = ExactArgs([]string{"a"}, 2, "x", "y")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestCommonFlags(t *testing.T) {
	flagSet := flag.NewFlagSet("test", flag.ContinueOnError)

	var common CommonFlags
	common.Register(flagSet)

	_, err := ParseInterspersed(flagSet, []string{"-verbose", "-no-color"})
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := common.Load(flagSet)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.NoColor {
		t.Fatal("expected -no-color to be applied to the config")
	}

	stderr := bytes.NewBuffer(nil)

	logger, closeFn, err := common.Logger(cfg, stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	logger.Debug().Msg("hello")

	if !strings.Contains(stderr.String(), "hello") {
		t.Fatalf("expected -verbose to enable debug messages - got %q", stderr.String())
	}
}
