// Package scripting provides helpers shared by the command line tools,
// such as flag parsing and logger setup.
package scripting

import (
	"flag"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"gitlab.com/stephen-fox/heapkit/config"
	"gitlab.com/stephen-fox/heapkit/logkit"
)

// CommonFlags are the flags accepted by every tool.
type CommonFlags struct {
	Help       bool
	Verbose    bool
	Quiet      bool
	NoColor    bool
	LogFile    string
	ConfigFile string
	ProcRoot   string
}

// Register adds the common flags to flagSet. The flags that share
// a name with a config key are picked up by config.Load.
func (o *CommonFlags) Register(flagSet *flag.FlagSet) {
	flagSet.BoolVar(&o.Help, "h", false, "Display this help page")
	flagSet.BoolVar(&o.Verbose, "verbose", false, "Enable verbose logging")
	flagSet.BoolVar(&o.Quiet, "quiet", false, "Only log errors to stderr")
	flagSet.BoolVar(&o.NoColor, config.NoColorKey, false, "Disable colors in log output")
	flagSet.StringVar(&o.LogFile, config.LogFileKey, "", "Append JSON logs to this `file`")
	flagSet.StringVar(&o.ConfigFile, "config", "", "Read settings from this `file` (yaml, toml, json or env)")
	flagSet.StringVar(&o.ProcRoot, config.ProcRootKey, "/proc", "The procfs mount `point`")
}

// Load resolves the configuration for a parsed flagSet.
func (o *CommonFlags) Load(flagSet *flag.FlagSet) (config.Config, error) {
	return config.Load(config.LoadConfig{
		OptConfigFile: o.ConfigFile,
		OptFlagSet:    flagSet,
	})
}

// Logger creates the logger described by the flags and cfg.
func (o *CommonFlags) Logger(cfg config.Config, stderr io.Writer) (zerolog.Logger, func() error, error) {
	return logkit.New(logkit.Config{
		Verbose:    o.Verbose,
		Quiet:      o.Quiet,
		NoColor:    cfg.NoColor,
		OptLogFile: cfg.LogFile,
		OptConsole: stderr,
	})
}

// ParseInterspersed parses args with flagSet, allowing flags to appear
// before, between or after positional arguments. The positional
// arguments are returned in order. Everything after a "--" argument
// is treated as positional, which allows patterns that start with '-'.
func ParseInterspersed(flagSet *flag.FlagSet, args []string) ([]string, error) {
	var trailing []string

	for i, arg := range args {
		if arg == "--" {
			trailing = args[i+1:]
			args = args[:i]
			break
		}
	}

	var positional []string

	for {
		err := flagSet.Parse(args)
		if err != nil {
			return nil, err
		}

		args = flagSet.Args()
		if len(args) == 0 {
			return append(positional, trailing...), nil
		}

		positional = append(positional, args[0])
		args = args[1:]
	}
}

// ExactArgs returns an error if the number of positional arguments
// is not n.
func ExactArgs(positional []string, n int, names ...string) error {
	if len(positional) == n {
		return nil
	}

	return fmt.Errorf("expected %d arguments (%v) - got %d", n, names, len(positional))
}
