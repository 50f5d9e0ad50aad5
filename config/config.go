// Package config loads settings shared by the command line tools.
//
// Settings are layered, from lowest to highest precedence: defaults,
// an optional configuration file, HEAPKIT_* environment variables,
// and command line flags that were explicitly set.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"gitlab.com/stephen-fox/heapkit/conv"
	"gitlab.com/stephen-fox/heapkit/memory"
	"gitlab.com/stephen-fox/heapkit/pattern"
)

// EnvPrefix is the prefix of environment variables. For example,
// the "max-region-size" key is read from HEAPKIT_MAX_REGION_SIZE.
const EnvPrefix = "HEAPKIT"

// Keys double as command line flag names.
const (
	MaxRegionSizeKey = "max-region-size"
	LengthPolicyKey  = "length-policy"
	ScanPolicyKey    = "scan-policy"
	StrictPermsKey   = "strict-perms"
	EncodingKey      = "encoding"
	LogFileKey       = "log-file"
	NoColorKey       = "no-color"
	ProcRootKey      = "proc-root"
)

// Config holds the resolved settings.
type Config struct {
	MaxRegionSize   uint64
	LengthPolicy    memory.LengthPolicy
	ScanPolicy      pattern.Policy
	RequireWritable bool
	Encoding        conv.Encoding
	LogFile         string
	NoColor         bool
	ProcRoot        string
}

// LoadConfig configures Load.
type LoadConfig struct {
	// OptConfigFile is the path to a configuration file. Its format
	// is determined by its extension (e.g., yaml, toml, json, env).
	OptConfigFile string

	// OptFlagSet is a parsed flag.FlagSet. Flags that were set on
	// the command line and share a name with a key override
	// every other source.
	OptFlagSet *flag.FlagSet

	// OptFs is the filesystem the configuration file is read from.
	// The OS filesystem is used if nil.
	OptFs afero.Fs
}

// Load resolves a Config.
func Load(config LoadConfig) (Config, error) {
	v := viper.New()

	if config.OptFs != nil {
		v.SetFs(config.OptFs)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(MaxRegionSizeKey, humanize.IBytes(memory.DefaultMaxRegionSize))
	v.SetDefault(LengthPolicyKey, memory.LengthPolicyEqual.String())
	v.SetDefault(ScanPolicyKey, pattern.Overlapping.String())
	v.SetDefault(StrictPermsKey, false)
	v.SetDefault(EncodingKey, string(conv.UTF8))
	v.SetDefault(LogFileKey, "")
	v.SetDefault(NoColorKey, false)
	v.SetDefault(ProcRootKey, "/proc")

	if config.OptConfigFile != "" {
		v.SetConfigFile(config.OptConfigFile)

		err := v.ReadInConfig()
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %q - %w", config.OptConfigFile, err)
		}
	}

	if config.OptFlagSet != nil {
		config.OptFlagSet.Visit(func(f *flag.Flag) {
			if isKey(f.Name) {
				v.Set(f.Name, f.Value.String())
			}
		})
	}

	return fromViper(v)
}

func isKey(name string) bool {
	switch name {
	case MaxRegionSizeKey, LengthPolicyKey, ScanPolicyKey, StrictPermsKey,
		EncodingKey, LogFileKey, NoColorKey, ProcRootKey:
		return true
	default:
		return false
	}
}

func fromViper(v *viper.Viper) (Config, error) {
	maxRegionSize, err := humanize.ParseBytes(v.GetString(MaxRegionSizeKey))
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s - %w", MaxRegionSizeKey, err)
	}

	if maxRegionSize == 0 {
		return Config{}, fmt.Errorf("%s cannot be zero", MaxRegionSizeKey)
	}

	lengthPolicy, err := memory.ParseLengthPolicy(v.GetString(LengthPolicyKey))
	if err != nil {
		return Config{}, err
	}

	scanPolicy, err := pattern.ParsePolicy(v.GetString(ScanPolicyKey))
	if err != nil {
		return Config{}, err
	}

	encoding, err := conv.ParseEncoding(v.GetString(EncodingKey))
	if err != nil {
		return Config{}, err
	}

	return Config{
		MaxRegionSize:   maxRegionSize,
		LengthPolicy:    lengthPolicy,
		ScanPolicy:      scanPolicy,
		RequireWritable: v.GetBool(StrictPermsKey),
		Encoding:        encoding,
		LogFile:         v.GetString(LogFileKey),
		NoColor:         v.GetBool(NoColorKey),
		ProcRoot:        v.GetString(ProcRootKey),
	}, nil
}
