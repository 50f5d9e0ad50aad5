package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"gitlab.com/stephen-fox/heapkit/config"
	"gitlab.com/stephen-fox/heapkit/conv"
	"gitlab.com/stephen-fox/heapkit/memory"
	"gitlab.com/stephen-fox/heapkit/pattern"
	"gitlab.com/stephen-fox/heapkit/process"
	"gitlab.com/stephen-fox/heapkit/scripting"
)

const (
	appName = "heapwrite"
	usage   = appName + `
Finds a string in the heap of a running process and replaces it.

The heap is located using /proc/<pid>/maps and modified through
/proc/<pid>/mem, which usually requires root. The target keeps running
while it is patched, so the memory may change between the time it is
read and the time it is written.

Replacements that were already written are not undone if a later write
fails. Use -backup to save each heap region before it is modified, and
heaprestore to write a backup back.

usage:
` + appName + ` [options] pid search_string replace_string

examples:
` + appName + ` 1234 Holberton Fortnite!
` + appName + ` -all -dry-run 1234 Holberton Fortnite!
` + appName + ` -length-policy pad -backup /tmp/heap 1234 Holberton Hi
` + appName + ` -encoding hex 1234 '\x41\x41\x41\x41' '\x42\x42\x42\x42'

options:
`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, afero.NewOsFs(), process.CheckPrivileges))
}

// run returns the process exit code: zero on success, including
// when the pattern is not found, and one on any failure.
func run(args []string, stdout io.Writer, stderr io.Writer, fs afero.Fs, checkPrivilegesFn func() error) int {
	flagSet := flag.NewFlagSet(appName, flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var common scripting.CommonFlags
	common.Register(flagSet)

	unicode := flagSet.Bool(
		"unicode",
		false,
		"Encode the search and replace strings as UTF-16LE (same as -encoding utf16le)")
	flagSet.String(
		config.EncodingKey,
		string(conv.UTF8),
		fmt.Sprintf("The `encoding` of the search and replace strings (%s)", conv.Encodings()))
	dryRun := flagSet.Bool(
		"dry-run",
		false,
		"Find and report matches without modifying memory")
	backupPrefix := flagSet.String(
		"backup",
		"",
		"Save each heap region to '<prefix>_<start>-<end>.bin' before modifying it")
	replaceAll := flagSet.Bool(
		"all",
		false,
		"Replace every occurrence rather than only the first one")
	flagSet.String(
		config.LengthPolicyKey,
		memory.LengthPolicyEqual.String(),
		"'equal' requires equal-length strings, 'pad' zero-pads shorter replacements")
	flagSet.String(
		config.ScanPolicyKey,
		pattern.Overlapping.String(),
		"Resume scanning one byte after a match ('overlapping') or after it ('disjoint')")
	flagSet.Bool(
		config.StrictPermsKey,
		false,
		"Only consider heap mappings that are writable")
	flagSet.String(
		config.MaxRegionSizeKey,
		humanize.IBytes(memory.DefaultMaxRegionSize),
		"Refuse to read heap regions larger than this `size`")
	skipPrivCheck := flagSet.Bool(
		"skip-priv-check",
		false,
		"Do not require root before opening the process' memory")

	flagSet.Usage = func() {
		io.WriteString(stderr, usage)
		flagSet.PrintDefaults()
	}

	positional, err := scripting.ParseInterspersed(flagSet, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 1
		}
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}

	if common.Help {
		flagSet.Usage()
		return 1
	}

	err = scripting.ExactArgs(positional, 3, "pid", "search_string", "replace_string")
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %s\n\nusage: %s [options] pid search_string replace_string\n",
			err, appName)
		return 1
	}

	cfg, err := common.Load(flagSet)
	if err != nil {
		fmt.Fprintln(stderr, "fatal: failed to load configuration -", err)
		return 1
	}

	logger, closeLogFn, err := common.Logger(cfg, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	defer closeLogFn()

	pid, err := strconv.Atoi(positional[0])
	if err != nil {
		logger.Error().Str("pid", positional[0]).Msg("pid must be a number")
		return 1
	}

	enc := cfg.Encoding
	if *unicode {
		enc = conv.UTF16LE
	}

	search, err := conv.Encode(positional[1], enc)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode search string")
		return 1
	}

	replace, err := conv.Encode(positional[2], enc)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode replace string")
		return 1
	}

	if *skipPrivCheck {
		checkPrivilegesFn = nil
	}

	result, err := heapWrite(heapWriteArgs{
		pid: pid,
		req: memory.Request{
			Search:       search,
			Replace:      replace,
			ReplaceAll:   *replaceAll,
			DryRun:       *dryRun,
			BackupPrefix: *backupPrefix,
		},
		cfg:                  cfg,
		fs:                   fs,
		logger:               &logger,
		optCheckPrivilegesFn: checkPrivilegesFn,
	})
	if err != nil {
		phase, _ := memory.PhaseOf(err)

		logger.Error().
			Str("phase", string(phase)).
			Err(err).
			Msg("failed to patch heap")

		if result.MatchCount > 0 || len(result.Backups) > 0 {
			logPartial(logger, result)
		}

		return 1
	}

	if result.MatchCount == 0 {
		logger.Info().
			Str("search", positional[1]).
			Msg("pattern not found in heap")
		return 0
	}

	for _, addr := range result.Addresses {
		fmt.Fprintf(stdout, "0x%x\n", addr)
	}

	verb := "replaced"
	if *dryRun {
		verb = "would replace"
	}

	logger.Info().
		Uint32("matches", result.MatchCount).
		Str("backup", result.BackupPath()).
		Msgf("%s %d occurrence(s) of %q with %q",
			verb, result.MatchCount, positional[1], positional[2])

	return 0
}

type heapWriteArgs struct {
	pid    int
	req    memory.Request
	cfg    config.Config
	fs     afero.Fs
	logger *zerolog.Logger

	// optCheckPrivilegesFn runs after the heap is located so that
	// a missing process is reported as such.
	optCheckPrivilegesFn func() error
}

func heapWrite(args heapWriteArgs) (memory.Result, error) {
	regions, err := process.LocateHeap(args.pid, process.LocateHeapConfig{
		RequireWritable: args.cfg.RequireWritable,
		OptFs:           args.fs,
		OptProcRoot:     args.cfg.ProcRoot,
	})
	if err != nil {
		return memory.Result{}, err
	}

	for _, region := range regions {
		args.logger.Debug().
			Str("region", region.String()).
			Str("size", humanize.IBytes(region.Size())).
			Msg("found heap region")
	}

	patcher, err := memory.NewPatcher(memory.PatcherConfig{
		MaxRegionSize: args.cfg.MaxRegionSize,
		LengthPolicy:  args.cfg.LengthPolicy,
		ScanPolicy:    args.cfg.ScanPolicy,
		OptBackupFs:   args.fs,
		OptLogger:     args.logger,
	})
	if err != nil {
		return memory.Result{}, err
	}

	if args.optCheckPrivilegesFn != nil {
		err = args.optCheckPrivilegesFn()
		if err != nil {
			return memory.Result{}, fmt.Errorf("insufficient privileges - %w", err)
		}
	}

	mem, err := process.OpenMemory(args.pid, process.OpenMemoryConfig{
		ReadOnly:    args.req.DryRun,
		OptFs:       args.fs,
		OptProcRoot: args.cfg.ProcRoot,
	})
	if err != nil {
		return memory.Result{}, err
	}
	defer mem.Close()

	return patcher.Patch(mem, regions, args.req)
}

func logPartial(logger zerolog.Logger, result memory.Result) {
	for _, addr := range result.Addresses {
		logger.Warn().
			Str("addr", fmt.Sprintf("0x%x", addr)).
			Msg("replacement was written before the failure and was not undone")
	}

	for _, backup := range result.Backups {
		logger.Warn().
			Str("path", backup.Path).
			Msg("restore with: heaprestore <pid> " + backup.Path)
	}
}
