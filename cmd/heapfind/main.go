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
	appName = "heapfind"
	usage   = appName + `
Finds a string in a heap backup created by heapwrite, or in the heap
of a running process, and prints the address of each occurrence.

Searching a running process never modifies its memory.

usage:
` + appName + ` [options] backup_file search_string
` + appName + ` [options] -pid pid search_string

examples:
` + appName + ` /tmp/heap_55d4c8a1b000-55d4c8a3c000.bin Holberton
` + appName + ` -unicode -pid 1234 Holberton
` + appName + ` -offsets -encoding hex /tmp/heap_1000-2000.bin 0x41414141

options:
`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, afero.NewOsFs()))
}

func run(args []string, stdout io.Writer, stderr io.Writer, fs afero.Fs) int {
	flagSet := flag.NewFlagSet(appName, flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var common scripting.CommonFlags
	common.Register(flagSet)

	pid := flagSet.Int(
		"pid",
		0,
		"Search the heap of this running process instead of a backup file")
	unicode := flagSet.Bool(
		"unicode",
		false,
		"Encode the search string as UTF-16LE (same as -encoding utf16le)")
	flagSet.String(
		config.EncodingKey,
		string(conv.UTF8),
		fmt.Sprintf("The `encoding` of the search string (%s)", conv.Encodings()))
	flagSet.String(
		config.ScanPolicyKey,
		pattern.Overlapping.String(),
		"Resume scanning one byte after a match ('overlapping') or after it ('disjoint')")
	flagSet.Bool(
		config.StrictPermsKey,
		false,
		"Only consider heap mappings that are writable (with -pid)")
	flagSet.String(
		config.MaxRegionSizeKey,
		humanize.IBytes(memory.DefaultMaxRegionSize),
		"Refuse to read heap regions larger than this `size` (with -pid)")
	offsets := flagSet.Bool(
		"offsets",
		false,
		"Print offsets relative to the start of the region rather than addresses")

	flagSet.Usage = func() {
		io.WriteString(stderr, usage)
		flagSet.PrintDefaults()
	}

	positional, err := scripting.ParseInterspersed(flagSet, args)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "fatal:", err)
		}
		return 1
	}

	if common.Help {
		flagSet.Usage()
		return 1
	}

	if *pid > 0 {
		err = scripting.ExactArgs(positional, 1, "search_string")
	} else {
		err = scripting.ExactArgs(positional, 2, "backup_file", "search_string")
	}
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %s\n\nusage: %s [options] backup_file search_string\n", err, appName)
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

	enc := cfg.Encoding
	if *unicode {
		enc = conv.UTF16LE
	}

	searchStr := positional[len(positional)-1]

	search, err := conv.Encode(searchStr, enc)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode search string")
		return 1
	}

	if len(search) == 0 {
		logger.Error().Msg("search string cannot be empty")
		return 1
	}

	var matches []match
	if *pid > 0 {
		matches, err = findInProcess(*pid, search, cfg, fs, &logger)
	} else {
		matches, err = findInBackup(positional[0], search, cfg.ScanPolicy, fs, &logger)
	}
	if err != nil {
		phase, _ := memory.PhaseOf(err)

		logger.Error().
			Str("phase", string(phase)).
			Err(err).
			Msg("failed to search heap")
		return 1
	}

	for _, m := range matches {
		if *offsets {
			fmt.Fprintln(stdout, strconv.FormatUint(m.addr-m.region.Start, 10))
		} else {
			fmt.Fprintf(stdout, "0x%x\n", m.addr)
		}
	}

	logger.Info().
		Int("matches", len(matches)).
		Msgf("found %d occurrence(s) of %q", len(matches), searchStr)

	return 0
}

type match struct {
	region memory.Region
	addr   uint64
}

func findInBackup(path string, search []byte, policy pattern.Policy, fs afero.Fs, logger *zerolog.Logger) ([]match, error) {
	region, err := memory.ParseBackupName(path)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file - %w", err)
	}

	if uint64(len(data)) != region.Size() {
		return nil, fmt.Errorf("%w - backup contains %d bytes, but its region is %d bytes",
			memory.ErrBackupCorrupt, len(data), region.Size())
	}

	logger.Debug().
		Str("region", region.String()).
		Str("size", humanize.IBytes(region.Size())).
		Msg("searching backup")

	var matches []match
	for _, offset := range pattern.IndexAll(data, search, policy) {
		matches = append(matches, match{
			region: region,
			addr:   region.Start + uint64(offset),
		})
	}

	return matches, nil
}

// findInProcess searches a live heap by running a dry-run patch that
// replaces the pattern with itself.
func findInProcess(pid int, search []byte, cfg config.Config, fs afero.Fs, logger *zerolog.Logger) ([]match, error) {
	regions, err := process.LocateHeap(pid, process.LocateHeapConfig{
		RequireWritable: cfg.RequireWritable,
		OptFs:           fs,
		OptProcRoot:     cfg.ProcRoot,
	})
	if err != nil {
		return nil, err
	}

	patcher, err := memory.NewPatcher(memory.PatcherConfig{
		MaxRegionSize: cfg.MaxRegionSize,
		ScanPolicy:    cfg.ScanPolicy,
		OptLogger:     logger,
	})
	if err != nil {
		return nil, err
	}

	mem, err := process.OpenMemory(pid, process.OpenMemoryConfig{
		ReadOnly:    true,
		OptFs:       fs,
		OptProcRoot: cfg.ProcRoot,
	})
	if err != nil {
		return nil, err
	}
	defer mem.Close()

	result, err := patcher.Patch(mem, regions, memory.Request{
		Search:     search,
		Replace:    search,
		ReplaceAll: true,
		DryRun:     true,
	})
	if err != nil {
		return nil, err
	}

	var matches []match
	for _, addr := range result.Addresses {
		for _, region := range regions {
			if region.Contains(addr) {
				matches = append(matches, match{region: region, addr: addr})
				break
			}
		}
	}

	return matches, nil
}
