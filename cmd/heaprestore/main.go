package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"gitlab.com/stephen-fox/heapkit/config"
	"gitlab.com/stephen-fox/heapkit/memory"
	"gitlab.com/stephen-fox/heapkit/process"
	"gitlab.com/stephen-fox/heapkit/scripting"
)

const (
	appName = "heaprestore"
	usage   = appName + `
Writes a heap backup created by heapwrite back to a running process.

The backup's file name encodes the region it was taken from. The
region must still be mapped as heap in the target process. Anything
the process wrote to the region since the backup was taken is lost.

usage:
` + appName + ` [options] pid backup_file

examples:
` + appName + ` 1234 /tmp/heap_55d4c8a1b000-55d4c8a3c000.bin

options:
`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr, afero.NewOsFs(), process.CheckPrivileges))
}

func run(args []string, stderr io.Writer, fs afero.Fs, checkPrivilegesFn func() error) int {
	flagSet := flag.NewFlagSet(appName, flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var common scripting.CommonFlags
	common.Register(flagSet)

	anyRegion := flagSet.Bool(
		"any-region",
		false,
		"Do not require the backup's region to be currently mapped as heap")
	flagSet.Bool(
		config.StrictPermsKey,
		false,
		"Only accept heap mappings that are writable")
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
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "fatal:", err)
		}
		return 1
	}

	if common.Help {
		flagSet.Usage()
		return 1
	}

	err = scripting.ExactArgs(positional, 2, "pid", "backup_file")
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %s\n\nusage: %s [options] pid backup_file\n", err, appName)
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

	restoreConfig := memory.RestoreConfig{
		BackupPath: positional[1],
		OptFs:      fs,
		OptLogger:  &logger,
	}

	if !*anyRegion {
		restoreConfig.OptRegions, err = process.LocateHeap(pid, process.LocateHeapConfig{
			RequireWritable: cfg.RequireWritable,
			OptFs:           fs,
			OptProcRoot:     cfg.ProcRoot,
		})
		if err != nil {
			logFailure(logger, err)
			return 1
		}
	}

	if !*skipPrivCheck {
		err = checkPrivilegesFn()
		if err != nil {
			logger.Error().Err(err).Msg("insufficient privileges")
			return 1
		}
	}

	mem, err := process.OpenMemory(pid, process.OpenMemoryConfig{
		OptFs:       fs,
		OptProcRoot: cfg.ProcRoot,
	})
	if err != nil {
		logFailure(logger, err)
		return 1
	}
	defer mem.Close()

	_, err = memory.Restore(mem, restoreConfig)
	if err != nil {
		logFailure(logger, err)
		return 1
	}

	return 0
}

func logFailure(logger zerolog.Logger, err error) {
	phase, _ := memory.PhaseOf(err)

	logger.Error().
		Str("phase", string(phase)).
		Err(err).
		Msg("failed to restore heap")
}
