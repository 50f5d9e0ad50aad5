package memory

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"gitlab.com/stephen-fox/heapkit/pattern"
)

// DefaultMaxRegionSize is the default PatcherConfig.MaxRegionSize.
const DefaultMaxRegionSize = 100 * 1024 * 1024

// PatcherConfig configures a Patcher.
type PatcherConfig struct {
	// MaxRegionSize is the largest region, in bytes, that will be
	// read. Zero means DefaultMaxRegionSize.
	MaxRegionSize uint64

	// LengthPolicy controls which replacement lengths are accepted.
	LengthPolicy LengthPolicy

	// ScanPolicy controls where scanning resumes after a match.
	ScanPolicy pattern.Policy

	// OptBackupFs is the filesystem backups are written to.
	// The OS filesystem is used if nil.
	OptBackupFs afero.Fs

	// OptLogger receives progress messages. Nothing is logged
	// if nil.
	OptLogger *zerolog.Logger
}

// NewPatcherOrExit calls NewPatcher and calls DefaultExitFn
// if an error occurs.
func NewPatcherOrExit(config PatcherConfig) *Patcher {
	p, err := NewPatcher(config)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to create patcher - %w", err))
	}
	return p
}

// NewPatcher creates a new Patcher.
func NewPatcher(config PatcherConfig) (*Patcher, error) {
	if config.MaxRegionSize == 0 {
		config.MaxRegionSize = DefaultMaxRegionSize
	}

	switch config.LengthPolicy {
	case LengthPolicyEqual, LengthPolicyPad:
	default:
		return nil, fmt.Errorf("unknown length policy: %s", config.LengthPolicy)
	}

	switch config.ScanPolicy {
	case pattern.Overlapping, pattern.Disjoint:
	default:
		return nil, fmt.Errorf("unknown scan policy: %s", config.ScanPolicy)
	}

	fs := config.OptBackupFs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	logger := zerolog.Nop()
	if config.OptLogger != nil {
		logger = *config.OptLogger
	}

	return &Patcher{
		config: config,
		fs:     fs,
		logger: logger,
	}, nil
}

// Patcher finds and replaces byte patterns in memory regions.
//
// A Patcher is not safe for concurrent use against the same memory
// handle. See the package documentation for the risks of patching
// a running process.
type Patcher struct {
	config PatcherConfig
	fs     afero.Fs
	logger zerolog.Logger
}

// PatchOrExit calls Patch and calls DefaultExitFn if an error occurs.
func (o *Patcher) PatchOrExit(mem io.ReadWriteSeeker, regions []Region, req Request) Result {
	result, err := o.Patch(mem, regions, req)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to patch memory - %w", err))
	}
	return result
}

// Patch searches each region for req.Search and overwrites matches
// with req.Replace, padded with zeros to the length of req.Search.
//
// Regions are processed in order. The caller owns mem and must close
// it. A Result with a MatchCount of zero means the pattern was not
// found and is not an error.
//
// Every region is checked against the configured maximum size before
// any I/O occurs. If an error occurs after a backup was written, the
// partially-completed Result is returned along with the error.
// Otherwise an empty Result is returned.
func (o *Patcher) Patch(mem io.ReadWriteSeeker, regions []Region, req Request) (Result, error) {
	err := req.Validate(o.config.LengthPolicy)
	if err != nil {
		return Result{}, &PhaseError{Phase: PhaseScan, Err: err}
	}

	for _, region := range regions {
		err := region.Validate()
		if err != nil {
			return Result{}, &PhaseError{Phase: PhaseScan, Err: err}
		}

		if region.Size() > o.config.MaxRegionSize {
			return Result{}, &PhaseError{
				Phase:  PhaseScan,
				Region: region,
				Err: fmt.Errorf("%w - region is %s, which exceeds the maximum of %s",
					ErrRegionTooLarge,
					humanize.IBytes(region.Size()),
					humanize.IBytes(o.config.MaxRegionSize)),
			}
		}
	}

	payload := req.payload()

	var result Result

	fail := func(err error) (Result, error) {
		if len(result.Backups) > 0 {
			return result, err
		}
		return Result{}, err
	}

	for _, region := range regions {
		o.logger.Debug().
			Str("region", region.String()).
			Str("size", humanize.IBytes(region.Size())).
			Msg("reading region")

		snapshot, err := readRegion(mem, region)
		if err != nil {
			return fail(&PhaseError{Phase: PhaseScan, Region: region, Err: err})
		}

		if req.BackupPrefix != "" {
			backup, err := writeBackup(o.fs, req.BackupPrefix, region, snapshot)
			if err != nil {
				return fail(&PhaseError{Phase: PhaseBackup, Region: region, Err: err})
			}

			o.logger.Info().
				Str("path", backup.Path).
				Str("region", region.String()).
				Str("digest", fmt.Sprintf("%016x", backup.Digest)).
				Msg("wrote backup")

			result.Backups = append(result.Backups, backup)
		}

		var writeErr error
		done := false

		pattern.Scan(snapshot, req.Search, o.config.ScanPolicy, func(offset int) bool {
			addr := region.Start + uint64(offset)

			o.logger.Info().
				Str("addr", fmt.Sprintf("0x%x", addr)).
				Int("offset", offset).
				Bool("dry_run", req.DryRun).
				Msg("found pattern")

			if !req.DryRun {
				err := writeAt(mem, addr, payload)
				if err != nil {
					writeErr = &PhaseError{Phase: PhaseWrite, Region: region, Addr: addr, Err: err}
					return false
				}

				o.logger.Debug().
					Str("addr", fmt.Sprintf("0x%x", addr)).
					Int("n", len(payload)).
					Int("padding", len(req.Search)-len(req.Replace)).
					Msg("wrote replacement")
			}

			result.MatchCount++
			result.Addresses = append(result.Addresses, addr)

			if !req.ReplaceAll {
				done = true
				return false
			}

			return true
		})

		if writeErr != nil {
			return fail(writeErr)
		}

		if done {
			break
		}
	}

	return result, nil
}

func readRegion(mem io.ReadSeeker, region Region) ([]byte, error) {
	_, err := mem.Seek(int64(region.Start), io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("%w - failed to seek to 0x%x - %w", ErrIOFailure, region.Start, err)
	}

	buf := make([]byte, region.Size())

	_, err = io.ReadFull(mem, buf)
	if err != nil {
		return nil, fmt.Errorf("%w - failed to read %d bytes at 0x%x - %w",
			ErrIOFailure, len(buf), region.Start, err)
	}

	return buf, nil
}

func writeAt(mem io.WriteSeeker, addr uint64, p []byte) error {
	_, err := mem.Seek(int64(addr), io.SeekStart)
	if err != nil {
		return fmt.Errorf("%w - failed to seek to 0x%x - %w", ErrIOFailure, addr, err)
	}

	n, err := mem.Write(p)
	if err != nil {
		return fmt.Errorf("%w - failed to write %d bytes - %w", ErrIOFailure, len(p), err)
	}

	if n != len(p) {
		return fmt.Errorf("%w - short write of %d out of %d bytes", ErrIOFailure, n, len(p))
	}

	return nil
}
