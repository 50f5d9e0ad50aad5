package memory

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const backupExt = ".bin"

// Backup describes a file containing the bytes of a region as they
// were before it was modified.
type Backup struct {
	Path   string
	Region Region

	// Digest is the xxhash64 of the backup's contents.
	Digest uint64
}

// BackupName returns the file path of a region's backup. The region
// is encoded in the name so that a backup can be restored without
// any additional metadata:
//
//	<prefix>_<start>-<end>.bin
func BackupName(prefix string, region Region) string {
	return fmt.Sprintf("%s_%x-%x%s", prefix, region.Start, region.End, backupExt)
}

// ParseBackupName returns the Region encoded in a file path created
// by BackupName.
func ParseBackupName(path string) (Region, error) {
	base := filepath.Base(path)

	if !strings.HasSuffix(base, backupExt) {
		return Region{}, fmt.Errorf("backup file name %q does not end with %q", base, backupExt)
	}
	base = strings.TrimSuffix(base, backupExt)

	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return Region{}, fmt.Errorf("backup file name %q is missing the '_' before its address range", base)
	}

	addrs := strings.SplitN(base[i+1:], "-", 2)
	if len(addrs) != 2 {
		return Region{}, fmt.Errorf("backup file name %q is missing its address range", base)
	}

	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("failed to parse start address in backup file name - %w", err)
	}

	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("failed to parse end address in backup file name - %w", err)
	}

	region := Region{Start: start, End: end}

	err = region.Validate()
	if err != nil {
		return Region{}, err
	}

	return region, nil
}

// writeBackup writes data to the region's backup file. The file is
// synced before returning so that the backup is durable before
// memory is modified.
func writeBackup(fs afero.Fs, prefix string, region Region, data []byte) (Backup, error) {
	path := BackupName(prefix, region)

	dir := filepath.Dir(path)
	if dir != "." {
		err := fs.MkdirAll(dir, 0o755)
		if err != nil {
			return Backup{}, fmt.Errorf("%w - failed to create backup directory - %w", ErrIOFailure, err)
		}
	}

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return Backup{}, fmt.Errorf("%w - failed to create backup file - %w", ErrIOFailure, err)
	}

	_, err = f.Write(data)
	if err != nil {
		_ = f.Close()
		return Backup{}, fmt.Errorf("%w - failed to write backup file %q - %w", ErrIOFailure, path, err)
	}

	err = f.Sync()
	if err != nil {
		_ = f.Close()
		return Backup{}, fmt.Errorf("%w - failed to sync backup file %q - %w", ErrIOFailure, path, err)
	}

	err = f.Close()
	if err != nil {
		return Backup{}, fmt.Errorf("%w - failed to close backup file %q - %w", ErrIOFailure, path, err)
	}

	return Backup{
		Path:   path,
		Region: region,
		Digest: xxhash.Sum64(data),
	}, nil
}

// RestoreConfig configures Restore.
type RestoreConfig struct {
	// BackupPath is the path of a file created by Patcher.Patch.
	BackupPath string

	// OptRegions, when non-nil, lists the regions that are
	// currently mapped. The backup's region must be one of them.
	OptRegions []Region

	// OptFs is the filesystem containing the backup.
	// The OS filesystem is used if nil.
	OptFs afero.Fs

	// OptLogger receives progress messages. Nothing is logged
	// if nil.
	OptLogger *zerolog.Logger
}

// RestoreOrExit calls Restore and calls DefaultExitFn if an error occurs.
func RestoreOrExit(mem io.WriteSeeker, config RestoreConfig) Backup {
	b, err := Restore(mem, config)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to restore backup - %w", err))
	}
	return b
}

// Restore writes a backup created by Patcher.Patch back to memory
// using a single seek and a single write.
func Restore(mem io.WriteSeeker, config RestoreConfig) (Backup, error) {
	fs := config.OptFs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	logger := zerolog.Nop()
	if config.OptLogger != nil {
		logger = *config.OptLogger
	}

	region, err := ParseBackupName(config.BackupPath)
	if err != nil {
		return Backup{}, &PhaseError{Phase: PhaseRestore, Err: err}
	}

	if config.OptRegions != nil && !slices.Contains(config.OptRegions, region) {
		return Backup{}, &PhaseError{
			Phase:  PhaseRestore,
			Region: region,
			Err:    ErrRegionMismatch,
		}
	}

	data, err := afero.ReadFile(fs, config.BackupPath)
	if err != nil {
		return Backup{}, &PhaseError{
			Phase:  PhaseRestore,
			Region: region,
			Err:    fmt.Errorf("%w - failed to read backup file - %w", ErrIOFailure, err),
		}
	}

	if uint64(len(data)) != region.Size() {
		return Backup{}, &PhaseError{
			Phase:  PhaseRestore,
			Region: region,
			Err: fmt.Errorf("%w - backup contains %d bytes, but its region is %d bytes",
				ErrBackupCorrupt, len(data), region.Size()),
		}
	}

	err = writeAt(mem, region.Start, data)
	if err != nil {
		return Backup{}, &PhaseError{Phase: PhaseRestore, Region: region, Err: err}
	}

	backup := Backup{
		Path:   config.BackupPath,
		Region: region,
		Digest: xxhash.Sum64(data),
	}

	logger.Info().
		Str("path", backup.Path).
		Str("region", region.String()).
		Str("digest", fmt.Sprintf("%016x", backup.Digest)).
		Msg("restored backup")

	return backup, nil
}
