package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionTooLarge is returned when a region exceeds the
	// configured maximum size.
	ErrRegionTooLarge = errors.New("region too large")

	// ErrLengthMismatch is returned when the replacement's length
	// is not allowed by the configured LengthPolicy.
	ErrLengthMismatch = errors.New("search and replace length mismatch")

	// ErrEmptyPattern is returned when the search pattern is empty.
	ErrEmptyPattern = errors.New("search pattern cannot be empty")

	// ErrInvalidRegion is returned for regions whose start address
	// is not less than their end address.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrIOFailure is returned when reading from or writing to
	// memory or a backup fails.
	ErrIOFailure = errors.New("i/o failure")

	// ErrBackupCorrupt is returned by Restore when a backup's
	// contents do not match the region encoded in its name.
	ErrBackupCorrupt = errors.New("backup is corrupt")

	// ErrRegionMismatch is returned by Restore when a backup's
	// region is not one of the regions currently mapped.
	ErrRegionMismatch = errors.New("backup region is not currently mapped")
)

// Phase identifies the stage of an operation that failed.
type Phase string

const (
	PhaseLocate  Phase = "locate"
	PhaseBackup  Phase = "backup"
	PhaseScan    Phase = "scan"
	PhaseWrite   Phase = "write"
	PhaseRestore Phase = "restore"
)

// PhaseError records the Phase in which an error occurred, along
// with the region and address being processed, if any.
type PhaseError struct {
	Phase  Phase
	Region Region
	Addr   uint64
	Err    error
}

func (o *PhaseError) Error() string {
	switch {
	case o.Addr != 0:
		return fmt.Sprintf("%s failed at 0x%x - %s", o.Phase, o.Addr, o.Err)
	case o.Region != (Region{}):
		return fmt.Sprintf("%s failed for region %s - %s", o.Phase, o.Region, o.Err)
	default:
		return fmt.Sprintf("%s failed - %s", o.Phase, o.Err)
	}
}

func (o *PhaseError) Unwrap() error {
	return o.Err
}

// PhaseOf returns the Phase of the first PhaseError in err's chain.
func PhaseOf(err error) (Phase, bool) {
	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) {
		return phaseErr.Phase, true
	}

	return "", false
}
