package memory

import (
	"fmt"
)

// LengthPolicy controls which replacement lengths are accepted.
type LengthPolicy int

const (
	// LengthPolicyEqual requires the replacement to be exactly
	// as long as the search pattern.
	LengthPolicyEqual LengthPolicy = iota

	// LengthPolicyPad accepts replacements shorter than the search
	// pattern. The remaining bytes of each match are zeroed so that
	// no trailing bytes of the original data remain.
	LengthPolicyPad
)

func (o LengthPolicy) String() string {
	switch o {
	case LengthPolicyEqual:
		return "equal"
	case LengthPolicyPad:
		return "pad"
	default:
		return fmt.Sprintf("unknown (%d)", int(o))
	}
}

// ParseLengthPolicy returns the LengthPolicy named by str.
func ParseLengthPolicy(str string) (LengthPolicy, error) {
	switch str {
	case "", "equal":
		return LengthPolicyEqual, nil
	case "pad":
		return LengthPolicyPad, nil
	default:
		return 0, fmt.Errorf("unknown length policy: %q", str)
	}
}

// Request describes a single search-and-replace operation.
type Request struct {
	// Search is the byte pattern to find.
	Search []byte

	// Replace is written over each match.
	Replace []byte

	// ReplaceAll replaces every match in every region. When false,
	// only the first match is replaced.
	ReplaceAll bool

	// DryRun finds and reports matches without writing to memory.
	DryRun bool

	// BackupPrefix, when non-empty, enables backups. Each scanned
	// region is saved to a file named by BackupName.
	BackupPrefix string
}

// Validate checks the request against the specified LengthPolicy.
func (o Request) Validate(policy LengthPolicy) error {
	if len(o.Search) == 0 {
		return ErrEmptyPattern
	}

	switch policy {
	case LengthPolicyEqual:
		if len(o.Replace) != len(o.Search) {
			return fmt.Errorf("%w - replacement is %d bytes, but the search pattern is %d bytes",
				ErrLengthMismatch, len(o.Replace), len(o.Search))
		}
	case LengthPolicyPad:
		if len(o.Replace) > len(o.Search) {
			return fmt.Errorf("%w - replacement (%d bytes) cannot be longer than the search pattern (%d bytes)",
				ErrLengthMismatch, len(o.Replace), len(o.Search))
		}
	default:
		return fmt.Errorf("unknown length policy: %s", policy)
	}

	return nil
}

// payload returns the bytes written over each match: the replacement
// followed by enough zeros to cover the entire search pattern.
func (o Request) payload() []byte {
	out := make([]byte, len(o.Search))

	copy(out, o.Replace)

	return out
}

// Result describes the outcome of Patcher.Patch.
type Result struct {
	// MatchCount is the number of matches found (and written,
	// unless the request was a dry run). Zero means the pattern
	// was not found.
	MatchCount uint32

	// Addresses contains the absolute address of each match
	// in the order they were found.
	Addresses []uint64

	// Backups lists the backups that were written, in region order.
	Backups []Backup
}

// BackupPath returns the path of the first backup, or an empty
// string if no backups were written.
func (o Result) BackupPath() string {
	if len(o.Backups) == 0 {
		return ""
	}

	return o.Backups[0].Path
}
