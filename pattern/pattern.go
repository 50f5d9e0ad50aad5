// Package pattern provides functionality for finding byte patterns
// in buffers, such as a snapshot of a process' heap.
package pattern

import (
	"bytes"
	"fmt"
)

// Policy controls where a scan resumes after a match.
type Policy int

const (
	// Overlapping resumes the scan one byte after the start of the
	// previous match. Searching for "aa" in "aaaa" finds 3 matches.
	Overlapping Policy = iota

	// Disjoint resumes the scan at the end of the previous match.
	// Searching for "aa" in "aaaa" finds 2 matches.
	Disjoint
)

func (o Policy) String() string {
	switch o {
	case Overlapping:
		return "overlapping"
	case Disjoint:
		return "disjoint"
	default:
		return fmt.Sprintf("unknown (%d)", int(o))
	}
}

// ParsePolicy returns the Policy named by str.
func ParsePolicy(str string) (Policy, error) {
	switch str {
	case "", "overlapping":
		return Overlapping, nil
	case "disjoint":
		return Disjoint, nil
	default:
		return 0, fmt.Errorf("unknown scan policy: %q", str)
	}
}

// Scan searches haystack for needle from offset zero, calling fn with
// the offset of each match in ascending order. Scanning stops when fn
// returns false. An empty needle never matches.
func Scan(haystack []byte, needle []byte, policy Policy, fn func(offset int) bool) {
	if len(needle) == 0 {
		return
	}

	step := 1
	if policy == Disjoint {
		step = len(needle)
	}

	pos := 0
	for pos <= len(haystack)-len(needle) {
		i := bytes.Index(haystack[pos:], needle)
		if i < 0 {
			return
		}

		offset := pos + i
		if !fn(offset) {
			return
		}

		pos = offset + step
	}
}

// IndexAll returns the offsets of every match of needle in haystack.
func IndexAll(haystack []byte, needle []byte, policy Policy) []int {
	var offsets []int

	Scan(haystack, needle, policy, func(offset int) bool {
		offsets = append(offsets, offset)
		return true
	})

	return offsets
}
