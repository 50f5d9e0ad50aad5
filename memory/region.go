package memory

import (
	"fmt"
	"math"
)

// Region is a half-open range of virtual addresses: [Start, End).
type Region struct {
	Start uint64
	End   uint64
}

// Size returns the number of bytes in the region.
func (o Region) Size() uint64 {
	return o.End - o.Start
}

// Contains returns true if addr falls within the region.
func (o Region) Contains(addr uint64) bool {
	return addr >= o.Start && addr < o.End
}

// Validate returns a non-nil error if the region is empty or
// cannot be addressed through an io.Seeker.
func (o Region) Validate() error {
	if o.Start >= o.End {
		return fmt.Errorf("%w - start address 0x%x is not less than end address 0x%x",
			ErrInvalidRegion, o.Start, o.End)
	}

	if o.End > math.MaxInt64 {
		return fmt.Errorf("%w - end address 0x%x cannot be seeked to",
			ErrInvalidRegion, o.End)
	}

	return nil
}

func (o Region) String() string {
	return fmt.Sprintf("%x-%x", o.Start, o.End)
}
