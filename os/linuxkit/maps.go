package linuxkit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// HeapPathname is the pseudo-path the kernel assigns to the
	// mapping(s) that make up a process' heap (i.e., the brk area).
	HeapPathname = "[heap]"

	// StackPathname is the pseudo-path of the main thread's stack.
	StackPathname = "[stack]"
)

// Perms is the permissions field of a /proc/<pid>/maps line,
// such as "rw-p".
type Perms string

func (o Perms) Read() bool {
	return o.bit(0, 'r')
}

func (o Perms) Write() bool {
	return o.bit(1, 'w')
}

func (o Perms) Exec() bool {
	return o.bit(2, 'x')
}

// Private returns true if the mapping is copy-on-write
// rather than shared.
func (o Perms) Private() bool {
	return o.bit(3, 'p')
}

func (o Perms) bit(i int, c byte) bool {
	return len(o) > i && o[i] == c
}

// Mapping is a single line of a /proc/<pid>/maps file.
//
// The line format is documented in proc(5):
//
//	address           perms offset  dev   inode       pathname
//	00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon
type Mapping struct {
	Start    uint64
	End      uint64
	Perms    Perms
	Offset   uint64
	Dev      string
	Inode    uint64
	Pathname string
}

// Size returns the number of bytes covered by the mapping.
func (o Mapping) Size() uint64 {
	return o.End - o.Start
}

// IsHeap returns true if the mapping is tagged with HeapPathname.
func (o Mapping) IsHeap() bool {
	return o.Pathname == HeapPathname
}

// String re-serializes the mapping in the same format
// used by the kernel.
func (o Mapping) String() string {
	str := fmt.Sprintf("%08x-%08x %s %08x %s %d",
		o.Start, o.End, o.Perms, o.Offset, o.Dev, o.Inode)

	if o.Pathname == "" {
		return str
	}

	return str + " " + o.Pathname
}

// ParseMapping parses a single /proc/<pid>/maps line.
func ParseMapping(line string) (Mapping, error) {
	fields, pathname := splitMapsLine(line, 5)
	if len(fields) < 5 {
		return Mapping{}, fmt.Errorf("expected at least 5 fields - got %d", len(fields))
	}

	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return Mapping{}, fmt.Errorf("address range %q is missing a '-'", fields[0])
	}

	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse start address - %w", err)
	}

	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse end address - %w", err)
	}

	if start >= end {
		return Mapping{}, fmt.Errorf("start address 0x%x is not less than end address 0x%x",
			start, end)
	}

	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse offset - %w", err)
	}

	inode, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse inode - %w", err)
	}

	return Mapping{
		Start:    start,
		End:      end,
		Perms:    Perms(fields[1]),
		Offset:   offset,
		Dev:      fields[3],
		Inode:    inode,
		Pathname: pathname,
	}, nil
}

// splitMapsLine splits the first n whitespace-separated fields
// off of line. Whatever remains is the pathname, which may
// itself contain spaces (e.g., "/tmp/a b (deleted)").
func splitMapsLine(line string, n int) ([]string, string) {
	var fields []string

	rest := line
	for len(fields) < n {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}

		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}

		fields = append(fields, rest[:end])
		rest = rest[end:]
	}

	return fields, strings.TrimSpace(rest)
}

// ErrStopParsing may be returned by a ParseMaps callback to stop
// parsing without ParseMaps returning an error.
var ErrStopParsing = errors.New("stop parsing")

// ParseMaps parses a /proc/<pid>/maps formatted stream, calling fn
// for each mapping in map order. Blank lines are skipped.
func ParseMaps(r io.Reader, fn func(Mapping) error) error {
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		mapping, err := ParseMapping(line)
		if err != nil {
			return fmt.Errorf("failed to parse maps line %d (%q) - %w", lineNum, line, err)
		}

		err = fn(mapping)
		switch {
		case err == nil:
			// Keep going.
		case errors.Is(err, ErrStopParsing):
			return nil
		default:
			return err
		}
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("failed to read maps - %w", err)
	}

	return nil
}
