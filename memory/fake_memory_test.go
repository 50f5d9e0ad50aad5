package memory

import (
	"errors"
	"io"
)

// fakeMemory is an io.ReadWriteSeeker that emulates a contiguous
// chunk of a process' address space starting at base.
type fakeMemory struct {
	base        uint64
	data        []byte
	pos         int64
	reads       int
	writes      int
	failWriteAt uint64
}

func newFakeMemory(base uint64, data []byte) *fakeMemory {
	cp := make([]byte, len(data))
	copy(cp, data)

	return &fakeMemory{
		base: base,
		data: cp,
	}
}

func (o *fakeMemory) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, errors.New("only io.SeekStart is supported")
	}

	o.pos = offset

	return offset, nil
}

func (o *fakeMemory) Read(p []byte) (int, error) {
	o.reads++

	i, err := o.index(len(p))
	if err != nil {
		return 0, err
	}

	n := copy(p, o.data[i:i+len(p)])
	o.pos += int64(n)

	return n, nil
}

func (o *fakeMemory) Write(p []byte) (int, error) {
	o.writes++

	if o.failWriteAt != 0 && uint64(o.pos) == o.failWriteAt {
		return 0, errors.New("input/output error")
	}

	i, err := o.index(len(p))
	if err != nil {
		return 0, err
	}

	n := copy(o.data[i:], p)
	o.pos += int64(n)

	return n, nil
}

func (o *fakeMemory) index(n int) (int, error) {
	addr := uint64(o.pos)
	if addr < o.base || addr+uint64(n) > o.base+uint64(len(o.data)) {
		return 0, errors.New("input/output error")
	}

	return int(addr - o.base), nil
}

// at returns n bytes starting at the absolute address addr.
func (o *fakeMemory) at(addr uint64, n int) []byte {
	i := int(addr - o.base)
	return o.data[i : i+n]
}
