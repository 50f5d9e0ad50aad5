package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"gitlab.com/stephen-fox/heapkit/memory"
)

// OpenMemoryConfig configures OpenMemory.
type OpenMemoryConfig struct {
	// ReadOnly opens the memory handle without write access,
	// which is sufficient for dry runs.
	ReadOnly bool

	// OptFs is the filesystem containing OptProcRoot.
	// The OS filesystem is used if nil.
	OptFs afero.Fs

	// OptProcRoot is the procfs mount point. Defaults to "/proc".
	OptProcRoot string
}

// OpenMemoryOrExit calls OpenMemory and calls DefaultExitFn
// if an error occurs.
func OpenMemoryOrExit(pid int, config OpenMemoryConfig) *Memory {
	m, err := OpenMemory(pid, config)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to open memory of process %d - %w", pid, err))
	}
	return m
}

// OpenMemory opens the memory of the process identified by pid
// (i.e., /proc/<pid>/mem). The caller must call Memory.Close.
//
// Opening another process' memory for writing generally requires
// elevated privileges. See CheckPrivileges.
func OpenMemory(pid int, config OpenMemoryConfig) (*Memory, error) {
	if pid <= 0 {
		return nil, &memory.PhaseError{
			Phase: memory.PhaseScan,
			Err:   fmt.Errorf("%w - invalid pid: %d", ErrProcessNotFound, pid),
		}
	}

	fs := config.OptFs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	root := config.OptProcRoot
	if root == "" {
		root = defaultProcRoot
	}

	flag := os.O_RDWR
	if config.ReadOnly {
		flag = os.O_RDONLY
	}

	path := filepath.Join(root, strconv.Itoa(pid), "mem")

	f, err := fs.OpenFile(path, flag, 0)
	if err != nil {
		return nil, &memory.PhaseError{
			Phase: memory.PhaseScan,
			Err:   fmt.Errorf("failed to open %s - %w", path, classifyErr(pid, err)),
		}
	}

	return &Memory{
		pid:  pid,
		file: f,
	}, nil
}

// Memory is a seekable handle to a process' memory. Offsets are
// virtual addresses in the target process.
//
// A Memory must not be shared between concurrent operations.
type Memory struct {
	pid  int
	file afero.File
}

var _ io.ReadWriteSeeker = (*Memory)(nil)

// Pid returns the process ID the handle is bound to.
func (o *Memory) Pid() int {
	return o.pid
}

func (o *Memory) Seek(offset int64, whence int) (int64, error) {
	return o.file.Seek(offset, whence)
}

func (o *Memory) Read(p []byte) (int, error) {
	n, err := o.file.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, classifyErr(o.pid, err)
	}
	return n, err
}

func (o *Memory) Write(p []byte) (int, error) {
	n, err := o.file.Write(p)
	if err != nil {
		return n, classifyErr(o.pid, err)
	}
	return n, nil
}

// Close releases the handle.
func (o *Memory) Close() error {
	return o.file.Close()
}
