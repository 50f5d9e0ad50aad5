package process

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"gitlab.com/stephen-fox/heapkit/memory"
	"gitlab.com/stephen-fox/heapkit/os/linuxkit"
)

// LocateHeapConfig configures LocateHeap.
type LocateHeapConfig struct {
	// RequireWritable only accepts heap mappings whose
	// permissions include the write bit.
	RequireWritable bool

	// OptFs is the filesystem containing OptProcRoot.
	// The OS filesystem is used if nil.
	OptFs afero.Fs

	// OptProcRoot is the procfs mount point. Defaults to "/proc".
	OptProcRoot string
}

func (o LocateHeapConfig) fs() afero.Fs {
	if o.OptFs == nil {
		return afero.NewOsFs()
	}
	return o.OptFs
}

func (o LocateHeapConfig) procRoot() string {
	if o.OptProcRoot == "" {
		return defaultProcRoot
	}
	return o.OptProcRoot
}

// LocateHeapOrExit calls LocateHeap and calls DefaultExitFn
// if an error occurs.
func LocateHeapOrExit(pid int, config LocateHeapConfig) []memory.Region {
	regions, err := LocateHeap(pid, config)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to locate heap of process %d - %w", pid, err))
	}
	return regions
}

// LocateHeap parses the memory map of the process identified by pid
// and returns every mapping tagged as the heap, in map order.
//
// The returned error wraps ErrProcessNotFound, ErrPermissionDenied or
// ErrHeapNotFound when applicable, and is always a *memory.PhaseError
// with memory.PhaseLocate as its phase.
func LocateHeap(pid int, config LocateHeapConfig) ([]memory.Region, error) {
	regions, err := locateHeap(pid, config)
	if err != nil {
		return nil, &memory.PhaseError{Phase: memory.PhaseLocate, Err: err}
	}

	return regions, nil
}

func locateHeap(pid int, config LocateHeapConfig) ([]memory.Region, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("%w - invalid pid: %d", ErrProcessNotFound, pid)
	}

	fs := config.fs()
	procDir := filepath.Join(config.procRoot(), strconv.Itoa(pid))

	_, err := fs.Stat(procDir)
	if err != nil {
		return nil, classifyErr(pid, err)
	}

	mapsPath := filepath.Join(procDir, "maps")

	mapsFile, err := fs.Open(mapsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s - %w", mapsPath, classifyErr(pid, err))
	}
	defer mapsFile.Close()

	var regions []memory.Region

	err = linuxkit.ParseMaps(mapsFile, func(m linuxkit.Mapping) error {
		if !m.IsHeap() {
			return nil
		}

		if config.RequireWritable && !m.Perms.Write() {
			return nil
		}

		regions = append(regions, memory.Region{
			Start: m.Start,
			End:   m.End,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s - %w", mapsPath, classifyErr(pid, err))
	}

	if len(regions) == 0 {
		if config.RequireWritable {
			return nil, fmt.Errorf("%w - pid %d has no writable %s mapping",
				ErrHeapNotFound, pid, linuxkit.HeapPathname)
		}

		return nil, fmt.Errorf("%w - pid %d has no %s mapping",
			ErrHeapNotFound, pid, linuxkit.HeapPathname)
	}

	return regions, nil
}
