package process

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

var (
	// ErrProcessNotFound means the process does not exist
	// (or exited while it was being inspected).
	ErrProcessNotFound = errors.New("process not found")

	// ErrPermissionDenied means the caller is not allowed to
	// read the process' memory map or access its memory.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrHeapNotFound means the process' memory map contains
	// no heap mapping.
	ErrHeapNotFound = errors.New("heap not found")
)

// classifyErr wraps err with ErrProcessNotFound or ErrPermissionDenied
// when the underlying errno indicates either condition.
func classifyErr(pid int, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ESRCH):
		return fmt.Errorf("%w - pid %d - %w", ErrProcessNotFound, pid, err)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return fmt.Errorf("%w - pid %d - %w", ErrPermissionDenied, pid, err)
	default:
		return err
	}
}
