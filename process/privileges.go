package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckPrivileges returns an error wrapping ErrPermissionDenied if
// the current process is not running as root. Writing to another
// process' memory through procfs generally requires it.
//
// This is a precondition check only. The kernel makes the final
// decision when the memory is opened.
func CheckPrivileges() error {
	return checkPrivileges(unix.Geteuid())
}

func checkPrivileges(euid int) error {
	if euid == 0 {
		return nil
	}

	return fmt.Errorf("%w - effective user id is %d, try running as root",
		ErrPermissionDenied, euid)
}
