// Package memory provides functionality for finding and overwriting
// byte patterns in the memory of a running process.
//
// The Patcher type implements a scan-then-write loop against a seekable
// memory handle (such as /proc/<pid>/mem on Linux). Each region is read
// into a local buffer with a single seek and a single bulk read. The
// buffer is then searched, and each match is written back to the handle
// at its absolute address.
//
// # Backups
//
// When a backup prefix is specified, the Patcher writes each region's
// bytes to a file named by BackupName before any write to that region
// occurs. The file is synced and closed first, so a backup always
// reflects the region as it was immediately before mutation. Restore
// writes a backup back into a process.
//
// # Risks
//
// The target process keeps running while it is being patched. The
// buffer that is searched is a snapshot; by the time a write executes,
// the target may have modified, freed or reused that memory. Callers
// that need a consistent view must stop the process themselves.
//
// A failed read or write aborts the operation. Replacements that were
// already written are not rolled back. If a backup was requested, the
// partial Result describing what was written is returned along with
// the error, and Restore can be used to undo the changes.
//
// Matches may overlap when scanning with pattern.Overlapping (the
// default). In that case, a later replacement can partially overwrite
// an earlier one, since matches are found in the snapshot rather than
// in the modified memory.
package memory
