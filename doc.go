// Package heapkit provides functionality for finding and replacing
// data in the heap of a running Linux process.
//
// APIs are separated into subpackages, and documented accordingly.
// The heapwrite, heaprestore and heapfind commands are built on them.
//
// For scripting convenience, "OrExit" functions and methods are provided.
// Any errors encountered by these functions are treated as fatal. In such
// cases, an exit handler function is invoked.
package heapkit
