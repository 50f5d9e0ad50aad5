package pattern

import (
	"fmt"
)

func ExampleScan() {
	heap := []byte("\x00\x00Holberton\x00Holberton\x00")

	Scan(heap, []byte("Holberton"), Overlapping, func(offset int) bool {
		fmt.Printf("found at offset 0x%x\n", offset)
		return true
	})

	// Output:
	// found at offset 0x2
	// found at offset 0xc
}
