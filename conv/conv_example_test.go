package conv

import (
	"fmt"
	"log"
)

func ExampleEncode() {
	search, err := Encode("Hi", UTF16LE)
	if err != nil {
		log.Fatalln(err)
	}

	shellcode, err := Encode(`\x31\xc0\x40\x89\xc3\xcd\x80`, Hex)
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Printf("0x%x\n", search)
	fmt.Printf("0x%x\n", shellcode)

	// Output:
	// 0x48006900
	// 0x31c04089c3cd80
}
