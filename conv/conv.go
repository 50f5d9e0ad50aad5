// Package conv converts command line strings into the raw byte
// patterns that get searched for and written into memory.
package conv

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrEncoding is returned when a string cannot be represented
// in the requested byte encoding.
var ErrEncoding = errors.New("encoding error")

// Encoding names a byte encoding for a search or replace string.
type Encoding string

const (
	UTF8    Encoding = "utf8"
	UTF16LE Encoding = "utf16le"
	UTF16BE Encoding = "utf16be"
	Latin1  Encoding = "latin1"

	// Hex treats the string as hex-encoded binary data, such as
	// "\x41\x42", "0x4142" or "41 42".
	Hex Encoding = "hex"
)

// Encodings returns the supported encodings.
func Encodings() []Encoding {
	return []Encoding{UTF8, UTF16LE, UTF16BE, Latin1, Hex}
}

// ParseEncoding returns the Encoding named by str. Common aliases
// such as "utf-16" and "iso-8859-1" are accepted.
func ParseEncoding(str string) (Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(str, "-", "")) {
	case "", "utf8":
		return UTF8, nil
	case "utf16le", "utf16", "unicode":
		return UTF16LE, nil
	case "utf16be":
		return UTF16BE, nil
	case "latin1", "iso88591":
		return Latin1, nil
	case "hex":
		return Hex, nil
	default:
		return "", fmt.Errorf("unsupported encoding: %q", str)
	}
}

// Encode converts str into bytes using enc. Any error wraps ErrEncoding.
func Encode(str string, enc Encoding) ([]byte, error) {
	if enc == Hex {
		b, err := HexStringToBytes(str)
		if err != nil {
			return nil, fmt.Errorf("%w - %s", ErrEncoding, err)
		}

		return b, nil
	}

	if !utf8.ValidString(str) {
		return nil, fmt.Errorf("%w - %q is not valid utf-8", ErrEncoding, str)
	}

	var encoder *encoding.Encoder

	switch enc {
	case UTF8, "":
		return []byte(str), nil
	case UTF16LE:
		encoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	case UTF16BE:
		encoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	case Latin1:
		encoder = charmap.ISO8859_1.NewEncoder()
	default:
		return nil, fmt.Errorf("%w - unsupported encoding: %q", ErrEncoding, enc)
	}

	b, err := encoder.Bytes([]byte(str))
	if err != nil {
		return nil, fmt.Errorf("%w - failed to encode %q as %s - %s", ErrEncoding, str, enc, err)
	}

	return b, nil
}

// HexStringToBytes decodes a hex string. It tolerates the notations
// commonly used for shellcode and memory dumps: "0x" prefixes,
// "\x" escapes, quotes and whitespace. Any other non-hex character
// is an error.
func HexStringToBytes(str string) ([]byte, error) {
	hexASCII := bytes.NewBuffer(nil)

	for _, field := range strings.Fields(strings.ReplaceAll(str, `"`, " ")) {
		field = strings.TrimPrefix(field, "0x")
		field = strings.TrimPrefix(field, "0X")
		hexASCII.WriteString(strings.ReplaceAll(field, `\x`, ""))
	}

	if hexASCII.Len() == 0 {
		return nil, errors.New("hex string cannot be empty")
	}

	decoded, err := hex.DecodeString(hexASCII.String())
	if err != nil {
		return nil, fmt.Errorf("failed to hex decode %q - %w", str, err)
	}

	return decoded, nil
}
