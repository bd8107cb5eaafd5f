package marshal

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// ForeignEncoding names a text encoding a foreign runtime may report for
// its native strings. Most embeddings are UTF-8 already, in which case no
// recoding is needed; this exists for runtimes (legacy C extensions, wide
// string APIs) that hand back text in something else, the same situation
// the teacher's sequence-string.go addresses with golang.org/x/text.
type ForeignEncoding string

// Foreign encodings the marshaller knows how to recode.
const (
	EncodingUTF8    ForeignEncoding = "utf-8"
	EncodingUTF16LE ForeignEncoding = "utf-16le"
	EncodingUTF16BE ForeignEncoding = "utf-16be"
	EncodingUTF32LE ForeignEncoding = "utf-32le"
	EncodingUTF32BE ForeignEncoding = "utf-32be"
	EncodingLatin1  ForeignEncoding = "latin1"
)

func lookupEncoding(enc ForeignEncoding) (encoding.Encoding, error) {
	switch enc {
	case EncodingUTF8, "":
		return nil, nil // identity; no recoding necessary
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case EncodingUTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	case EncodingUTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), nil
	case EncodingLatin1:
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("marshal: unsupported foreign string encoding %q", enc)
	}
}

// DecodeForeignString converts raw bytes reported by the foreign runtime in
// the given encoding into the kernel's UTF-8 String representation.
func DecodeForeignString(raw []byte, enc ForeignEncoding) (string, error) {
	e, err := lookupEncoding(enc)
	if err != nil {
		return "", err
	}
	if e == nil {
		return string(raw), nil
	}
	out, err := e.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("marshal: decode foreign string as %s: %w", enc, err)
	}
	return string(out), nil
}

// EncodeForeignString converts a kernel String into the byte representation
// a foreign runtime declared for its native strings.
func EncodeForeignString(s string, enc ForeignEncoding) ([]byte, error) {
	e, err := lookupEncoding(enc)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return []byte(s), nil
	}
	out, err := e.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("marshal: encode foreign string as %s: %w", enc, err)
	}
	return out, nil
}
