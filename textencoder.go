package unpack

import "fmt"

// A TextEncoder produces a human-readable representation of an LZ77
// parse. Matches are replaced with <Length,Distance> symbols, so running it
// on the output of an inflate trace shows how the stream was compressed.
type TextEncoder struct{}

// Encode appends the text form of src, as described by matches, to dst.
func (t TextEncoder) Encode(dst []byte, src []byte, matches []Match) []byte {
	pos := 0
	for _, m := range matches {
		if m.Unmatched > 0 {
			dst = append(dst, src[pos:pos+m.Unmatched]...)
			pos += m.Unmatched
		}
		if m.Length > 0 {
			dst = append(dst, fmt.Sprintf("<%d,%d>", m.Length, m.Distance)...)
			pos += m.Length
		}
	}
	if pos < len(src) {
		dst = append(dst, src[pos:]...)
	}
	return dst
}
