package lz4

import (
	"encoding/binary"

	"github.com/andybalholm/unpack"
)

// A BlockEncoder writes a parse in the LZ4 block format. Every match must
// be at least 4 bytes long and at most 65535 bytes back.
type BlockEncoder struct{}

func (BlockEncoder) Encode(dst []byte, src []byte, matches []unpack.Match) []byte {
	// Ensure that the block ends with at least 5 literal bytes,
	// and the last match is at least 12 bytes before the end of the block.
	trailingLiterals := 0
	for len(matches) > 0 && (trailingLiterals < 5 || trailingLiterals+matches[len(matches)-1].Length < 12) {
		lastMatch := matches[len(matches)-1]
		matches = matches[:len(matches)-1]
		trailingLiterals += lastMatch.Unmatched + lastMatch.Length
	}

	pos := 0
	for _, m := range matches {
		dst = appendSequence(dst, src[pos:pos+m.Unmatched], m.Length)
		dst = binary.LittleEndian.AppendUint16(dst, uint16(m.Distance))
		if m.Length > 18 {
			dst = appendInt(dst, m.Length-19)
		}
		pos += m.Unmatched + m.Length
	}

	// The final sequence has only literals.
	return appendSequence(dst, src[pos:], 0)
}

// appendSequence appends the token and literals of a sequence. If
// matchLength is nonzero, the caller writes the offset and any extra length
// bytes after it.
func appendSequence(dst, literals []byte, matchLength int) []byte {
	token := byte(0)
	if len(literals) > 14 {
		token |= 0xf0
	} else {
		token |= byte(len(literals) << 4)
	}
	switch {
	case matchLength > 18:
		token |= 0x0f
	case matchLength > 0:
		token |= byte(matchLength - 4)
	}
	dst = append(dst, token)

	if len(literals) > 14 {
		dst = appendInt(dst, len(literals)-15)
	}
	return append(dst, literals...)
}

// appendInt appends n to dst in LZ4's variable-length integer format.
func appendInt(dst []byte, n int) []byte {
	for n >= 255 {
		dst = append(dst, 255)
		n -= 255
	}
	dst = append(dst, byte(n))
	return dst
}
