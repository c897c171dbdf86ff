// Package snappy writes rasters in the snappy framing format.
package snappy

import (
	"hash/crc32"

	"github.com/andybalholm/unpack"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

const (
	// maxChunkSize is the most uncompressed data a chunk may hold.
	maxChunkSize = 65536

	chunkCompressed   = 0x00
	chunkUncompressed = 0x01

	minMatch = 4
)

// An Encoder implements the unpack.Encoder and unpack.MatchEncoder
// interfaces, writing a complete snappy stream for each raster.
type Encoder struct {
	blockBuffer []byte
}

var magicChunk = []byte("\xff\x06\x00\x00sNaPpY")

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// crc implements the checksum specified in section 3 of
// https://github.com/google/snappy/blob/master/framing_format.txt
func crc(b []byte) uint32 {
	c := crc32.Update(0, crcTable, b)
	return uint32(c>>15|c<<17) + 0xa282ead8
}

func (e *Encoder) Encode(dst []byte, src []byte) ([]byte, error) {
	dst = append(dst, magicChunk...)
	for start := 0; start < len(src); start += maxChunkSize {
		chunk := src[start:min(start+maxChunkSize, len(src))]
		e.blockBuffer = snappy.Encode(e.blockBuffer[:cap(e.blockBuffer)], chunk)
		dst = appendChunk(dst, chunk, e.blockBuffer)
	}
	return dst, nil
}

// EncodeMatches writes src using matches instead of searching for its own.
// Each chunk is independent, so the parts of matches that reach back into
// an earlier chunk are written as literals.
func (e *Encoder) EncodeMatches(dst []byte, src []byte, matches []unpack.Match) ([]byte, error) {
	for _, m := range matches {
		if m.Length > 0 && m.Distance <= 0 {
			return dst, errors.Errorf("snappy: match distance %d out of range", m.Distance)
		}
	}

	dst = append(dst, magicChunk...)
	for start := 0; start < len(src); start += maxChunkSize {
		end := min(start+maxChunkSize, len(src))
		chunk := src[start:end]

		b := appendUvarint(e.blockBuffer[:0], uint64(len(chunk)))
		pos := 0
		for _, m := range unpack.Window(matches, start, end, minMatch) {
			if m.Unmatched > 0 {
				b = appendLiteral(b, chunk[pos:pos+m.Unmatched])
				pos += m.Unmatched
			}
			if m.Length > 0 {
				b = appendCopy(b, m.Length, m.Distance)
				pos += m.Length
			}
		}
		if pos < len(chunk) {
			b = appendLiteral(b, chunk[pos:])
		}
		e.blockBuffer = b
		dst = appendChunk(dst, chunk, b)
	}
	return dst, nil
}

// appendChunk appends a framed chunk holding raw. The compressed form is
// used unless it fails to save at least 12.5%.
func appendChunk(dst, raw, compressed []byte) []byte {
	chunkType := byte(chunkCompressed)
	if len(compressed) >= len(raw)-len(raw)/8 {
		chunkType = chunkUncompressed
		compressed = raw
	}

	checksum := crc(raw)
	chunkLen := len(compressed) + 4
	dst = append(dst,
		chunkType,
		byte(chunkLen), byte(chunkLen>>8), byte(chunkLen>>16),
		byte(checksum), byte(checksum>>8), byte(checksum>>16), byte(checksum>>24),
	)
	return append(dst, compressed...)
}

const (
	tagLiteral = 0x00
	tagCopy1   = 0x01
	tagCopy2   = 0x02
	tagCopy4   = 0x03
)

func appendLiteral(dst, lit []byte) []byte {
	n := len(lit) - 1
	switch {
	case n < 60:
		dst = append(dst, byte(n)<<2|tagLiteral)
	case n < 1<<8:
		dst = append(dst, 60<<2|tagLiteral, byte(n))
	default:
		dst = append(dst, 61<<2|tagLiteral, byte(n), byte(n>>8))
	}
	return append(dst, lit...)
}

func appendCopy(dst []byte, length, offset int) []byte {
	// The maximum length for a single tagCopy1 or tagCopy2 op is 64 bytes. The
	// threshold for this loop is a little higher (at 68 = 64 + 4), and the
	// length emitted down below is is a little lower (at 60 = 64 - 4), because
	// it's shorter to encode a length 67 copy as a length 60 tagCopy2 followed
	// by a length 7 tagCopy1 (which encodes as 3+2 bytes) than to encode it as
	// a length 64 tagCopy2 followed by a length 3 tagCopy2 (which encodes as
	// 3+3 bytes). The magic 4 in the 64±4 is because the minimum length for a
	// tagCopy1 op is 4 bytes, which is why a length 3 copy has to be an
	// encodes-as-3-bytes tagCopy2 instead of an encodes-as-2-bytes tagCopy1.
	for length >= 68 {
		// Emit a length 64 copy, encoded as 3 bytes.
		dst = append(dst,
			63<<2|tagCopy2,
			byte(offset),
			byte(offset>>8),
		)
		length -= 64
	}
	if length > 64 {
		// Emit a length 60 copy, encoded as 3 bytes.
		dst = append(dst,
			59<<2|tagCopy2,
			byte(offset),
			byte(offset>>8),
		)
		length -= 60
	}
	if length >= 12 || offset >= 2048 {
		// Emit the remaining copy, encoded as 3 bytes.
		return append(dst,
			byte(length-1)<<2|tagCopy2,
			byte(offset),
			byte(offset>>8),
		)
	}
	// Emit the remaining copy, encoded as 2 bytes.
	return append(dst,
		byte(offset>>8)<<5|byte(length-4)<<2|tagCopy1,
		byte(offset),
	)
}

// appendUvarint appends x to dst in varint format.
func appendUvarint(dst []byte, x uint64) []byte {
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}
