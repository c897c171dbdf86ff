// Package lz4 writes rasters in the LZ4 frame format.
package lz4

import (
	"encoding/binary"

	"github.com/andybalholm/unpack"
	"github.com/pierrec/lz4/v4"
	"github.com/pierrec/xxHash/xxHash32"
	"github.com/pkg/errors"
)

const (
	frameMagic   = 0x184D2204
	maxBlockSize = 4 << 20

	// A block whose size has this bit set is stored uncompressed.
	uncompressedBit = 1 << 31

	minMatch    = 4
	maxDistance = 65535
)

// A FrameEncoder implements the unpack.Encoder and unpack.MatchEncoder
// interfaces, writing in the LZ4 frame format.
type FrameEncoder struct {
	// Level selects the block compressor: 0 is the fast one, and 1 through
	// 9 are the high-compression one at increasing search depths.
	Level int

	blockBuffer []byte
}

// NewEncoder returns a FrameEncoder at the given level.
func NewEncoder(level int) *FrameEncoder {
	return &FrameEncoder{Level: level}
}

func (f *FrameEncoder) Encode(dst []byte, src []byte) ([]byte, error) {
	if f.Level < 0 || f.Level > 9 {
		return dst, errors.Errorf("lz4: invalid level %d", f.Level)
	}
	dst = appendHeader(dst)
	for start := 0; start < len(src); start += maxBlockSize {
		block := src[start:min(start+maxBlockSize, len(src))]
		bound := lz4.CompressBlockBound(len(block))
		if cap(f.blockBuffer) < bound {
			f.blockBuffer = make([]byte, bound)
		}
		buf := f.blockBuffer[:bound]

		var n int
		var err error
		if f.Level > 0 {
			n, err = lz4.CompressBlockHC(block, buf, lz4.CompressionLevel(1<<(8+f.Level)), nil, nil)
		} else {
			n, err = lz4.CompressBlock(block, buf, nil)
		}
		if err != nil {
			return dst, errors.Wrap(err, "lz4: error compressing block")
		}
		dst = appendBlock(dst, block, buf[:n])
	}
	return appendTrailer(dst, src), nil
}

// EncodeMatches writes src using matches instead of searching for its own.
// Matches shorter than 4 bytes, and the parts of matches that reach across
// a block boundary, are written as literals.
func (f *FrameEncoder) EncodeMatches(dst []byte, src []byte, matches []unpack.Match) ([]byte, error) {
	for _, m := range matches {
		if m.Length > 0 && (m.Distance <= 0 || m.Distance > maxDistance) {
			return dst, errors.Errorf("lz4: match distance %d out of range", m.Distance)
		}
	}

	dst = appendHeader(dst)
	for start := 0; start < len(src); start += maxBlockSize {
		end := min(start+maxBlockSize, len(src))
		var be BlockEncoder
		f.blockBuffer = be.Encode(f.blockBuffer[:0], src[start:end], unpack.Window(matches, start, end, minMatch))
		dst = appendBlock(dst, src[start:end], f.blockBuffer)
	}
	return appendTrailer(dst, src), nil
}

func appendHeader(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, frameMagic)
	// Frame header for content checksum enabled, and 4-MB blocks. The
	// blocks never refer to each other, but the header doesn't promise it.
	return append(dst, 0x44, 0x70, 0x1d)
}

// appendBlock appends a block holding raw, or compressed if it is non-empty
// and smaller.
func appendBlock(dst, raw, compressed []byte) []byte {
	if len(compressed) == 0 || len(compressed) >= len(raw) {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(raw))|uncompressedBit)
		return append(dst, raw...)
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(compressed)))
	return append(dst, compressed...)
}

// appendTrailer appends the end mark and the content checksum of src.
func appendTrailer(dst, src []byte) []byte {
	dst = append(dst, 0, 0, 0, 0)
	return binary.LittleEndian.AppendUint32(dst, xxHash32.Checksum(src, 0))
}
