// Package png decodes non-interlaced PNG images into raw pixel buffers.
//
// The decoder walks the chunk structure, inflates the concatenated IDAT
// data with the zlib and flate packages, and reverses the scanline
// filters. Samples are returned exactly as stored: no palette expansion,
// gamma correction, or bit depth conversion is done.
package png

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/pkg/errors"
)

var (
	ErrFormat            = errors.New("png: invalid format")
	ErrUnsupported       = errors.New("png: unsupported feature")
	ErrInvalidFilterType = errors.New("png: invalid filter type")
)

const signature = "\x89PNG\r\n\x1a\n"

// maxChunkLength is the largest length field the format allows.
const maxChunkLength = 1<<31 - 1

// A Chunk is one length-type-data-CRC record of a PNG file. Data aliases
// the buffer the chunk was read from.
type Chunk struct {
	Type string
	Data []byte
	CRC  uint32
}

// Critical reports whether a decoder must understand the chunk to display
// the image. Critical chunk types start with an upper case letter.
func (c Chunk) Critical() bool {
	return len(c.Type) == 4 && c.Type[0]&0x20 == 0
}

// A CRCError reports a chunk whose CRC-32 does not match its contents.
type CRCError struct {
	Type     string
	Expected uint32 // stored in the file
	Actual   uint32 // computed over type and data
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("png: bad CRC for %s chunk: stored %08x, computed %08x", e.Type, e.Expected, e.Actual)
}

func (e *CRCError) Unwrap() error {
	return ErrFormat
}

// ReadChunks checks the PNG signature and splits data into chunks, up to
// and including IEND. Every chunk's CRC is verified.
func ReadChunks(data []byte) ([]Chunk, error) {
	return readChunks(data, true)
}

func readChunks(data []byte, verifyCRC bool) ([]Chunk, error) {
	if len(data) < len(signature) || string(data[:len(signature)]) != signature {
		return nil, errors.Wrap(ErrFormat, "not a PNG file")
	}
	pos := len(signature)

	var chunks []Chunk
	for {
		if len(data)-pos < 8 {
			return nil, errors.Wrapf(ErrFormat, "truncated chunk header at byte %d", pos)
		}
		length := binary.BigEndian.Uint32(data[pos:])
		typ := data[pos+4 : pos+8]
		if length > maxChunkLength {
			return nil, errors.Wrapf(ErrFormat, "chunk length %d at byte %d", length, pos)
		}
		if !validType(typ) {
			return nil, errors.Wrapf(ErrFormat, "chunk type %q at byte %d", typ, pos)
		}
		end := pos + 8 + int(length)
		if end+4 > len(data) || end < pos {
			return nil, errors.Wrapf(ErrFormat, "truncated %s chunk at byte %d", typ, pos)
		}

		c := Chunk{
			Type: string(typ),
			Data: data[pos+8 : end],
			CRC:  binary.BigEndian.Uint32(data[end:]),
		}
		if verifyCRC {
			if actual := crc32.ChecksumIEEE(data[pos+4 : end]); actual != c.CRC {
				return nil, &CRCError{Type: c.Type, Expected: c.CRC, Actual: actual}
			}
		}
		chunks = append(chunks, c)
		pos = end + 4

		if c.Type == "IEND" {
			return chunks, nil
		}
	}
}

// validType reports whether typ is four ASCII letters.
func validType(typ []byte) bool {
	for _, b := range typ {
		if (b < 'A' || b > 'Z') && (b < 'a' || b > 'z') {
			return false
		}
	}
	return true
}

// ConcatIDAT joins the payloads of the IDAT chunks, in order, into the
// zlib stream they were split from. Other chunks are skipped.
func ConcatIDAT(chunks []Chunk) []byte {
	n := 0
	for _, c := range chunks {
		if c.Type == "IDAT" {
			n += len(c.Data)
		}
	}
	b := bytes.NewBuffer(make([]byte, 0, n))
	for _, c := range chunks {
		if c.Type == "IDAT" {
			b.Write(c.Data)
		}
	}
	return b.Bytes()
}
