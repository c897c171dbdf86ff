package png

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/pkg/errors"
)

// A ColorType is the IHDR color type field.
type ColorType uint8

const (
	Grayscale      ColorType = 0
	Truecolor      ColorType = 2
	Paletted       ColorType = 3
	GrayscaleAlpha ColorType = 4
	TruecolorAlpha ColorType = 6
)

func (c ColorType) String() string {
	switch c {
	case Grayscale:
		return "grayscale"
	case Truecolor:
		return "truecolor"
	case Paletted:
		return "paletted"
	case GrayscaleAlpha:
		return "grayscale+alpha"
	case TruecolorAlpha:
		return "truecolor+alpha"
	}
	return fmt.Sprintf("ColorType(%d)", uint8(c))
}

// Channels returns the number of samples per pixel.
func (c ColorType) Channels() int {
	switch c {
	case Grayscale, Paletted:
		return 1
	case GrayscaleAlpha:
		return 2
	case Truecolor:
		return 3
	case TruecolorAlpha:
		return 4
	}
	return 0
}

// allowedDepths lists the legal bit depths for each color type.
var allowedDepths = map[ColorType][]uint8{
	Grayscale:      {1, 2, 4, 8, 16},
	Truecolor:      {8, 16},
	Paletted:       {1, 2, 4, 8},
	GrayscaleAlpha: {8, 16},
	TruecolorAlpha: {8, 16},
}

const (
	interlaceNone  = 0
	interlaceAdam7 = 1
)

// A Header holds the fields of the IHDR chunk.
type Header struct {
	Width     int
	Height    int
	BitDepth  uint8
	ColorType ColorType

	Compression uint8
	Filter      uint8
	Interlace   uint8
}

// Interlaced reports whether the image uses Adam7 interlacing.
func (h Header) Interlaced() bool {
	return h.Interlace == interlaceAdam7
}

// BitsPerPixel returns channels × bit depth.
func (h Header) BitsPerPixel() int {
	return h.ColorType.Channels() * int(h.BitDepth)
}

// BytesPerPixel is the distance, in bytes, between a byte and the
// corresponding byte of the previous pixel, as used by the scanline filters.
// It is 1 for pixels smaller than a byte.
func (h Header) BytesPerPixel() int {
	bpp := h.BitsPerPixel() / 8
	if bpp < 1 {
		return 1
	}
	return bpp
}

// Stride returns the number of bytes in one row of pixels, not counting the
// filter type byte.
func (h Header) Stride() int {
	return (h.Width*h.BitsPerPixel() + 7) / 8
}

// ParseHeader decodes and validates an IHDR chunk.
func ParseHeader(c Chunk) (Header, error) {
	if c.Type != "IHDR" {
		return Header{}, errors.Wrapf(ErrFormat, "expected IHDR, got %s", c.Type)
	}
	if len(c.Data) != 13 {
		return Header{}, errors.Wrapf(ErrFormat, "IHDR length %d", len(c.Data))
	}
	d := c.Data
	w := binary.BigEndian.Uint32(d[0:])
	h := binary.BigEndian.Uint32(d[4:])
	hdr := Header{
		BitDepth:    d[8],
		ColorType:   ColorType(d[9]),
		Compression: d[10],
		Filter:      d[11],
		Interlace:   d[12],
	}

	if w == 0 || h == 0 || w > maxChunkLength || h > maxChunkLength {
		return Header{}, errors.Wrapf(ErrFormat, "dimensions %dx%d", w, h)
	}
	depths, ok := allowedDepths[hdr.ColorType]
	if !ok {
		return Header{}, errors.Wrapf(ErrFormat, "color type %d", d[9])
	}
	legal := false
	for _, bd := range depths {
		if bd == hdr.BitDepth {
			legal = true
		}
	}
	if !legal {
		return Header{}, errors.Wrapf(ErrFormat, "bit depth %d for %v", hdr.BitDepth, hdr.ColorType)
	}
	if hdr.Compression != 0 {
		return Header{}, errors.Wrapf(ErrUnsupported, "compression method %d", hdr.Compression)
	}
	if hdr.Filter != 0 {
		return Header{}, errors.Wrapf(ErrUnsupported, "filter method %d", hdr.Filter)
	}
	if hdr.Interlace != interlaceNone && hdr.Interlace != interlaceAdam7 {
		return Header{}, errors.Wrapf(ErrFormat, "interlace method %d", hdr.Interlace)
	}

	// The filtered image, with a filter byte per row, must fit in an int.
	stride := (uint64(w)*uint64(hdr.BitsPerPixel()) + 7) / 8
	if hi, total := bits.Mul64(stride+1, uint64(h)); hi != 0 || total > uint64(maxInt) {
		return Header{}, errors.Wrapf(ErrUnsupported, "dimension overflow: %dx%d", w, h)
	}
	hdr.Width = int(w)
	hdr.Height = int(h)
	return hdr, nil
}

const maxInt = int(^uint(0) >> 1)
