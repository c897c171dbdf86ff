package png

import (
	"github.com/andybalholm/unpack"
	"github.com/andybalholm/unpack/zlib"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// An Image is a decoded PNG: Height rows of Stride bytes each, holding the
// samples in the file's own layout. Sixteen-bit samples are big-endian, and
// pixels smaller than a byte are packed starting at the high bit.
type Image struct {
	Header Header
	Stride int
	Pix    []byte

	// Palette holds the PLTE entries as RGB triples, if the file has one.
	Palette []byte

	// Chunks lists every chunk in the file, including ancillary ones.
	Chunks []Chunk

	// Filtered is the inflated image data, before the scanline filters
	// are undone, and Matches is its LZ77 parse as recorded from the
	// DEFLATE stream. They are only set when Decoder.Trace is on.
	Filtered []byte
	Matches  []unpack.Match
}

// Row returns row y of the image.
func (m *Image) Row(y int) []byte {
	return m.Pix[y*m.Stride : (y+1)*m.Stride]
}

// A Decoder holds decoding options. The zero value verifies every checksum
// and limits the inflated data to the size the header calls for.
type Decoder struct {
	// Checksum decides what happens when the zlib trailer is wrong.
	Checksum zlib.ChecksumPolicy

	// DisableOutputLimit lets the image data inflate past
	// Height × (1 + Stride) bytes. The extra bytes are ignored.
	DisableOutputLimit bool

	// SkipCRC turns off chunk CRC verification.
	SkipCRC bool

	// Trace keeps the filtered scanlines and their back-references in the
	// Image.
	Trace bool

	// Logger receives debug messages and checksum warnings. If it is nil,
	// the standard logrus logger is used.
	Logger logrus.FieldLogger
}

// Decode decodes a PNG file with the default options.
func Decode(data []byte) (*Image, error) {
	var d Decoder
	return d.Decode(data)
}

// Decode decodes the PNG file in data.
func (d *Decoder) Decode(data []byte) (*Image, error) {
	chunks, err := readChunks(data, !d.SkipCRC)
	if err != nil {
		return nil, errors.Wrap(err, "error reading chunks")
	}
	return d.DecodeChunks(chunks)
}

// DecodeChunks decodes an image from chunks that have already been split
// and checked. The first chunk must be IHDR.
func (d *Decoder) DecodeChunks(chunks []Chunk) (*Image, error) {
	if len(chunks) == 0 {
		return nil, errors.Wrap(ErrFormat, "no chunks")
	}
	hdr, err := ParseHeader(chunks[0])
	if err != nil {
		return nil, err
	}
	if hdr.Interlaced() {
		return nil, errors.Wrap(ErrUnsupported, "interlaced image")
	}

	m := &Image{
		Header: hdr,
		Stride: hdr.Stride(),
		Chunks: chunks,
	}
	if err := checkOrder(chunks, hdr); err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.Type == "PLTE" {
			m.Palette = c.Data
		}
	}
	if hdr.ColorType == Paletted && m.Palette == nil {
		return nil, errors.Wrap(ErrFormat, "missing PLTE chunk")
	}

	compressed := ConcatIDAT(chunks)
	want := hdr.Height * (1 + m.Stride)
	z := zlib.Decompressor{
		Checksum: d.Checksum,
		Logger:   d.logger(),
		Trace:    d.Trace,
	}
	if !d.DisableOutputLimit {
		z.MaxOutput = want
	}
	raw, err := z.Decompress(compressed)
	if err != nil {
		return nil, errors.Wrap(err, "error decompressing image data")
	}
	if len(raw) < want {
		return nil, errors.Wrapf(ErrFormat, "not enough pixel data: have %d bytes, need %d", len(raw), want)
	}
	if len(raw) > want {
		d.logger().WithField("extra", len(raw)-want).Debug("Ignoring data after last row")
	}

	if d.Trace {
		m.Filtered = raw
		m.Matches = z.Matches()
	}

	m.Pix = make([]byte, hdr.Height*m.Stride)
	if err := Unfilter(m.Pix, raw[:want], m.Stride, hdr.BytesPerPixel()); err != nil {
		return nil, err
	}

	d.logger().WithFields(logrus.Fields{
		"width":        hdr.Width,
		"height":       hdr.Height,
		"color_type":   hdr.ColorType.String(),
		"bit_depth":    hdr.BitDepth,
		"idat_chunks":  countType(chunks, "IDAT"),
		"compressed":   len(compressed),
		"decompressed": len(raw),
	}).Debug("Decoded image")
	return m, nil
}

// checkOrder enforces the chunk ordering rules that affect decoding: IHDR
// first, at most one PLTE and only before the image data, and IDAT chunks
// next to each other.
func checkOrder(chunks []Chunk, hdr Header) error {
	seenIDAT, endIDAT, seenPLTE := false, false, false
	for i, c := range chunks {
		switch c.Type {
		case "IHDR":
			if i != 0 {
				return errors.Wrap(ErrFormat, "duplicate IHDR chunk")
			}
		case "PLTE":
			if seenPLTE || seenIDAT {
				return errors.Wrap(ErrFormat, "PLTE chunk out of order")
			}
			if hdr.ColorType == Grayscale || hdr.ColorType == GrayscaleAlpha {
				return errors.Wrapf(ErrFormat, "PLTE chunk in %v image", hdr.ColorType)
			}
			if n := len(c.Data); n == 0 || n%3 != 0 || n/3 > 256 || (hdr.ColorType == Paletted && n/3 > 1<<hdr.BitDepth) {
				return errors.Wrapf(ErrFormat, "PLTE length %d", n)
			}
			seenPLTE = true
		case "IDAT":
			if endIDAT {
				return errors.Wrap(ErrFormat, "IDAT chunks are not consecutive")
			}
			seenIDAT = true
		default:
			if seenIDAT {
				endIDAT = true
			}
			if c.Critical() && c.Type != "IEND" {
				return errors.Wrapf(ErrUnsupported, "critical chunk %s", c.Type)
			}
		}
	}
	if !seenIDAT {
		return errors.Wrap(ErrFormat, "no IDAT chunks")
	}
	return nil
}

func countType(chunks []Chunk, typ string) int {
	n := 0
	for _, c := range chunks {
		if c.Type == typ {
			n++
		}
	}
	return n
}

func (d *Decoder) logger() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}
