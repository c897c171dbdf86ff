// The unpack package is a from-scratch PNG decoding core.
//
// Decoding a PNG is mostly a matter of undoing two transforms:
//   - DEFLATE compression (LZ77 matches plus Huffman coding), wrapped in
//     a zlib container
//   - per-scanline prediction filters
//
// The subpackages handle each stage: flate inflates raw DEFLATE data, zlib
// checks the container, and png walks chunks and reconstructs scanlines.
// This package holds the types shared between stages and the output side:
// the intermediate LZ77 representation recovered while inflating, and the
// Encoder interface implemented by the raster storage formats (zstd, lz4,
// snappy, brotli).
package unpack

import (
	"io"

	"github.com/pkg/errors"
)

// A Match is the basic unit of LZ77 compression.
type Match struct {
	Unmatched int // the number of unmatched bytes since the previous match
	Length    int // the number of bytes in the matched string; it may be 0 at the end of the input
	Distance  int // how far back in the stream to copy from
}

// An Encoder writes a decoded raster in a storage format.
type Encoder interface {
	// Encode appends the encoded form of src to dst, and returns dst.
	Encode(dst []byte, src []byte) ([]byte, error)
}

// A MatchEncoder writes data in a storage format using an LZ77 parse found
// elsewhere, such as the back-references recorded while inflating it. This
// skips the match search.
type MatchEncoder interface {
	// EncodeMatches appends the encoded form of src, as described by
	// matches, to dst, and returns dst.
	EncodeMatches(dst []byte, src []byte, matches []Match) ([]byte, error)
}

// Window returns the part of a parse that covers src[start:end]. Matches
// that straddle start or end are cut at the boundary, which is safe since a
// match copies one byte at a time. A match (or piece of one) that is
// shorter than minLength, or that copies from before start, becomes
// literals. Bytes past the end of the parse are treated as literals too.
func Window(matches []Match, start, end, minLength int) []Match {
	var out []Match
	lit := 0
	addLiterals := func(from, to int) {
		if from < start {
			from = start
		}
		if to > end {
			to = end
		}
		if to > from {
			lit += to - from
		}
	}

	pos := 0
	for _, m := range matches {
		if pos >= end {
			break
		}
		addLiterals(pos, pos+m.Unmatched)
		pos += m.Unmatched
		if m.Length == 0 {
			continue
		}
		from, to := pos, pos+m.Length
		if from < start {
			from = start
		}
		if to > end {
			to = end
		}
		switch {
		case to <= from:
		case to-from >= minLength && from-m.Distance >= start:
			out = append(out, Match{Unmatched: lit, Length: to - from, Distance: m.Distance})
			lit = 0
		default:
			lit += to - from
		}
		pos += m.Length
	}
	addLiterals(pos, end)

	if lit > 0 {
		out = append(out, Match{Unmatched: lit})
	}
	return out
}

// NopEncoder stores the raster as is.
type NopEncoder struct{}

func (NopEncoder) Encode(dst []byte, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// A Writer encodes rasters with Encoder and writes them to Dest.
type Writer struct {
	Dest    io.Writer
	Encoder Encoder

	buf []byte
}

// WriteRaster encodes pix and writes the result to w.Dest.
func (w *Writer) WriteRaster(pix []byte) error {
	e := w.Encoder
	if e == nil {
		e = NopEncoder{}
	}
	var err error
	w.buf, err = e.Encode(w.buf[:0], pix)
	if err != nil {
		return errors.Wrap(err, "error encoding raster")
	}
	if _, err := w.Dest.Write(w.buf); err != nil {
		return errors.Wrap(err, "error writing raster")
	}
	return nil
}

// WriteParsed writes src, whose LZ77 parse is matches. If w.Encoder is a
// MatchEncoder, it gets to reuse the parse.
func (w *Writer) WriteParsed(src []byte, matches []Match) error {
	me, ok := w.Encoder.(MatchEncoder)
	if !ok {
		return w.WriteRaster(src)
	}
	var err error
	w.buf, err = me.EncodeMatches(w.buf[:0], src, matches)
	if err != nil {
		return errors.Wrap(err, "error encoding raster")
	}
	if _, err := w.Dest.Write(w.buf); err != nil {
		return errors.Wrap(err, "error writing raster")
	}
	return nil
}

// Reset discards the internal buffer and switches to a new destination.
func (w *Writer) Reset(dest io.Writer) {
	w.Dest = dest
	w.buf = w.buf[:0]
}
