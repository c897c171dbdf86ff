// Package zlib reads the zlib container (RFC 1950) that wraps the DEFLATE
// data in a PNG file.
package zlib

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/andybalholm/unpack"
	"github.com/andybalholm/unpack/flate"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedMethod = errors.New("zlib: unsupported compression method")
	ErrInvalidHeader     = errors.New("zlib: invalid header")
	ErrPresetDictionary  = errors.New("zlib: preset dictionary not supported")
	ErrChecksumMismatch  = errors.New("zlib: checksum mismatch")
)

const (
	headerSize  = 2
	trailerSize = 4

	methodDeflate = 8
	maxWindowLog  = 7 // CINFO; the window is 1 << (CINFO+8) bytes
)

// A ChecksumError reports an Adler-32 trailer that does not match the
// decompressed data.
type ChecksumError struct {
	Expected uint32 // from the trailer
	Actual   uint32 // computed
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("zlib: checksum mismatch: trailer has %08x, data has %08x", e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// A ChecksumPolicy says what to do when the Adler-32 trailer is wrong.
type ChecksumPolicy int

const (
	// RejectBadChecksum fails with a *ChecksumError and returns no data.
	RejectBadChecksum ChecksumPolicy = iota

	// AcceptBadChecksum logs a warning and returns the data anyway.
	AcceptBadChecksum
)

func (p ChecksumPolicy) String() string {
	switch p {
	case RejectBadChecksum:
		return "reject"
	case AcceptBadChecksum:
		return "accept"
	}
	return fmt.Sprintf("ChecksumPolicy(%d)", int(p))
}

// UnmarshalText accepts "reject" or "accept".
func (p *ChecksumPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "reject", "":
		*p = RejectBadChecksum
	case "accept":
		*p = AcceptBadChecksum
	default:
		return errors.Errorf("unknown checksum policy %q", text)
	}
	return nil
}

// A Header is the decoded form of the two-byte zlib header.
type Header struct {
	Method uint8 // CM; always 8 (deflate) for a valid header
	Window int   // LZ77 window size in bytes, from CINFO
	Level  uint8 // FLEVEL, a hint about how the data was compressed
}

// ReadHeader checks and decodes the header at the start of src.
func ReadHeader(src []byte) (Header, error) {
	if len(src) < headerSize {
		return Header{}, &flate.Error{Kind: flate.ErrUnexpectedEndOfStream, Detail: "zlib header"}
	}
	cmf, flg := src[0], src[1]

	if cmf&0x0f != methodDeflate {
		return Header{}, errors.Wrapf(ErrUnsupportedMethod, "CM %d", cmf&0x0f)
	}
	cinfo := cmf >> 4
	if cinfo > maxWindowLog {
		return Header{}, errors.Wrapf(ErrInvalidHeader, "CINFO %d", cinfo)
	}
	if (uint(cmf)<<8|uint(flg))%31 != 0 {
		return Header{}, errors.Wrapf(ErrInvalidHeader, "FCHECK: %02x%02x is not a multiple of 31", cmf, flg)
	}
	if flg&0x20 != 0 {
		return Header{}, ErrPresetDictionary
	}
	return Header{
		Method: methodDeflate,
		Window: 1 << (cinfo + 8),
		Level:  flg >> 6,
	}, nil
}

// A Decompressor unwraps and inflates zlib streams. The zero value rejects
// bad checksums and has no output limit.
type Decompressor struct {
	Checksum ChecksumPolicy

	// MaxOutput is passed on to the flate.Decompressor.
	MaxOutput int

	// Logger receives the warning for an accepted bad checksum. If it is
	// nil, the standard logrus logger is used.
	Logger logrus.FieldLogger

	// Trace is passed on to the flate.Decompressor.
	Trace bool

	matches []unpack.Match
}

// Decompress inflates a zlib stream with a default Decompressor.
func Decompress(src []byte) ([]byte, error) {
	var d Decompressor
	return d.Decompress(src)
}

// Decompress checks the header, inflates the DEFLATE data between the header
// and the last four bytes, and verifies the Adler-32 trailer.
func (d *Decompressor) Decompress(src []byte) ([]byte, error) {
	if len(src) < headerSize+trailerSize {
		return nil, &flate.Error{
			Kind:   flate.ErrUnexpectedEndOfStream,
			Offset: int64(len(src)),
			Detail: fmt.Sprintf("zlib stream of %d bytes", len(src)),
		}
	}
	if _, err := ReadHeader(src); err != nil {
		return nil, err
	}

	f := flate.Decompressor{MaxOutput: d.MaxOutput, Trace: d.Trace}
	out, err := f.Decompress(src[headerSize : len(src)-trailerSize])
	d.matches = f.Matches()
	if err != nil {
		// Report positions relative to the whole stream.
		var fe *flate.Error
		if errors.As(err, &fe) {
			fe.Offset += headerSize
		}
		return nil, err
	}

	expected := binary.BigEndian.Uint32(src[len(src)-trailerSize:])
	if actual := adler32(out); actual != expected {
		cerr := &ChecksumError{Expected: expected, Actual: actual}
		if d.Checksum != AcceptBadChecksum {
			return nil, cerr
		}
		d.logger().WithFields(logrus.Fields{
			"expected": fmt.Sprintf("%08x", expected),
			"actual":   fmt.Sprintf("%08x", actual),
			"size":     len(out),
		}).Warn("Ignoring zlib checksum mismatch")
	}
	return out, nil
}

// Matches returns the LZ77 parse recorded by the last call to Decompress,
// when Trace is set.
func (d *Decompressor) Matches() []unpack.Match {
	return d.matches
}

func (d *Decompressor) logger() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}
