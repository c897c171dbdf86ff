// Package ppm writes decoded PNG images as binary Netpbm files: PPM (P6)
// for color images and PGM (P5) for grayscale.
package ppm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/andybalholm/unpack/png"
	"github.com/pkg/errors"
)

// ErrAlpha is returned for images with an alpha channel, which Netpbm
// cannot represent.
var ErrAlpha = errors.New("ppm: image has an alpha channel")

// Encode writes m to w. Paletted images are expanded to RGB. Sub-byte
// grayscale samples are written one per byte with maxval 2^depth - 1, and
// 16-bit samples keep their big-endian byte order with maxval 65535.
func Encode(w io.Writer, m *png.Image) error {
	bw := bufio.NewWriter(w)
	if err := encode(bw, m); err != nil {
		return err
	}
	return errors.Wrap(bw.Flush(), "error writing image")
}

// Append appends the encoded form of m to dst.
func Append(dst []byte, m *png.Image) ([]byte, error) {
	b := &appendWriter{buf: dst}
	if err := encode(b, m); err != nil {
		return dst, err
	}
	return b.buf, nil
}

type appendWriter struct {
	buf []byte
}

func (a *appendWriter) Write(p []byte) (int, error) {
	a.buf = append(a.buf, p...)
	return len(p), nil
}

func encode(w io.Writer, m *png.Image) error {
	h := m.Header
	var magic string
	maxval := 1<<h.BitDepth - 1

	switch h.ColorType {
	case png.Grayscale:
		magic = "P5"
	case png.Truecolor:
		magic = "P6"
	case png.Paletted:
		magic = "P6"
		maxval = 255
	case png.GrayscaleAlpha, png.TruecolorAlpha:
		return errors.Wrapf(ErrAlpha, "%v", h.ColorType)
	default:
		return errors.Errorf("ppm: color type %v", h.ColorType)
	}

	if _, err := fmt.Fprintf(w, "%s\n%d %d\n%d\n", magic, h.Width, h.Height, maxval); err != nil {
		return errors.Wrap(err, "error writing header")
	}

	row := make([]byte, 0, h.Width*3*2)
	for y := 0; y < h.Height; y++ {
		var err error
		row, err = convertRow(row[:0], m, y)
		if err != nil {
			return err
		}
		if _, err := w.Write(row); err != nil {
			return errors.Wrap(err, "error writing image")
		}
	}
	return nil
}

// convertRow appends the Netpbm samples for row y of m to dst.
func convertRow(dst []byte, m *png.Image, y int) ([]byte, error) {
	h := m.Header
	src := m.Row(y)
	if h.BitDepth >= 8 && h.ColorType != png.Paletted {
		return append(dst, src...), nil
	}

	depth := uint(h.BitDepth)
	mask := byte(1<<depth - 1)
	for x := 0; x < h.Width; x++ {
		bit := uint(x) * depth
		v := src[bit/8] >> (8 - depth - bit%8) & mask
		if h.ColorType != png.Paletted {
			dst = append(dst, v)
			continue
		}
		i := int(v) * 3
		if i+3 > len(m.Palette) {
			return dst, errors.Errorf("ppm: palette index %d out of range at (%d, %d)", v, x, y)
		}
		dst = append(dst, m.Palette[i:i+3]...)
	}
	return dst, nil
}
