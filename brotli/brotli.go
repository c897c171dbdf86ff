// Package brotli writes rasters as Brotli streams.
package brotli

import (
	"bytes"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
)

// An Encoder implements the unpack.Encoder interface, writing each raster
// as a complete Brotli stream.
type Encoder struct {
	// Level is from 0 (fastest) to 11 (smallest).
	Level int
}

// NewEncoder returns an Encoder at the given level.
func NewEncoder(level int) *Encoder {
	return &Encoder{Level: level}
}

func (e *Encoder) Encode(dst []byte, src []byte) ([]byte, error) {
	if e.Level < brotli.BestSpeed || e.Level > brotli.BestCompression {
		return dst, errors.Errorf("brotli: invalid level %d", e.Level)
	}
	b := bytes.NewBuffer(dst)
	w := brotli.NewWriterLevel(b, e.Level)
	if _, err := w.Write(src); err != nil {
		return dst, errors.Wrap(err, "brotli: error compressing raster")
	}
	if err := w.Close(); err != nil {
		return dst, errors.Wrap(err, "brotli: error compressing raster")
	}
	return b.Bytes(), nil
}
