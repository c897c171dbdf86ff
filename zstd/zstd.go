// Package zstd writes rasters as Zstandard frames.
package zstd

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// An Encoder implements the unpack.Encoder interface, writing each raster
// as a single Zstandard frame.
type Encoder struct {
	// Level is a zstd command-line style level, from 1 to 22. 0 means
	// the default.
	Level int

	enc *zstd.Encoder
}

// NewEncoder returns an Encoder at the given level.
func NewEncoder(level int) *Encoder {
	return &Encoder{Level: level}
}

func (e *Encoder) Encode(dst []byte, src []byte) ([]byte, error) {
	if e.enc == nil {
		if e.Level < 0 || e.Level > 22 {
			return dst, errors.Errorf("zstd: invalid level %d", e.Level)
		}
		level := zstd.SpeedDefault
		if e.Level > 0 {
			level = zstd.EncoderLevelFromZstd(e.Level)
		}
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(level),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return dst, errors.Wrap(err, "zstd: error creating encoder")
		}
		e.enc = enc
	}
	return e.enc.EncodeAll(src, dst), nil
}
