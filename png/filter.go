package png

import (
	"fmt"

	"github.com/pkg/errors"
)

// Filter types, from the byte at the start of each scanline.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
)

// A FilterError reports a scanline with an unknown filter type.
type FilterError struct {
	Row  int
	Type uint8
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("png: invalid filter type %d in row %d", e.Type, e.Row)
}

func (e *FilterError) Unwrap() error {
	return ErrInvalidFilterType
}

// Unfilter reverses the scanline filters. src holds rows of 1+stride bytes,
// each a filter type followed by the filtered bytes; dst receives the
// reconstructed rows, stride bytes each, with the filter bytes dropped. The
// number of rows is len(dst)/stride. bpp is the filter's bytes per pixel.
func Unfilter(dst, src []byte, stride, bpp int) error {
	if stride <= 0 || bpp <= 0 {
		return errors.Errorf("png: bad stride %d or bytes per pixel %d", stride, bpp)
	}
	if bpp > stride {
		bpp = stride
	}
	rows := len(dst) / stride
	if len(src) < rows*(stride+1) {
		return errors.Wrapf(ErrFormat, "not enough pixel data: have %d bytes, need %d", len(src), rows*(stride+1))
	}

	// The row above the first one is all zeros.
	prev := make([]byte, stride)
	for y := 0; y < rows; y++ {
		line := src[y*(stride+1) : (y+1)*(stride+1)]
		ft, cdat := line[0], line[1:]
		cur := dst[y*stride : (y+1)*stride]

		switch ft {
		case ftNone:
			copy(cur, cdat)
		case ftSub:
			copy(cur[:bpp], cdat)
			for i := bpp; i < stride; i++ {
				cur[i] = cdat[i] + cur[i-bpp]
			}
		case ftUp:
			for i, p := range prev {
				cur[i] = cdat[i] + p
			}
		case ftAverage:
			for i := 0; i < bpp; i++ {
				cur[i] = cdat[i] + prev[i]/2
			}
			for i := bpp; i < stride; i++ {
				cur[i] = cdat[i] + uint8((int(cur[i-bpp])+int(prev[i]))/2)
			}
		case ftPaeth:
			for i := 0; i < bpp; i++ {
				cur[i] = cdat[i] + paeth(0, prev[i], 0)
			}
			for i := bpp; i < stride; i++ {
				cur[i] = cdat[i] + paeth(cur[i-bpp], prev[i], prev[i-bpp])
			}
		default:
			return &FilterError{Row: y, Type: ft}
		}
		prev = cur
	}
	return nil
}

// paeth returns whichever of a (left), b (up), and c (up-left) is closest
// to a + b - c. Ties go to a, then b.
func paeth(a, b, c uint8) uint8 {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
