package png

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// pngFile assembles a PNG file from chunks, computing the CRCs.
type pngFile struct {
	bytes.Buffer
}

func newPNGFile() *pngFile {
	f := new(pngFile)
	f.WriteString(signature)
	return f
}

func (f *pngFile) chunk(typ string, data []byte) *pngFile {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	f.Write(n[:])
	f.WriteString(typ)
	f.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	f.Write(n[:])
	return f
}

// idat splits data into IDAT chunks of at most size bytes.
func (f *pngFile) idat(data []byte, size int) *pngFile {
	for len(data) > size {
		f.chunk("IDAT", data[:size])
		data = data[size:]
	}
	return f.chunk("IDAT", data)
}

func (f *pngFile) iend() []byte {
	f.chunk("IEND", nil)
	return f.Bytes()
}

func ihdr(width, height int, depth uint8, ct ColorType, interlace uint8) []byte {
	b := make([]byte, 13)
	binary.BigEndian.PutUint32(b[0:], uint32(width))
	binary.BigEndian.PutUint32(b[4:], uint32(height))
	b[8] = depth
	b[9] = uint8(ct)
	b[12] = interlace
	return b
}

func zlibCompress(t testing.TB, data []byte) []byte {
	t.Helper()
	b := new(bytes.Buffer)
	w, err := zlib.NewWriterLevel(b, zlib.BestCompression)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(data)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

// refPaeth is the predictor exactly as the PNG specification writes it.
func refPaeth(a, b, c uint8) uint8 {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := p-int(a), p-int(b), p-int(c)
	if pa < 0 {
		pa = -pa
	}
	if pb < 0 {
		pb = -pb
	}
	if pc < 0 {
		pc = -pc
	}
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

// filter applies the scanline filters to raw, which holds rows of stride
// bytes, using types[y%len(types)] for row y.
func filter(raw []byte, stride, bpp int, types []uint8) []byte {
	rows := len(raw) / stride
	out := make([]byte, 0, rows*(stride+1))
	prev := make([]byte, stride)
	for y := 0; y < rows; y++ {
		cur := raw[y*stride : (y+1)*stride]
		ft := types[y%len(types)]
		out = append(out, ft)
		for i, x := range cur {
			var a, c uint8
			if i >= bpp {
				a, c = cur[i-bpp], prev[i-bpp]
			}
			b := prev[i]
			switch ft {
			case ftNone:
				out = append(out, x)
			case ftSub:
				out = append(out, x-a)
			case ftUp:
				out = append(out, x-b)
			case ftAverage:
				out = append(out, x-uint8((int(a)+int(b))/2))
			case ftPaeth:
				out = append(out, x-refPaeth(a, b, c))
			}
		}
		prev = cur
	}
	return out
}
