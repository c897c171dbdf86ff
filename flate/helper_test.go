package flate

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/flate"
)

// bitWriter packs bits in DEFLATE order, for building test streams by hand.
type bitWriter struct {
	buf []byte
	n   uint // bits used in the last byte of buf
}

func (w *bitWriter) writeBit(b uint32) {
	if w.n == 0 {
		w.buf = append(w.buf, 0)
	}
	w.buf[len(w.buf)-1] |= byte(b&1) << w.n
	w.n = (w.n + 1) % 8
}

// writeBits writes the low n bits of v, least significant first.
func (w *bitWriter) writeBits(v uint32, n uint) {
	for i := uint(0); i < n; i++ {
		w.writeBit(v >> i)
	}
}

// writeCode writes a Huffman code, most significant bit first.
func (w *bitWriter) writeCode(c huffCode) {
	for i := int(c.len) - 1; i >= 0; i-- {
		w.writeBit(uint32(c.code >> uint(i)))
	}
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}

var (
	fixedLitCodes  = fixedLitTable.codes()
	fixedDistCodes = fixedDistTable.codes()
)

// fixedHeader starts a fixed Huffman block.
func (w *bitWriter) fixedHeader(final bool) {
	if final {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
	w.writeBits(blockFixed, 2)
}

func (w *bitWriter) literal(b byte) {
	w.writeCode(fixedLitCodes[b])
}

func (w *bitWriter) endOfBlock() {
	w.writeCode(fixedLitCodes[endOfBlock])
}

// match writes a length/distance pair with the fixed codes. DEFLATE can
// only express lengths 3 through 258 and distances 1 through 32768.
func (w *bitWriter) match(t testing.TB, length, distance int) {
	t.Helper()
	if length < 3 || length > 258 || distance < 1 || distance > 32768 {
		t.Fatalf("match <%d,%d> cannot be encoded", length, distance)
	}
	for i := len(lengthCodes) - 1; i >= 0; i-- {
		if int(lengthCodes[i].base) <= length {
			w.writeCode(fixedLitCodes[257+i])
			w.writeBits(uint32(length-int(lengthCodes[i].base)), uint(lengthCodes[i].extra))
			break
		}
	}
	for i := len(distanceCodes) - 1; i >= 0; i-- {
		if int(distanceCodes[i].base) <= distance {
			w.writeCode(fixedDistCodes[i])
			w.writeBits(uint32(distance-int(distanceCodes[i].base)), uint(distanceCodes[i].extra))
			break
		}
	}
}

// testData returns n bytes of compressible pseudo-text.
func testData(n int, seed int64) []byte {
	words := []string{
		"light ", "colours ", "prism ", "refraction ", "the ", "of ", "rays ",
		"Newton ", "\n", "and ", "Opticks ", "reflexions ", "inflexions ",
	}
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, 0, n+16)
	for len(b) < n {
		b = append(b, words[r.Intn(len(words))]...)
		if r.Intn(8) == 0 {
			b = append(b, byte(r.Intn(256)))
		}
	}
	return b[:n]
}

// compress deflates data with klauspost/compress at the given level.
func compress(t testing.TB, data []byte, level int) []byte {
	t.Helper()
	b := new(bytes.Buffer)
	w, err := flate.NewWriter(b, level)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}
