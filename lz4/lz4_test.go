package lz4

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/andybalholm/unpack"
	"github.com/andybalholm/unpack/flate"
	kflate "github.com/klauspost/compress/flate"
	"github.com/pierrec/lz4/v4"
)

// testRaster returns n bytes that look like 8-bit RGB image data: smooth
// gradients with some noise.
func testRaster(n int) []byte {
	r := rand.New(rand.NewSource(1))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i / 3 % 256 / 4 * (i%3 + 1))
		if r.Intn(16) == 0 {
			b[i]++
		}
	}
	return b
}

// deflateParse compresses data and inflates it again with tracing on, to
// get a parse like the ones recorded while decoding a PNG.
func deflateParse(t testing.TB, data []byte) []unpack.Match {
	t.Helper()
	var b bytes.Buffer
	w, err := kflate.NewWriter(&b, kflate.BestCompression)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(data)
	w.Close()

	d := flate.Decompressor{Trace: true}
	out, err := d.Decompress(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("inflated data does not match")
	}
	return d.Matches()
}

func readFrame(t *testing.T, compressed []byte) []byte {
	t.Helper()
	decompressed, err := io.ReadAll(lz4.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		t.Fatal(err)
	}
	return decompressed
}

func TestBlockEncode(t *testing.T) {
	data := testRaster(100000)
	var be BlockEncoder
	compressed := be.Encode(nil, data, unpack.Window(deflateParse(t, data), 0, len(data), minMatch))

	decompressed := make([]byte, len(data))
	n, err := lz4.UncompressBlock(compressed, decompressed)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Fatalf("Got %d bytes, wanted %d", n, len(data))
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("Decompressed output does not match")
	}
}

func TestBlockEncodeShort(t *testing.T) {
	// Too short for any match to be kept.
	data := []byte("abcabcabcab")
	matches := []unpack.Match{{Unmatched: 3, Length: 8, Distance: 3}}
	var be BlockEncoder
	compressed := be.Encode(nil, data, matches)
	decompressed := make([]byte, len(data))
	n, err := lz4.UncompressBlock(compressed, decompressed)
	if err != nil {
		t.Fatal(err)
	}
	if string(decompressed[:n]) != string(data) {
		t.Fatalf("got %q", decompressed[:n])
	}
}

func TestFrameEncode(t *testing.T) {
	data := testRaster(300000)
	for level := 0; level <= 9; level += 3 {
		compressed, err := NewEncoder(level).Encode(nil, data)
		if err != nil {
			t.Fatal(err)
		}
		if len(compressed) >= len(data) {
			t.Errorf("level %d: no compression (%d bytes)", level, len(compressed))
		}
		if !bytes.Equal(readFrame(t, compressed), data) {
			t.Fatalf("level %d: Decompressed output does not match", level)
		}
	}
}

func TestFrameEncodeIncompressible(t *testing.T) {
	data := make([]byte, 5000)
	rand.New(rand.NewSource(2)).Read(data)
	compressed, err := NewEncoder(0).Encode([]byte("prefix"), data)
	if err != nil {
		t.Fatal(err)
	}
	if string(compressed[:6]) != "prefix" {
		t.Fatal("dst was not kept")
	}
	if !bytes.Equal(readFrame(t, compressed[6:]), data) {
		t.Fatal("Decompressed output does not match")
	}
}

func TestFrameEncodeEmpty(t *testing.T) {
	compressed, err := NewEncoder(0).Encode(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := readFrame(t, compressed); len(got) != 0 {
		t.Fatalf("got %d bytes", len(got))
	}
}

func TestBadLevel(t *testing.T) {
	if _, err := NewEncoder(10).Encode(nil, []byte("x")); err == nil {
		t.Error("no error for level 10")
	}
}

func TestFrameEncodeMatches(t *testing.T) {
	// More than one block, so that some matches are cut at the boundary.
	data := testRaster(maxBlockSize + 200000)
	var fe FrameEncoder
	compressed, err := fe.EncodeMatches(nil, data, deflateParse(t, data))
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed to %d bytes, from %d", len(compressed), len(data))
	}
	if !bytes.Equal(readFrame(t, compressed), data) {
		t.Fatal("Decompressed output does not match")
	}
}

func TestEncodeMatchesBadDistance(t *testing.T) {
	var fe FrameEncoder
	data := make([]byte, 100000)
	_, err := fe.EncodeMatches(nil, data, []unpack.Match{{Unmatched: 1, Length: 99999, Distance: 70000}})
	if err == nil {
		t.Error("no error for a distance past 65535")
	}
}

func BenchmarkEncode(b *testing.B) {
	data := testRaster(1 << 20)
	fe := NewEncoder(0)
	buf, _ := fe.Encode(nil, data)
	b.ReportMetric(float64(len(data))/float64(len(buf)), "ratio")
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, _ = fe.Encode(buf[:0], data)
	}
}

func BenchmarkEncodeMatches(b *testing.B) {
	data := testRaster(1 << 20)
	matches := deflateParse(b, data)
	var fe FrameEncoder
	buf, _ := fe.EncodeMatches(nil, data, matches)
	b.ReportMetric(float64(len(data))/float64(len(buf)), "ratio")
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, _ = fe.EncodeMatches(buf[:0], data, matches)
	}
}
