package zstd

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/zstd"
)

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

func TestEncode(t *testing.T) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	data := testRaster(500000)
	for _, level := range []int{0, 1, 3, 9, 19} {
		e := NewEncoder(level)
		compressed, err := e.Encode([]byte("prefix"), data)
		if err != nil {
			t.Fatal(err)
		}
		if string(compressed[:6]) != "prefix" {
			t.Fatalf("level %d: dst was not kept", level)
		}
		if len(compressed) >= len(data) {
			t.Errorf("level %d: no compression", level)
		}
		decompressed, err := dec.DecodeAll(compressed[6:], nil)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Fatalf("level %d: decompressed output doesn't match", level)
		}

		// The encoder is reused for the next raster.
		again, err := e.Encode(nil, data[:1000])
		if err != nil {
			t.Fatal(err)
		}
		decompressed, err = dec.DecodeAll(again, nil)
		if err != nil || !bytes.Equal(decompressed, data[:1000]) {
			t.Fatalf("level %d: second raster: %v", level, err)
		}
	}
}

func TestBadLevel(t *testing.T) {
	if _, err := NewEncoder(23).Encode(nil, []byte("x")); err == nil {
		t.Error("no error for level 23")
	}
}

func BenchmarkEncode(b *testing.B) {
	data := testRaster(1 << 20)
	e := NewEncoder(0)
	buf, err := e.Encode(nil, data)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportMetric(float64(len(data))/float64(len(buf)), "ratio")
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, _ = e.Encode(buf[:0], data)
	}
}
