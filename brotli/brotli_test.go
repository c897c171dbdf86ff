package brotli

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/andybalholm/brotli"
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
	data := testRaster(200000)
	for _, level := range []int{0, 1, 5, 9, 11} {
		compressed, err := NewEncoder(level).Encode([]byte("prefix"), data)
		if err != nil {
			t.Fatal(err)
		}
		if string(compressed[:6]) != "prefix" {
			t.Fatalf("level %d: dst was not kept", level)
		}
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(compressed[6:])))
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Fatalf("level %d: decompressed output doesn't match", level)
		}
	}
}

func TestEncodeHelloHello(t *testing.T) {
	hello := []byte("HelloHelloHelloHelloHelloHelloHelloHelloHelloHello, world")
	compressed, err := NewEncoder(5).Encode(nil, hello)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, hello) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestBadLevel(t *testing.T) {
	for _, level := range []int{-1, 12} {
		if _, err := NewEncoder(level).Encode(nil, []byte("x")); err == nil {
			t.Errorf("no error for level %d", level)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	data := testRaster(1 << 20)
	e := NewEncoder(5)
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
