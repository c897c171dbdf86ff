package flate

import (
	"testing"

	"github.com/pkg/errors"
)

func TestReadBitsLSBFirst(t *testing.T) {
	br := newBitReader([]byte{0xb5, 0x3c}) // 1011_0101, 0011_1100

	if v, err := br.readBits(1); err != nil || v != 1 {
		t.Fatalf("readBits(1) = %d, %v; want 1", v, err)
	}
	if v, err := br.readBits(2); err != nil || v != 2 {
		t.Fatalf("readBits(2) = %d, %v; want 2", v, err)
	}
	if v, err := br.readBits(3); err != nil || v != 6 {
		t.Fatalf("readBits(3) = %d, %v; want 6", v, err)
	}
	// Crosses the byte boundary: bits 6-7 of 0xb5 (0b10) are the low bits,
	// bits 0-3 of 0x3c (0b1100) the high bits.
	if v, err := br.readBits(6); err != nil || v != 0b110010 {
		t.Fatalf("readBits(6) = %#b, %v; want 0b110010", v, err)
	}
	if br.offset() != 1 {
		t.Errorf("offset = %d, want 1", br.offset())
	}
	if v, err := br.readBits(4); err != nil || v != 0x3 {
		t.Fatalf("readBits(4) = %#x, %v; want 0x3", v, err)
	}
	if !br.atEnd() {
		t.Error("reader should be at end")
	}
}

func TestReadBitsWide(t *testing.T) {
	br := newBitReader([]byte{0x78, 0x56, 0x34, 0x12, 0xff})
	v, err := br.readBits(32)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x12345678 {
		t.Errorf("readBits(32) = %#x, want 0x12345678", v)
	}
	if v, _ := br.readBits(0); v != 0 {
		t.Errorf("readBits(0) = %d, want 0", v)
	}
	if br.remaining() != 8 {
		t.Errorf("remaining = %d, want 8", br.remaining())
	}
}

func TestAlignToByte(t *testing.T) {
	br := newBitReader([]byte{0xff, 0xaa, 0xbb})
	br.readBits(3)
	br.alignToByte()
	if br.offset() != 1 || br.bit != 0 {
		t.Fatalf("after align: pos %d bit %d, want pos 1 bit 0", br.pos, br.bit)
	}
	// Aligning an aligned reader is a no-op.
	br.alignToByte()
	if br.offset() != 1 {
		t.Fatalf("second align moved to %d", br.offset())
	}
	b, err := br.readAligned(2)
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != 0xaa || b[1] != 0xbb {
		t.Errorf("readAligned = %x, want aabb", b)
	}
	if !br.atEnd() {
		t.Error("reader should be at end")
	}
}

func TestReadPastEnd(t *testing.T) {
	br := newBitReader([]byte{0x01})
	if _, err := br.readBits(7); err != nil {
		t.Fatal(err)
	}
	_, err := br.readBits(2)
	if !errors.Is(err, ErrUnexpectedEndOfStream) {
		t.Fatalf("readBits past end: got %v, want ErrUnexpectedEndOfStream", err)
	}
	var fe *Error
	if !errors.As(err, &fe) || fe.Offset != 0 {
		t.Errorf("error = %#v, want *Error at offset 0", err)
	}

	// A failed read consumes nothing.
	if v, err := br.readBit(); err != nil || v != 0 {
		t.Errorf("readBit = %d, %v; want 0, nil", v, err)
	}
	if _, err := br.readBit(); !errors.Is(err, ErrUnexpectedEndOfStream) {
		t.Errorf("readBit at end: got %v", err)
	}
	if _, err := br.readAligned(1); !errors.Is(err, ErrUnexpectedEndOfStream) {
		t.Errorf("readAligned at end: got %v", err)
	}
}
