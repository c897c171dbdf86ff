package flate

// A bitReader reads a byte slice as a stream of bits in DEFLATE order: each
// byte is consumed starting from its least significant bit.
type bitReader struct {
	src []byte
	pos int  // index of the current byte
	bit uint // bits of src[pos] already consumed, 0-7
}

func newBitReader(src []byte) *bitReader {
	return &bitReader{src: src}
}

// offset returns the index of the byte holding the next unread bit.
func (br *bitReader) offset() int64 {
	return int64(br.pos)
}

// remaining returns the number of unread bits.
func (br *bitReader) remaining() int {
	if br.pos >= len(br.src) {
		return 0
	}
	return (len(br.src)-br.pos)*8 - int(br.bit)
}

func (br *bitReader) atEnd() bool {
	return br.remaining() == 0
}

// readBits returns the next n bits (n <= 32). The first bit read becomes the
// least significant bit of the result.
func (br *bitReader) readBits(n uint) (uint32, error) {
	if int(n) > br.remaining() {
		return 0, newError(ErrUnexpectedEndOfStream, br.offset(), "need %d bits, have %d", n, br.remaining())
	}
	var v uint32
	for got := uint(0); got < n; {
		take := 8 - br.bit
		if take > n-got {
			take = n - got
		}
		b := uint32(br.src[br.pos]>>br.bit) & (1<<take - 1)
		v |= b << got
		got += take
		br.bit += take
		if br.bit == 8 {
			br.bit = 0
			br.pos++
		}
	}
	return v, nil
}

func (br *bitReader) readBit() (uint32, error) {
	if br.pos >= len(br.src) {
		return 0, newError(ErrUnexpectedEndOfStream, br.offset(), "need 1 bit, have 0")
	}
	b := uint32(br.src[br.pos]>>br.bit) & 1
	br.bit++
	if br.bit == 8 {
		br.bit = 0
		br.pos++
	}
	return b, nil
}

// alignToByte discards the rest of a partially consumed byte.
func (br *bitReader) alignToByte() {
	if br.bit != 0 {
		br.bit = 0
		br.pos++
	}
}

// readAligned returns the next n whole bytes. The reader must be byte
// aligned. The returned slice aliases the input.
func (br *bitReader) readAligned(n int) ([]byte, error) {
	if br.bit != 0 {
		br.alignToByte()
	}
	if n > len(br.src)-br.pos {
		return nil, newError(ErrUnexpectedEndOfStream, br.offset(), "need %d bytes, have %d", n, len(br.src)-br.pos)
	}
	b := br.src[br.pos : br.pos+n]
	br.pos += n
	return b, nil
}
