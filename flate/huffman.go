package flate

// A huffman is a canonical prefix code, built from a list of code lengths
// indexed by symbol.
type huffman struct {
	count   [maxCodeBits + 1]uint16 // number of codes of each length; count[0] is unused
	symbols []uint16                // symbols in canonical order: by length, then value
	lengths []uint8
}

// A huffCode is the bit pattern assigned to one symbol. The code is read
// most significant bit first.
type huffCode struct {
	code uint16
	len  uint8
}

// newHuffman builds the canonical code for lengths. Over-subscribed length
// sets are rejected. Incomplete sets are allowed; a stream that uses one of
// the missing codes fails in decode.
func newHuffman(lengths []uint8) (*huffman, error) {
	h := &huffman{lengths: append([]uint8(nil), lengths...)}
	for sym, l := range lengths {
		if l > maxCodeBits {
			return nil, newError(ErrInvalidHuffmanCode, 0, "symbol %d has code length %d", sym, l)
		}
		if l != 0 {
			h.count[l]++
		}
	}

	left := 1
	for l := 1; l <= maxCodeBits; l++ {
		left <<= 1
		left -= int(h.count[l])
		if left < 0 {
			return nil, newError(ErrInvalidHuffmanCode, 0, "over-subscribed code at length %d", l)
		}
	}

	var offs [maxCodeBits + 2]int
	for l := 1; l <= maxCodeBits; l++ {
		offs[l+1] = offs[l] + int(h.count[l])
	}
	h.symbols = make([]uint16, offs[maxCodeBits+1])
	for sym, l := range lengths {
		if l != 0 {
			h.symbols[offs[l]] = uint16(sym)
			offs[l]++
		}
	}
	return h, nil
}

// codes returns the code assigned to each symbol, following RFC 1951
// section 3.2.2. Unused symbols get a zero huffCode.
func (h *huffman) codes() []huffCode {
	var next [maxCodeBits + 1]uint16
	code := uint16(0)
	for l := 1; l <= maxCodeBits; l++ {
		// count[0] is always 0, so the first code of length 1 is 0.
		code = (code + h.count[l-1]) << 1
		next[l] = code
	}

	out := make([]huffCode, len(h.lengths))
	for sym, l := range h.lengths {
		if l == 0 {
			continue
		}
		out[sym] = huffCode{code: next[l], len: l}
		next[l]++
	}
	return out
}

// decode reads one symbol from br. Bits are accumulated most significant
// first, and after each bit the partial code is compared with the range of
// codes of that length.
func (h *huffman) decode(br *bitReader) (int, error) {
	start := br.offset()
	code := 0  // bits read so far
	first := 0 // first code of the current length
	index := 0 // index in symbols of the first code of the current length
	for l := 1; l <= maxCodeBits; l++ {
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		code |= int(bit)
		count := int(h.count[l])
		if code-first < count {
			return int(h.symbols[index+code-first]), nil
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	return 0, newError(ErrInvalidHuffmanCode, start, "no code of length <= %d matches", maxCodeBits)
}
