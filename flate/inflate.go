// Package flate implements a DEFLATE (RFC 1951) decompressor for streams
// that are held entirely in memory.
package flate

import (
	"encoding/binary"

	"github.com/andybalholm/unpack"
)

// state is the position of the decoder in the block structure.
type state uint8

const (
	stateBlockHeader   state = iota // reading BFINAL and BTYPE
	stateStoredHeader               // reading LEN and NLEN
	stateStoredBody                 // copying a stored block
	stateFixedHeader                // selecting the fixed Huffman tables
	stateDynamicHeader              // reading the code lengths of a dynamic block
	stateHuffmanBody                // decoding literal/length and distance symbols
	stateDone
)

func (s state) String() string {
	switch s {
	case stateBlockHeader:
		return "block header"
	case stateStoredHeader:
		return "stored header"
	case stateStoredBody:
		return "stored body"
	case stateFixedHeader:
		return "fixed header"
	case stateDynamicHeader:
		return "dynamic header"
	case stateHuffmanBody:
		return "huffman body"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// A Decompressor inflates a complete DEFLATE stream. The zero value is
// ready to use. A Decompressor may be reused, but not concurrently.
type Decompressor struct {
	// MaxOutput is the largest output the Decompressor will produce; a
	// stream that would inflate to more fails with ErrOutputLimit.
	// 0 means no limit.
	MaxOutput int

	// Trace records every back-reference, so that Matches can return the
	// LZ77 parse of the stream.
	Trace bool

	br     *bitReader
	out    []byte
	state  state
	final  bool // the current block is the last one
	stored int  // length of the current stored block

	lit, dist *huffman

	matches   []unpack.Match
	unmatched int
	blocks    int
}

// Decompress inflates src with a default Decompressor.
func Decompress(src []byte) ([]byte, error) {
	var d Decompressor
	return d.Decompress(src)
}

// Decompress inflates the DEFLATE stream in src. Decoding stops after the
// block marked final; any bytes after it are ignored. On error no output is
// returned, since nothing after a corrupt symbol can be trusted.
func (d *Decompressor) Decompress(src []byte) ([]byte, error) {
	d.reset(src)
	for d.state != stateDone {
		if err := d.step(); err != nil {
			d.out = nil
			d.matches = nil
			return nil, err
		}
	}
	if d.Trace && d.unmatched > 0 {
		d.matches = append(d.matches, unpack.Match{Unmatched: d.unmatched})
		d.unmatched = 0
	}
	out := d.out
	d.out = nil
	return out, nil
}

// Matches returns the back-references found by the last call to Decompress,
// when Trace is set.
func (d *Decompressor) Matches() []unpack.Match {
	return d.matches
}

// InputOffset returns how many bytes of input the last call to Decompress
// used, counting a partially used final byte.
func (d *Decompressor) InputOffset() int {
	if d.br == nil {
		return 0
	}
	if d.br.bit != 0 {
		return d.br.pos + 1
	}
	return d.br.pos
}

// Blocks returns the number of blocks decoded by the last call to
// Decompress.
func (d *Decompressor) Blocks() int {
	return d.blocks
}

func (d *Decompressor) reset(src []byte) {
	d.br = newBitReader(src)
	capacity := 4 * len(src)
	if d.MaxOutput > 0 && capacity > d.MaxOutput {
		capacity = d.MaxOutput
	}
	d.out = make([]byte, 0, capacity)
	d.state = stateBlockHeader
	d.final = false
	d.stored = 0
	d.lit, d.dist = nil, nil
	d.matches = nil
	d.unmatched = 0
	d.blocks = 0
}

// step advances the decoder by one unit of work in the current state.
func (d *Decompressor) step() error {
	switch d.state {
	case stateBlockHeader:
		return d.readBlockHeader()
	case stateStoredHeader:
		return d.readStoredHeader()
	case stateStoredBody:
		return d.copyStored()
	case stateFixedHeader:
		d.lit, d.dist = fixedLitTable, fixedDistTable
		d.state = stateHuffmanBody
		return nil
	case stateDynamicHeader:
		return d.readDynamicHeader()
	case stateHuffmanBody:
		return d.decodeSymbol()
	}
	return nil
}

func (d *Decompressor) readBlockHeader() error {
	start := d.br.offset()
	v, err := d.br.readBits(3)
	if err != nil {
		return err
	}
	d.final = v&1 == 1
	d.blocks++
	switch typ := v >> 1; typ {
	case blockStored:
		d.state = stateStoredHeader
	case blockFixed:
		d.state = stateFixedHeader
	case blockDynamic:
		d.state = stateDynamicHeader
	default:
		return newError(ErrInvalidBlockType, start, "BTYPE %d in block %d", typ, d.blocks)
	}
	return nil
}

func (d *Decompressor) endBlock() {
	if d.final {
		d.state = stateDone
	} else {
		d.state = stateBlockHeader
	}
}

func (d *Decompressor) readStoredHeader() error {
	d.br.alignToByte()
	start := d.br.offset()
	header, err := d.br.readAligned(4)
	if err != nil {
		return err
	}
	length := binary.LittleEndian.Uint16(header)
	nlength := binary.LittleEndian.Uint16(header[2:])
	if nlength != ^length {
		return newError(ErrLengthMismatch, start, "LEN %#04x, NLEN %#04x, want NLEN %#04x", length, nlength, ^length)
	}
	d.stored = int(length)
	d.state = stateStoredBody
	return nil
}

func (d *Decompressor) copyStored() error {
	if err := d.checkLimit(d.stored); err != nil {
		return err
	}
	b, err := d.br.readAligned(d.stored)
	if err != nil {
		return err
	}
	d.out = append(d.out, b...)
	d.unmatched += len(b)
	d.stored = 0
	d.endBlock()
	return nil
}

func (d *Decompressor) readDynamicHeader() error {
	start := d.br.offset()
	v, err := d.br.readBits(14)
	if err != nil {
		return err
	}
	nlit := int(v&0x1f) + 257
	ndist := int(v>>5&0x1f) + 1
	nclen := int(v>>10) + 4
	if nlit > maxNumLitSyms || ndist > maxNumDistSyms {
		return newError(ErrInvalidHuffmanCode, start, "HLIT %d, HDIST %d out of range", nlit, ndist)
	}

	var clens [numCodeLengthSyms]uint8
	for i := 0; i < nclen; i++ {
		l, err := d.br.readBits(3)
		if err != nil {
			return err
		}
		clens[codeLengthOrder[i]] = uint8(l)
	}
	clTable, err := newHuffman(clens[:])
	if err != nil {
		return atOffset(err, start)
	}

	lengths := make([]uint8, nlit+ndist)
	for i := 0; i < len(lengths); {
		symStart := d.br.offset()
		sym, err := clTable.decode(d.br)
		if err != nil {
			return err
		}
		if sym < 16 {
			lengths[i] = uint8(sym)
			i++
			continue
		}

		var val uint8
		var rep int
		switch sym {
		case 16:
			if i == 0 {
				return newError(ErrInvalidHuffmanCode, symStart, "repeat with no previous code length")
			}
			val = lengths[i-1]
			x, err := d.br.readBits(2)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		case 17:
			x, err := d.br.readBits(3)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		default:
			x, err := d.br.readBits(7)
			if err != nil {
				return err
			}
			rep = 11 + int(x)
		}
		if i+rep > len(lengths) {
			return newError(ErrInvalidHuffmanCode, symStart, "repeat of %d at code length %d overruns %d lengths", rep, i, len(lengths))
		}
		for ; rep > 0; rep-- {
			lengths[i] = val
			i++
		}
	}

	if lengths[endOfBlock] == 0 {
		return newError(ErrInvalidHuffmanCode, start, "no code for end of block")
	}
	if d.lit, err = newHuffman(lengths[:nlit]); err != nil {
		return atOffset(err, start)
	}
	if d.dist, err = newHuffman(lengths[nlit:]); err != nil {
		return atOffset(err, start)
	}
	d.state = stateHuffmanBody
	return nil
}

// decodeSymbol decodes one literal, end-of-block marker, or length/distance
// pair.
func (d *Decompressor) decodeSymbol() error {
	start := d.br.offset()
	sym, err := d.lit.decode(d.br)
	if err != nil {
		return err
	}

	switch {
	case sym < endOfBlock:
		if err := d.checkLimit(1); err != nil {
			return err
		}
		d.out = append(d.out, byte(sym))
		d.unmatched++
		return nil
	case sym == endOfBlock:
		d.endBlock()
		return nil
	case sym-257 >= len(lengthCodes):
		return newError(ErrInvalidHuffmanCode, start, "literal/length symbol %d", sym)
	}

	lc := lengthCodes[sym-257]
	extra, err := d.br.readBits(uint(lc.extra))
	if err != nil {
		return err
	}
	length := int(lc.base) + int(extra)

	dsym, err := d.dist.decode(d.br)
	if err != nil {
		return err
	}
	if dsym >= maxNumDistSyms {
		return newError(ErrInvalidHuffmanCode, start, "distance symbol %d", dsym)
	}
	dc := distanceCodes[dsym]
	extra, err = d.br.readBits(uint(dc.extra))
	if err != nil {
		return err
	}
	distance := int(dc.base) + int(extra)

	if distance > len(d.out) {
		return newError(ErrInvalidBackReference, start, "distance %d, but only %d bytes of output", distance, len(d.out))
	}
	if err := d.checkLimit(length); err != nil {
		return err
	}
	d.copyMatch(length, distance)
	return nil
}

// copyMatch appends length bytes copied from distance bytes back. The copy
// goes one byte at a time, so when length > distance it repeats the bytes it
// has just written.
func (d *Decompressor) copyMatch(length, distance int) {
	if d.Trace {
		d.matches = append(d.matches, unpack.Match{
			Unmatched: d.unmatched,
			Length:    length,
			Distance:  distance,
		})
		d.unmatched = 0
	}
	from := len(d.out) - distance
	for i := 0; i < length; i++ {
		d.out = append(d.out, d.out[from+i])
	}
}

func (d *Decompressor) checkLimit(n int) error {
	if d.MaxOutput > 0 && len(d.out)+n > d.MaxOutput {
		return newError(ErrOutputLimit, d.br.offset(), "output would grow past %d bytes", d.MaxOutput)
	}
	return nil
}

// atOffset fills in the input position of an error from newHuffman, which
// does not know where its code lengths came from.
func atOffset(err error, offset int64) error {
	if e, ok := err.(*Error); ok {
		e.Offset = offset
	}
	return err
}
