package flate

const (
	maxCodeBits = 15 // longest Huffman code DEFLATE allows

	numCodeLengthSyms = 19
	maxNumLitSyms     = 286 // literal/length symbols a stream may use
	maxNumDistSyms    = 30  // distance symbols a stream may use
	numFixedLitSyms   = 288
	numFixedDistSyms  = 32

	endOfBlock = 256

	maxDistance = 32768
)

// Block types, from the 2-bit BTYPE field.
const (
	blockStored  = 0
	blockFixed   = 1
	blockDynamic = 2
)

// codeLengthOrder is the order in which the code length code's own lengths
// are stored in a dynamic block header (RFC 1951 section 3.2.7).
var codeLengthOrder = [numCodeLengthSyms]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// A rangeCode maps a symbol to base + the value of the extra bits that
// follow it.
type rangeCode struct {
	base  uint16
	extra uint8
}

// lengthCodes covers literal/length symbols 257-285 (RFC 1951 section 3.2.5).
var lengthCodes = [...]rangeCode{
	{3, 0}, {4, 0}, {5, 0}, {6, 0}, {7, 0}, {8, 0}, {9, 0}, {10, 0},
	{11, 1}, {13, 1}, {15, 1}, {17, 1},
	{19, 2}, {23, 2}, {27, 2}, {31, 2},
	{35, 3}, {43, 3}, {51, 3}, {59, 3},
	{67, 4}, {83, 4}, {99, 4}, {115, 4},
	{131, 5}, {163, 5}, {195, 5}, {227, 5},
	{258, 0},
}

// distanceCodes covers distance symbols 0-29 (RFC 1951 section 3.2.5).
var distanceCodes = [maxNumDistSyms]rangeCode{
	{1, 0}, {2, 0}, {3, 0}, {4, 0},
	{5, 1}, {7, 1},
	{9, 2}, {13, 2},
	{17, 3}, {25, 3},
	{33, 4}, {49, 4},
	{65, 5}, {97, 5},
	{129, 6}, {193, 6},
	{257, 7}, {385, 7},
	{513, 8}, {769, 8},
	{1025, 9}, {1537, 9},
	{2049, 10}, {3073, 10},
	{4097, 11}, {6145, 11},
	{8193, 12}, {12289, 12},
	{16385, 13}, {24577, 13},
}

// fixedLitLengths returns the code lengths of the fixed literal/length code
// (RFC 1951 section 3.2.6).
func fixedLitLengths() []uint8 {
	lengths := make([]uint8, numFixedLitSyms)
	for i := range lengths {
		switch {
		case i < 144:
			lengths[i] = 8
		case i < 256:
			lengths[i] = 9
		case i < 280:
			lengths[i] = 7
		default:
			lengths[i] = 8
		}
	}
	return lengths
}

// fixedDistLengths returns the code lengths of the fixed distance code. All
// 32 five-bit codes are assigned even though only 30 are valid distances.
func fixedDistLengths() []uint8 {
	lengths := make([]uint8, numFixedDistSyms)
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}

var (
	fixedLitTable  = mustHuffman(fixedLitLengths())
	fixedDistTable = mustHuffman(fixedDistLengths())
)

func mustHuffman(lengths []uint8) *huffman {
	h, err := newHuffman(lengths)
	if err != nil {
		panic("flate: bad fixed code: " + err.Error())
	}
	return h
}
