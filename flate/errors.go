package flate

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by this package wraps one of these, so
// callers can test for them with errors.Is.
var (
	ErrUnexpectedEndOfStream = errors.New("unexpected end of stream")
	ErrInvalidHuffmanCode    = errors.New("invalid Huffman code")
	ErrInvalidBlockType      = errors.New("invalid block type")
	ErrLengthMismatch        = errors.New("stored block length mismatch")
	ErrInvalidBackReference  = errors.New("invalid back-reference")
	ErrOutputLimit           = errors.New("output exceeds limit")
)

// An Error describes a decoding failure and where in the compressed input it
// happened.
type Error struct {
	Kind   error
	Offset int64 // byte offset into the compressed input
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("flate: %v at byte %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("flate: %v at byte %d: %s", e.Kind, e.Offset, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, offset int64, format string, args ...interface{}) *Error {
	return &Error{
		Kind:   kind,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
	}
}
