package frame

import (
	"strconv"
	"unicode/utf8"
)

// Walker provides typed, sequential extraction over the elements of an
// Array frame — the shape every command's argument list arrives in.
type Walker struct {
	items []Frame
	pos   int
}

// NewWalker constructs a Walker from f, which must be an Array frame.
func NewWalker(f Frame) (*Walker, error) {
	if f.Kind != KindArray {
		return nil, &TypeMismatchError{Want: KindArray, Got: f.Kind}
	}
	return &Walker{items: f.Array}, nil
}

// Next returns the next frame, or ErrEndOfStream if the walker is exhausted.
func (w *Walker) Next() (Frame, error) {
	if w.pos >= len(w.items) {
		return Frame{}, ErrEndOfStream
	}
	f := w.items[w.pos]
	w.pos++
	return f, nil
}

// NextString extracts the next element as a string. Simple frames are taken
// verbatim; Bulk frames must be valid UTF-8.
func (w *Walker) NextString() (string, error) {
	f, err := w.Next()
	if err != nil {
		return "", err
	}
	switch f.Kind {
	case KindSimple:
		return f.Str, nil
	case KindBulk:
		if !utf8.Valid(f.Bulk) {
			return "", protocolErrorf("invalid UTF-8 in bulk string")
		}
		return string(f.Bulk), nil
	default:
		return "", &TypeMismatchError{Want: KindBulk, Got: f.Kind}
	}
}

// NextBytes extracts the next element's raw bytes, accepting Bulk or Simple.
func (w *Walker) NextBytes() ([]byte, error) {
	f, err := w.Next()
	if err != nil {
		return nil, err
	}
	switch f.Kind {
	case KindBulk:
		return f.Bulk, nil
	case KindSimple:
		return []byte(f.Str), nil
	default:
		return nil, &TypeMismatchError{Want: KindBulk, Got: f.Kind}
	}
}

// NextInt extracts the next element as an unsigned integer, accepting an
// Integer frame directly or a Simple/Bulk frame whose bytes decode as
// decimal.
func (w *Walker) NextInt() (uint64, error) {
	f, err := w.Next()
	if err != nil {
		return 0, err
	}
	switch f.Kind {
	case KindInteger:
		return f.Int, nil
	case KindSimple:
		return parseDecimalUint(f.Str)
	case KindBulk:
		return parseDecimalUint(string(f.Bulk))
	default:
		return 0, &TypeMismatchError{Want: KindInteger, Got: f.Kind}
	}
}

func parseDecimalUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, malformedErrorf("not a decimal integer: " + s)
	}
	return v, nil
}

// Finish requires the walker to be exhausted, reporting a ProtocolError if
// unconsumed elements remain.
func (w *Walker) Finish() error {
	if w.pos != len(w.items) {
		return protocolErrorf("unexpected trailing arguments")
	}
	return nil
}

// Len reports how many elements remain unread.
func (w *Walker) Len() int { return len(w.items) - w.pos }
