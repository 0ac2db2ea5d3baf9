package frame

import "errors"

// ErrEndOfStream signals that a Walker has no more elements. Command parsers
// use it to treat a missing trailing argument as absent rather than a
// protocol violation; it is never written to a client.
var ErrEndOfStream = errors.New("frame: end of stream")

// TypeMismatchError reports that a frame of the wrong kind was encountered
// where a specific kind was required (e.g. constructing a Walker from a
// non-Array frame).
type TypeMismatchError struct {
	Want, Got Kind
}

func (e *TypeMismatchError) Error() string {
	return "frame: type mismatch: want " + e.Want.String() + ", got " + e.Got.String()
}

// ParsingError reports that the buffer did not contain a well-formed frame:
// truncation, a bad terminator, or invalid UTF-8 where text was required.
//
// Incomplete distinguishes "the frame isn't fully buffered yet" (the
// bytes seen so far are consistent with a valid frame, just short) from
// "the bytes present are already malformed" — Connection uses it to decide
// whether reading more from the stream could possibly help.
type ParsingError struct {
	Msg        string
	Incomplete bool
}

func (e *ParsingError) Error() string { return "frame: parsing error: " + e.Msg }

// ProtocolError reports a frame that is structurally well-formed bytes but
// violates the wire contract itself (unknown type byte, malformed integer
// line, trailing bytes on a Null frame).
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "frame: protocol error: " + e.Msg }

func protocolErrorf(msg string) error { return &ProtocolError{Msg: msg} }

// incompleteErrorf reports bytes seen so far are consistent with a valid
// frame but more are needed.
func incompleteErrorf(msg string) error { return &ParsingError{Msg: msg, Incomplete: true} }

// malformedErrorf reports that the bytes present are already invalid.
func malformedErrorf(msg string) error { return &ParsingError{Msg: msg} }
