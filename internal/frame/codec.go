package frame

import (
	"encoding/binary"
	"unicode/utf8"
)

const intWidth = 8 // fixed-width big-endian integer encoding, in bytes

var crlf = [2]byte{'\r', '\n'}

// Validate reports whether buf begins with a complete, well-formed frame,
// returning the number of bytes the frame occupies. It is defined in terms
// of Parse so that, by construction, Validate(buf) succeeds if and only if
// Parse(buf) succeeds and both agree on the consumed prefix length.
func Validate(buf []byte) (consumed int, err error) {
	_, consumed, err = Parse(buf)
	return consumed, err
}

// Parse materializes the frame at the start of buf, returning the frame and
// the number of bytes consumed. A truncated buffer (incomplete frame)
// yields a *ParsingError so callers can distinguish "need more bytes" from
// a genuine protocol violation — though at this layer both are errors;
// Connection.ReadFrame is what treats them differently by retrying reads
// only when the returned *ParsingError has its Incomplete flag set.
func Parse(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, incompleteErrorf("empty buffer")
	}

	kind := Kind(buf[0])
	switch kind {
	case KindSimple, KindError:
		return parseLineFrame(buf, kind)
	case KindInteger:
		return parseIntegerFrame(buf)
	case KindBulk:
		return parseBulkFrame(buf)
	case KindNull:
		return parseNullFrame(buf)
	case KindArray:
		return parseArrayFrame(buf)
	default:
		return Frame{}, 0, protocolErrorf("unknown type byte")
	}
}

// findCRLF locates the first "\r\n" in buf[from:], returning its index
// relative to the start of buf, or -1 if absent.
func findCRLF(buf []byte, from int) int {
	for i := from; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func parseLineFrame(buf []byte, kind Kind) (Frame, int, error) {
	end := findCRLF(buf, 1)
	if end == -1 {
		return Frame{}, 0, incompleteErrorf("unterminated line")
	}
	line := buf[1:end]
	for _, b := range line {
		if b == '\r' || b == '\n' {
			return Frame{}, 0, malformedErrorf("embedded CR/LF in line frame")
		}
	}
	if !utf8.Valid(line) {
		return Frame{}, 0, malformedErrorf("invalid UTF-8 in line frame")
	}
	consumed := end + 2
	if kind == KindError {
		return Err(string(line)), consumed, nil
	}
	return Simple(string(line)), consumed, nil
}

// parseIntLine reads the fixed-width integer encoding starting at
// buf[from]: the primary form is exactly intWidth raw bytes followed by
// CRLF, checked first at its fixed position so an arbitrary integer value
// whose raw bytes happen to contain a 0x0D/0x0A pair is never mistaken for
// an early terminator. Only when that fixed position doesn't hold CRLF is
// a shorter, earlier-terminated line tolerated — left-zero-padded to
// intWidth before being interpreted as big-endian — for compatibility with
// hand-typed decimal test fixtures. A terminator that fails to appear at
// either position is a protocol error ("line longer than intWidth bytes").
func parseIntLine(buf []byte, from int) (value uint64, consumed int, err error) {
	if from+intWidth+2 <= len(buf) {
		term := buf[from+intWidth : from+intWidth+2]
		if term[0] == '\r' && term[1] == '\n' {
			return binary.BigEndian.Uint64(buf[from : from+intWidth]), intWidth + 2, nil
		}
	}

	limit := from + intWidth
	if limit > len(buf) {
		limit = len(buf)
	}
	if end := findCRLF(buf, from); end != -1 && end < limit {
		line := buf[from:end]
		var padded [intWidth]byte
		copy(padded[intWidth-len(line):], line)
		return binary.BigEndian.Uint64(padded[:]), end + 2 - from, nil
	}

	if from+intWidth > len(buf) {
		return 0, 0, incompleteErrorf("truncated integer line")
	}
	if from+intWidth+2 > len(buf) {
		return 0, 0, incompleteErrorf("truncated integer terminator")
	}
	return 0, 0, protocolErrorf("integer line longer than 8 bytes")
}

func parseIntegerFrame(buf []byte) (Frame, int, error) {
	v, n, err := parseIntLine(buf, 1)
	if err != nil {
		return Frame{}, 0, err
	}
	return Integer(v), 1 + n, nil
}

func parseBulkFrame(buf []byte) (Frame, int, error) {
	length, n, err := parseIntLine(buf, 1)
	if err != nil {
		return Frame{}, 0, err
	}
	pos := 1 + n
	end := pos + int(length)
	if end+2 > len(buf) || end < pos {
		return Frame{}, 0, incompleteErrorf("truncated bulk payload")
	}
	payload := buf[pos:end]
	if buf[end] != '\r' || buf[end+1] != '\n' {
		return Frame{}, 0, malformedErrorf("bulk payload missing CRLF terminator")
	}
	body := make([]byte, len(payload))
	copy(body, payload)
	return Bulk(body), end + 2, nil
}

func parseNullFrame(buf []byte) (Frame, int, error) {
	end := findCRLF(buf, 1)
	if end == -1 {
		return Frame{}, 0, incompleteErrorf("unterminated null frame")
	}
	if end != 1 {
		return Frame{}, 0, protocolErrorf("null frame has trailing bytes")
	}
	return Null(), 3, nil
}

func parseArrayFrame(buf []byte) (Frame, int, error) {
	count, n, err := parseIntLine(buf, 1)
	if err != nil {
		return Frame{}, 0, err
	}
	pos := 1 + n
	items := make([]Frame, 0, count)
	for i := uint64(0); i < count; i++ {
		item, consumed, err := Parse(buf[pos:])
		if err != nil {
			return Frame{}, 0, err
		}
		items = append(items, item)
		pos += consumed
	}
	return Frame{Kind: KindArray, Array: items}, pos, nil
}

// Write serializes f onto dst, appending and returning the grown slice.
func Write(dst []byte, f Frame) []byte {
	switch f.Kind {
	case KindSimple, KindError:
		dst = append(dst, byte(f.Kind))
		dst = append(dst, f.Str...)
		return append(dst, crlf[:]...)
	case KindInteger:
		dst = append(dst, byte(KindInteger))
		dst = appendIntLine(dst, f.Int)
		return append(dst, crlf[:]...)
	case KindBulk:
		dst = append(dst, byte(KindBulk))
		dst = appendIntLine(dst, uint64(len(f.Bulk)))
		dst = append(dst, crlf[:]...)
		dst = append(dst, f.Bulk...)
		return append(dst, crlf[:]...)
	case KindNull:
		dst = append(dst, byte(KindNull))
		return append(dst, crlf[:]...)
	case KindArray:
		dst = append(dst, byte(KindArray))
		dst = appendIntLine(dst, uint64(len(f.Array)))
		dst = append(dst, crlf[:]...)
		for _, item := range f.Array {
			dst = Write(dst, item)
		}
		return dst
	default:
		return dst
	}
}

func appendIntLine(dst []byte, v uint64) []byte {
	var buf [intWidth]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}
