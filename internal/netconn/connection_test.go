package netconn

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/RamziA961/insomnia-db/internal/frame"
)

// chunkedRWC hands back pre-split byte chunks one Read call at a time, then
// reports io.EOF (optionally after a final chunk), simulating a stream that
// delivers a frame piecemeal across several TCP reads.
type chunkedRWC struct {
	chunks [][]byte
	pos    int
	out    bytes.Buffer
}

func (c *chunkedRWC) Read(p []byte) (int, error) {
	if c.pos >= len(c.chunks) {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[c.pos])
	c.pos++
	return n, nil
}

func (c *chunkedRWC) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *chunkedRWC) Close() error                { return nil }

func splitBytes(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		if n > len(b) {
			n = len(b)
		}
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}

func TestConnectionReadFrameAssemblesAcrossShortReads(t *testing.T) {
	f := frame.NewArray(frame.Bulk([]byte("SET")), frame.Bulk([]byte("key")), frame.Integer(7))
	raw := frame.Write(nil, f)

	rwc := &chunkedRWC{chunks: splitBytes(raw, 3)}
	c := New(rwc)

	got, ok, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for a complete frame")
	}
	if !got.Equal(f) {
		t.Fatalf("reassembled frame mismatch: got %+v, want %+v", got, f)
	}
}

func TestConnectionReadFrameGracefulClose(t *testing.T) {
	rwc := &chunkedRWC{}
	c := New(rwc)

	_, ok, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("expected no error on clean EOF, got %v", err)
	}
	if ok {
		t.Fatal("expected ok=false on clean EOF with no pending frame")
	}
}

func TestConnectionReadFrameResetOnPartialFrame(t *testing.T) {
	f := frame.NewArray(frame.Bulk([]byte("SET")), frame.Bulk([]byte("key")), frame.Integer(7))
	raw := frame.Write(nil, f)

	// Deliver only the first half of the frame, then EOF.
	rwc := &chunkedRWC{chunks: [][]byte{raw[:len(raw)/2]}}
	c := New(rwc)

	_, ok, err := c.ReadFrame()
	if ok {
		t.Fatal("expected ok=false for a partial frame")
	}
	if !errors.Is(err, ErrConnectionReset) {
		t.Fatalf("expected ErrConnectionReset, got %v", err)
	}
}

func TestConnectionReadFrameRejectsMalformedInput(t *testing.T) {
	rwc := &chunkedRWC{chunks: [][]byte{[]byte("@garbage\r\n")}}
	c := New(rwc)

	_, ok, err := c.ReadFrame()
	if ok {
		t.Fatal("expected ok=false for malformed input")
	}
	if err == nil {
		t.Fatal("expected a protocol error for an unknown frame kind")
	}
}

func TestConnectionWriteFrameFlushesToStream(t *testing.T) {
	rwc := &chunkedRWC{}
	c := New(rwc)

	f := frame.Simple("OK")
	if err := c.WriteFrame(f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if !bytes.Equal(rwc.out.Bytes(), frame.Write(nil, f)) {
		t.Fatalf("unexpected bytes written: %q", rwc.out.Bytes())
	}
}
