// Package netconn wraps a byte-duplex stream with buffered, framed I/O.
// It knows nothing about commands; it only turns bytes into Frames and
// back.
package netconn

import (
	"bufio"
	"errors"
	"io"

	"github.com/RamziA961/insomnia-db/internal/frame"
)

const initialReadBufferSize = 4 << 10 // 4 KiB

// ErrConnectionReset reports that the peer closed mid-frame: zero bytes
// were read but the receive buffer already held a partial frame.
var ErrConnectionReset = errors.New("netconn: connection reset")

// Connection pairs a buffered writer with a growable receive buffer over
// an arbitrary byte-duplex stream (net.Conn satisfies io.ReadWriteCloser).
type Connection struct {
	rw     io.ReadWriteCloser
	writer *bufio.Writer
	recv   []byte // unconsumed bytes read from rw, frame-aligned at index 0
}

func New(rw io.ReadWriteCloser) *Connection {
	return &Connection{
		rw:     rw,
		writer: bufio.NewWriter(rw),
		recv:   make([]byte, 0, initialReadBufferSize),
	}
}

// ReadFrame returns the next complete frame, reading more bytes from the
// underlying stream as needed. A graceful close (EOF with no partial frame
// pending) reports (Frame{}, false, nil).
func (c *Connection) ReadFrame() (frame.Frame, bool, error) {
	for {
		if consumed, err := frame.Validate(c.recv); err == nil {
			f, _, parseErr := frame.Parse(c.recv)
			if parseErr != nil {
				// Validate and Parse are defined to agree; a mismatch here
				// would be a codec bug, not a protocol error from the peer.
				return frame.Frame{}, false, parseErr
			}
			c.recv = append(c.recv[:0], c.recv[consumed:]...)
			return f, true, nil
		} else if !isIncomplete(err) {
			return frame.Frame{}, false, err
		}

		buf := make([]byte, initialReadBufferSize)
		n, readErr := c.rw.Read(buf)
		if n > 0 {
			c.recv = append(c.recv, buf[:n]...)
		}
		if readErr != nil {
			if n == 0 && errors.Is(readErr, io.EOF) {
				if len(c.recv) == 0 {
					return frame.Frame{}, false, nil
				}
				return frame.Frame{}, false, ErrConnectionReset
			}
			if n == 0 {
				return frame.Frame{}, false, readErr
			}
		}
		if n == 0 && readErr == nil {
			// Stream reported no progress and no error; treat as closed to
			// avoid spinning.
			if len(c.recv) == 0 {
				return frame.Frame{}, false, nil
			}
			return frame.Frame{}, false, ErrConnectionReset
		}
	}
}

// isIncomplete reports whether err indicates "not enough bytes yet" rather
// than a genuine protocol violation.
func isIncomplete(err error) bool {
	var pe *frame.ParsingError
	return errors.As(err, &pe) && pe.Incomplete
}

// WriteFrame serializes and flushes f to the underlying stream.
func (c *Connection) WriteFrame(f frame.Frame) error {
	buf := frame.Write(nil, f)
	if _, err := c.writer.Write(buf); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Close closes the underlying stream.
func (c *Connection) Close() error { return c.rw.Close() }
