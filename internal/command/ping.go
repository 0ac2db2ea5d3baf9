package command

import (
	"context"
	"errors"

	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// Ping answers Simple("PONG") with no argument, or echoes its payload back
// as a Bulk frame.
type Ping struct {
	Payload    []byte
	HasPayload bool
}

func parsePing(w *frame.Walker) (Command, error) {
	b, err := w.NextBytes()
	if errors.Is(err, frame.ErrEndOfStream) {
		return Ping{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Ping{Payload: b, HasPayload: true}, nil
}

func (p Ping) Representation() string { return "ping" }

func (p Ping) ToFrame() frame.Frame {
	name := frame.Bulk([]byte("PING"))
	if !p.HasPayload {
		return frame.NewArray(name)
	}
	return frame.NewArray(name, frame.Bulk(p.Payload))
}

func (p Ping) Execute(_ context.Context, _ *store.Store, conn *netconn.Connection, _ <-chan struct{}) error {
	if !p.HasPayload {
		return conn.WriteFrame(frame.Simple("PONG"))
	}
	return conn.WriteFrame(frame.Bulk(p.Payload))
}
