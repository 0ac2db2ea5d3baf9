package command

import (
	"context"

	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// Publish delivers Payload to every current subscriber of Channel, answering
// with the count reached.
type Publish struct {
	Channel string
	Payload []byte
}

func parsePublish(w *frame.Walker) (Command, error) {
	channel, err := w.NextString()
	if err != nil {
		return nil, err
	}
	payload, err := w.NextBytes()
	if err != nil {
		return nil, err
	}
	return Publish{Channel: channel, Payload: payload}, nil
}

func (p Publish) Representation() string { return "publish" }

func (p Publish) ToFrame() frame.Frame {
	return frame.NewArray(frame.Bulk([]byte("PUBLISH")), frame.Bulk([]byte(p.Channel)), frame.Bulk(p.Payload))
}

func (p Publish) Execute(_ context.Context, s *store.Store, conn *netconn.Connection, _ <-chan struct{}) error {
	n := s.Publish(p.Channel, p.Payload)
	return conn.WriteFrame(frame.Integer(uint64(n)))
}
