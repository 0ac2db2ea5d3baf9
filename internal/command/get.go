package command

import (
	"context"

	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// Get returns the payload stored under Key, or Null if absent.
type Get struct {
	Key string
}

func parseGet(w *frame.Walker) (Command, error) {
	key, err := w.NextString()
	if err != nil {
		return nil, err
	}
	return Get{Key: key}, nil
}

func (g Get) Representation() string { return "get" }

func (g Get) ToFrame() frame.Frame {
	return frame.NewArray(frame.Bulk([]byte("GET")), frame.Bulk([]byte(g.Key)))
}

func (g Get) Execute(_ context.Context, s *store.Store, conn *netconn.Connection, _ <-chan struct{}) error {
	payload, ok := s.Get(g.Key)
	if !ok {
		return conn.WriteFrame(frame.Null())
	}
	return conn.WriteFrame(frame.Bulk(payload))
}
