package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// Set stores Value under Key, replacing any existing entry, with an
// optional expiration given either as EX <seconds> or PX <milliseconds>.
type Set struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

var errUnknownSetOption = errors.New("syntax error in SET options")

func parseSet(w *frame.Walker) (Command, error) {
	key, err := w.NextString()
	if err != nil {
		return nil, err
	}
	value, err := w.NextBytes()
	if err != nil {
		return nil, err
	}

	set := Set{Key: key, Value: value}

	tok, err := w.NextString()
	if errors.Is(err, frame.ErrEndOfStream) {
		return set, nil
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(tok) {
	case "ex":
		seconds, err := w.NextInt()
		if err != nil {
			return nil, err
		}
		set.TTL = time.Duration(seconds) * time.Second
	case "px":
		millis, err := w.NextInt()
		if err != nil {
			return nil, err
		}
		set.TTL = time.Duration(millis) * time.Millisecond
	default:
		return nil, errUnknownSetOption
	}

	return set, nil
}

func (s Set) Representation() string { return "set" }

func (s Set) ToFrame() frame.Frame {
	items := []frame.Frame{frame.Bulk([]byte("SET")), frame.Bulk([]byte(s.Key)), frame.Bulk(s.Value)}
	if s.TTL > 0 {
		if s.TTL%time.Second == 0 {
			items = append(items, frame.Bulk([]byte("EX")), frame.Integer(uint64(s.TTL/time.Second)))
		} else {
			items = append(items, frame.Bulk([]byte("PX")), frame.Integer(uint64(s.TTL/time.Millisecond)))
		}
	}
	return frame.NewArray(items...)
}

func (s Set) Execute(_ context.Context, st *store.Store, conn *netconn.Connection, _ <-chan struct{}) error {
	if err := st.Set(s.Key, s.Value, s.TTL, time.Now()); err != nil {
		return conn.WriteFrame(frame.Err("ERR " + err.Error()))
	}
	return conn.WriteFrame(frame.Simple("OK"))
}
