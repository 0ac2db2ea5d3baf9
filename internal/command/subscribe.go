package command

import (
	"context"
	"errors"
	"sync"

	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// Subscribe attaches to one or more channels and runs a long-lived loop,
// forwarding every message received on any of them to the connection until
// the context is cancelled, the server signals shutdown, or the connection
// fails.
type Subscribe struct {
	Channels []string
}

var errSubscribeNoChannels = errors.New("SUBSCRIBE requires at least one channel")

func parseSubscribe(w *frame.Walker) (Command, error) {
	var channels []string
	for {
		ch, err := w.NextString()
		if errors.Is(err, frame.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return nil, errSubscribeNoChannels
	}
	return Subscribe{Channels: channels}, nil
}

func (sub Subscribe) Representation() string { return "subscribe" }

func (sub Subscribe) ToFrame() frame.Frame {
	items := make([]frame.Frame, 0, len(sub.Channels)+1)
	items = append(items, frame.Bulk([]byte("SUBSCRIBE")))
	for _, ch := range sub.Channels {
		items = append(items, frame.Bulk([]byte(ch)))
	}
	return frame.NewArray(items...)
}

// delivery is one item forwarded from a per-channel relay goroutine into the
// loop's single aggregation channel: either a payload, or notice that the
// channel's broadcaster has shut down and no more will arrive.
type delivery struct {
	channel string
	payload []byte
	closed  bool
}

func (sub Subscribe) Execute(ctx context.Context, s *store.Store, conn *netconn.Connection, shutdown <-chan struct{}) error {
	receivers := make(map[string]*store.Receiver, len(sub.Channels))
	for _, ch := range sub.Channels {
		r := s.Subscribe(ch)
		if r == nil {
			// Store has already shut down; nothing to subscribe to.
			continue
		}
		receivers[ch] = r
		count := s.TopicSubscriberCount(ch)
		ack := frame.NewArray(frame.Bulk([]byte("subscribe")), frame.Bulk([]byte(ch)), frame.Integer(uint64(count)))
		if err := conn.WriteFrame(ack); err != nil {
			for c, r := range receivers {
				s.Unsubscribe(c, r)
			}
			return err
		}
	}

	if len(receivers) == 0 {
		return nil
	}

	agg := make(chan delivery)
	done := make(chan struct{})
	var wg sync.WaitGroup

	// A single combined teardown: close done so every relay goroutine stops
	// selecting, wait for them to exit, then unsubscribe every receiver.
	// Splitting this across separate defers would run them in the wrong
	// order (unsubscribe before the relays have stopped reading).
	defer func() {
		close(done)
		wg.Wait()
		for ch, r := range receivers {
			s.Unsubscribe(ch, r)
		}
	}()

	for ch, r := range receivers {
		wg.Add(1)
		go relay(ch, r, agg, done, &wg)
	}

	active := len(receivers)
	for active > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-shutdown:
			return nil
		case d := <-agg:
			if d.closed {
				active--
				continue
			}
			msg := frame.NewArray(frame.Bulk([]byte("message")), frame.Bulk([]byte(d.channel)), frame.Bulk(d.payload))
			if err := conn.WriteFrame(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// relay forwards messages from one receiver's channel into agg until done
// closes or the receiver's broadcaster shuts down. Lag is absorbed silently:
// Message.Lagged carries no information a subscriber needs to act on beyond
// receiving the payload itself.
func relay(channel string, r *store.Receiver, agg chan<- delivery, done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case msg, ok := <-r.C():
			if !ok {
				select {
				case agg <- delivery{channel: channel, closed: true}:
				case <-done:
				}
				return
			}
			select {
			case agg <- delivery{channel: channel, payload: msg.Payload}:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}
