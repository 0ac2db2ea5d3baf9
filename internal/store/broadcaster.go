package store

import "sync/atomic"

// Message is one payload delivered to a subscriber. Lagged is set on a
// message that was queued by dropping the oldest message from a full
// Receiver buffer; it sits behind the older messages that survived the
// drop. The Receiver is expected to absorb it silently and keep consuming,
// per the protocol's SUBSCRIBE contract.
type Message struct {
	Payload []byte
	Lagged  bool
}

// broadcaster fans payloads out to one buffered channel per attached
// Receiver. A full receiver channel is handled by dropping its oldest
// queued message to make room — the channel-based equivalent of an
// overwrite-oldest ring buffer — rather than by blocking the publisher or
// dropping the new message, so a newly (re)connected slow subscriber still
// sees the most recent state rather than stalling out on ancient history.
type broadcaster struct {
	cap       int
	receivers int64 // atomic
	sub       chan *Receiver
	unsub     chan *Receiver
	publishCh chan []byte
	done      chan struct{}
}

// Receiver is a subscriber's handle onto one broadcaster. Its lifetime is
// independent of the store: closing it (via unsubscribe) does not affect
// the broadcaster or other receivers.
type Receiver struct {
	ch chan Message
}

// C returns the channel to select on for incoming messages. It is closed
// when the broadcaster shuts down.
func (r *Receiver) C() <-chan Message { return r.ch }

func newBroadcaster(capacity int) *broadcaster {
	b := &broadcaster{
		cap:       capacity,
		sub:       make(chan *Receiver),
		unsub:     make(chan *Receiver),
		publishCh: make(chan []byte),
		done:      make(chan struct{}),
	}
	go b.run()
	return b
}

// run is the broadcaster's single-goroutine owner of its receiver set,
// avoiding a mutex around a map of channels: registration, teardown, and
// fan-out all serialize through this one select loop.
func (b *broadcaster) run() {
	receivers := make(map[*Receiver]bool)
	for {
		select {
		case r := <-b.sub:
			receivers[r] = true
			atomic.AddInt64(&b.receivers, 1)
		case r := <-b.unsub:
			if receivers[r] {
				delete(receivers, r)
				atomic.AddInt64(&b.receivers, -1)
				close(r.ch)
			}
		case payload := <-b.publishCh:
			for r := range receivers {
				deliver(r, payload)
			}
		case <-b.done:
			for r := range receivers {
				close(r.ch)
			}
			return
		}
	}
}

func deliver(r *Receiver, payload []byte) {
	select {
	case r.ch <- Message{Payload: payload}:
		return
	default:
	}
	// Channel full: drop the oldest queued message and retry once, tagging
	// the dropped receiver as lagged instead of blocking the publisher.
	select {
	case <-r.ch:
	default:
	}
	select {
	case r.ch <- Message{Payload: payload, Lagged: true}:
	default:
		// Another goroutine drained concurrently and refilled it first;
		// the receiver will simply see its next publish instead.
	}
}

// subscribe registers a new receiver. If the broadcaster has already shut
// down, the returned receiver's channel is already closed.
func (b *broadcaster) subscribe() *Receiver {
	r := &Receiver{ch: make(chan Message, b.cap)}
	select {
	case b.sub <- r:
		return r
	case <-b.done:
		close(r.ch)
		return r
	}
}

func (b *broadcaster) unsubscribe(r *Receiver) {
	select {
	case b.unsub <- r:
	case <-b.done:
	}
}

// publish delivers payload to every currently attached receiver, returning
// how many received it. It returns only after payload has been queued on
// every receiver's channel.
func (b *broadcaster) publish(payload []byte) int {
	select {
	case b.publishCh <- payload:
	case <-b.done:
		return 0
	}
	// run takes payload off publishCh before delivering it. A hand-off
	// through unsub with a nil receiver, which run ignores, completes only
	// once run is back in its select, i.e. after that delivery loop.
	select {
	case b.unsub <- nil:
	case <-b.done:
	}
	return int(atomic.LoadInt64(&b.receivers))
}

func (b *broadcaster) subscriberCount() int {
	return int(atomic.LoadInt64(&b.receivers))
}

func (b *broadcaster) shutdown() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}
