// Package store implements the shared key/value store: a concurrent
// keyed map with TTL and invariant-preserving expiration, and the
// publish/subscribe topic map built on top of it.
package store

import (
	"sync"
	"time"
)

// DefaultTopicCapacity is the per-topic receiver channel capacity.
const DefaultTopicCapacity = 1024

// Store is the shared state engine. Every operation acquires and releases
// mu before returning; none holds it across a blocking channel or timer
// wait.
type Store struct {
	mu sync.Mutex

	data   map[string]Entry
	expiry *expiryIndex
	topics map[string]*broadcaster

	active        bool
	topicCapacity int

	// expiryNotify is a 1-slot coalesced wakeup: multiple signals raised
	// before the expiration worker next waits collapse into a single wake,
	// which is all the worker needs since it re-derives the next deadline
	// from the store on every iteration.
	expiryNotify chan struct{}
}

// New constructs an active Store.
func New() *Store {
	return NewWithCapacity(DefaultTopicCapacity)
}

// NewWithCapacity constructs an active Store whose topics use the given
// per-receiver channel capacity.
func NewWithCapacity(topicCapacity int) *Store {
	return &Store{
		data:          make(map[string]Entry),
		expiry:        newExpiryIndex(),
		topics:        make(map[string]*broadcaster),
		active:        true,
		topicCapacity: topicCapacity,
		expiryNotify:  make(chan struct{}, 1),
	}
}

func (s *Store) notifyExpiry() {
	select {
	case s.expiryNotify <- struct{}{}:
	default:
	}
}

// ExpiryNotifications exposes the expiration worker's wakeup channel.
func (s *Store) ExpiryNotifications() <-chan struct{} { return s.expiryNotify }

// Get returns an atomic snapshot of key's payload. Expired entries may
// still be observed if the purge worker has not yet run.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, false
	}
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return e.Payload, true
}

// Set stores payload under key, replacing any existing entry. ttl, if
// positive, computes an absolute expiry relative to now.
func (s *Store) Set(key string, payload []byte, ttl time.Duration, now time.Time) error {
	entry, err := NewEntry(payload, ttl, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}

	prevEarliest, hadEarliest := s.expiry.peek()

	if old, ok := s.data[key]; ok && old.ExpiresAt != nil {
		// Remove the prior (expiry, key) pair before inserting the new one.
		s.expiry.clear(key)
	}
	s.data[key] = entry
	if entry.ExpiresAt != nil {
		s.expiry.set(key, *entry.ExpiresAt)
	}

	newEarliest, hasEarliest := s.expiry.peek()
	if hasEarliest && (!hadEarliest || newEarliest.at.Before(prevEarliest.at)) {
		s.notifyExpiry()
	}
	return nil
}

// Delete removes key outright, independent of expiry, and invalidates its
// expiry index entry if it had one. Not part of the client-visible command
// set.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	if old, ok := s.data[key]; ok {
		if old.ExpiresAt != nil {
			s.expiry.clear(key)
		}
		delete(s.data, key)
	}
}

// Subscribe attaches a new receiver to channel, creating its broadcaster
// lazily on first use. It returns nil if the store has already shut down,
// so a command mid-dispatch during shutdown doesn't create a topic that
// will never be torn down.
func (s *Store) Subscribe(channel string) *Receiver {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	b, ok := s.topics[channel]
	if !ok {
		b = newBroadcaster(s.topicCapacity)
		s.topics[channel] = b
	}
	s.mu.Unlock()
	return b.subscribe()
}

// Unsubscribe detaches r from channel's broadcaster, if it still exists.
func (s *Store) Unsubscribe(channel string, r *Receiver) {
	s.mu.Lock()
	b, ok := s.topics[channel]
	s.mu.Unlock()
	if ok {
		b.unsubscribe(r)
	}
}

// Publish sends payload to channel's current subscribers, returning how
// many received it. Publishing to a channel nobody has ever subscribed to
// is a no-op that returns 0: it does not create the topic.
func (s *Store) Publish(channel string, payload []byte) int {
	s.mu.Lock()
	b, ok := s.topics[channel]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return b.publish(payload)
}

// TopicSubscriberCount reports the receiver count for channel, or 0 if it
// does not exist.
func (s *Store) TopicSubscriberCount(channel string) int {
	s.mu.Lock()
	b, ok := s.topics[channel]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return b.subscriberCount()
}

// Size reports the number of keys currently held, active entries and
// not-yet-purged expired ones alike.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// TopicCount reports the number of topics that currently exist.
func (s *Store) TopicCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.topics)
}

// TotalSubscribers reports the sum of subscriber counts across every
// topic, used by the metrics sampler job.
func (s *Store) TotalSubscribers() int {
	s.mu.Lock()
	topics := make([]*broadcaster, 0, len(s.topics))
	for _, b := range s.topics {
		topics = append(topics, b)
	}
	s.mu.Unlock()

	total := 0
	for _, b := range topics {
		total += b.subscriberCount()
	}
	return total
}

// PurgeExpired removes every entry whose expiry has passed as of now,
// returning the next upcoming expiry instant if one remains.
func (s *Store) PurgeExpired(now time.Time) (next time.Time, hasNext bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return time.Time{}, false
	}

	for {
		item, due := s.expiry.popIfDue(now)
		if !due {
			break
		}
		delete(s.data, item.key)
	}

	item, ok := s.expiry.peek()
	if !ok {
		return time.Time{}, false
	}
	return item.at, true
}

// SweepStaleTopics removes broadcasters that currently have zero attached
// receivers, bounding the topic map's growth. This never changes
// the result of a concurrent Publish: the store mutex serializes the
// lookup-and-delete here against Subscribe/Publish's lookups, so a topic is
// only ever removed between a last unsubscribe and any subsequent
// subscribe.
func (s *Store) SweepStaleTopics() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, b := range s.topics {
		if b.subscriberCount() == 0 {
			b.shutdown()
			delete(s.topics, name)
			removed++
		}
	}
	return removed
}

// Active reports whether the store is accepting operations.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Shutdown marks the store inactive: subsequent operations are no-ops
// or report absent, and every topic's receivers are disconnected.
func (s *Store) Shutdown() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	topics := make([]*broadcaster, 0, len(s.topics))
	for _, b := range s.topics {
		topics = append(topics, b)
	}
	s.mu.Unlock()

	// Wake the expiration worker if it is asleep on an empty store (no
	// timer running): otherwise it would not notice Active() went false
	// until its next notification or timer fire, which may never come.
	s.notifyExpiry()

	for _, b := range topics {
		b.shutdown()
	}
}
