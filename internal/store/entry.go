package store

import (
	"errors"
	"time"
)

// ErrEmptyPayload is returned when SET is asked to store a zero-length
// payload — rejected before any store mutation, per the BuilderError
// contract in the error handling design.
var ErrEmptyPayload = errors.New("store: entry payload must not be empty")

// Entry is an immutable value cell: a byte payload with an optional
// absolute expiry. Entries are replaced wholesale on SET, never mutated in
// place.
type Entry struct {
	Payload   []byte
	ExpiresAt *time.Time
}

// NewEntry validates payload and builds an Entry, computing an absolute
// expiry from ttl relative to now when ttl is non-zero.
func NewEntry(payload []byte, ttl time.Duration, now time.Time) (Entry, error) {
	if len(payload) == 0 {
		return Entry{}, ErrEmptyPayload
	}
	e := Entry{Payload: payload}
	if ttl > 0 {
		at := now.Add(ttl)
		e.ExpiresAt = &at
	}
	return e, nil
}

// Expired reports whether the entry's expiry has passed as of now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}
