package store

import (
	"container/heap"
	"time"
)

// expiryItem is one candidate (expires_at, key) pair tracked by the index.
// gen pins the item to the generation of its key's expiry at the time it
// was pushed; once a key's expiry is replaced or cleared its generation is
// bumped, and stale heap items are discarded lazily the next time they
// surface at the top of the heap instead of being searched for and removed
// eagerly — the same heap idiom SagerNet-smux/session.go uses for its
// pending-write priority queue, extended with lazy deletion because this
// index additionally needs "replace a key's entry" as a first-class
// operation.
type expiryItem struct {
	key string
	at  time.Time
	gen uint64
}

type expiryHeap []expiryItem

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].key < h[j].key
	}
	return h[i].at.Before(h[j].at)
}

func (h expiryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) { *h = append(*h, x.(expiryItem)) }

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// expiryIndex is the ordered (instant, key) set behind TTL purging. Every
// mutation that changes a key's expiry bumps that key's generation
// counter, invalidating any heap item pushed under a prior generation
// without needing to locate it in the heap, so the index's view of each
// key always matches the live entry's expiry.
type expiryIndex struct {
	h    expiryHeap
	gens map[string]uint64
}

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{gens: make(map[string]uint64)}
}

// set records that key expires at 'at', invalidating any previously
// recorded expiry for key.
func (x *expiryIndex) set(key string, at time.Time) {
	x.gens[key]++
	heap.Push(&x.h, expiryItem{key: key, at: at, gen: x.gens[key]})
}

// clear invalidates key's expiry without recording a new one.
func (x *expiryIndex) clear(key string) {
	x.gens[key]++
}

func (x *expiryIndex) current(item expiryItem) bool {
	return x.gens[item.key] == item.gen
}

// dropStale discards heap items at the top that no longer reflect the
// current generation of their key, leaving the top either empty or current.
func (x *expiryIndex) dropStale() {
	for len(x.h) > 0 && !x.current(x.h[0]) {
		heap.Pop(&x.h)
	}
}

// peek returns the earliest current expiry, if any.
func (x *expiryIndex) peek() (expiryItem, bool) {
	x.dropStale()
	if len(x.h) == 0 {
		return expiryItem{}, false
	}
	return x.h[0], true
}

// popIfDue removes and returns the earliest current expiry if it is at or
// before now.
func (x *expiryIndex) popIfDue(now time.Time) (expiryItem, bool) {
	item, ok := x.peek()
	if !ok || item.at.After(now) {
		return expiryItem{}, false
	}
	heap.Pop(&x.h)
	return item, true
}
