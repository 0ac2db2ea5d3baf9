package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/RamziA961/insomnia-db/internal/store"
)

// jobHeap orders by earliest NextRun first: the ordering is expressed
// directly as "most urgent pops first" rather than by comparing raw
// instants and inverting, so there is no comparator polarity to get wrong
// when switching between min- and max-heap conventions.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].NextRun.Before(h[j].NextRun) }
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*Job)
	j.heapIndex = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.heapIndex = -1
	*h = old[:n-1]
	return j
}

// Queue is the scheduled-job priority queue, guarded by its own mutex
// rather than sharing the store's: the job worker's peek/sleep/run cycle
// is an independent critical section.
type Queue struct {
	mu   sync.Mutex
	jobs jobHeap

	// notify is a 1-slot coalesced wakeup, mirroring the store's expiry
	// notification: a push of a job due earlier than everything already
	// queued wakes the job worker exactly once.
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Notifications exposes the job worker's wakeup channel.
func (q *Queue) Notifications() <-chan struct{} { return q.notify }

// Push inserts job, notifying the worker if job is now the earliest.
func (q *Queue) Push(job *Job) {
	q.mu.Lock()
	var prevEarliest *Job
	if len(q.jobs) > 0 {
		prevEarliest = q.jobs[0]
	}
	heap.Push(&q.jobs, job)
	needsWake := prevEarliest == nil || job.NextRun.Before(prevEarliest.NextRun)
	q.mu.Unlock()

	if needsWake {
		q.signal()
	}
}

// Peek returns the earliest job without removing it.
func (q *Queue) Peek() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false
	}
	return q.jobs[0], true
}

// Pop removes and returns the earliest job.
func (q *Queue) Pop() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false
	}
	return heap.Pop(&q.jobs).(*Job), true
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
}

// Len reports the number of jobs currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// RunReady pops and runs every due job in the current leading batch,
// applying the batch-first-failure policy: once any job in the batch
// fails, subsequent jobs in the batch still advance (so their schedule
// isn't starved by the failure) but are not invoked, and the batch as a
// whole reports failure. Non-expired jobs are reinserted regardless of
// whether they ran. onFailure, if non-nil, is called with the name of the
// job whose invocation failed.
func (q *Queue) RunReady(ctx context.Context, s *store.Store, now time.Time, onFailure func(jobName string)) error {
	var batch []*Job
	q.mu.Lock()
	for len(q.jobs) > 0 && !q.jobs[0].NextRun.After(now) {
		batch = append(batch, heap.Pop(&q.jobs).(*Job))
	}
	q.mu.Unlock()

	var batchErr error
	for _, job := range batch {
		if batchErr == nil {
			job.Advance()
			if err := job.Invoke(ctx, s); err != nil {
				batchErr = err
				if onFailure != nil {
					onFailure(job.Name)
				}
			}
		} else {
			job.Advance()
		}
		if !job.HasExpired() {
			q.Push(job)
		}
	}
	return batchErr
}
