package schedule

import (
	"context"
	"time"

	"github.com/RamziA961/insomnia-db/internal/store"
)

// Runnable is the dynamic-dispatch surface a scheduled job's work is
// expressed through: a single method over a handle to the shared store.
// Per the design notes, extensibility beyond the server-internal job
// registry isn't required here, so concrete jobs are plain values
// implementing this interface rather than a richer plugin mechanism.
type Runnable interface {
	Run(ctx context.Context, s *store.Store) error
}

// RunnableFunc adapts a plain function to Runnable.
type RunnableFunc func(ctx context.Context, s *store.Store) error

func (f RunnableFunc) Run(ctx context.Context, s *store.Store) error { return f(ctx, s) }

// Job bundles a Runnable with its Strategy and tracks the next instant it
// is due.
type Job struct {
	Name     string
	Strategy Strategy
	NextRun  time.Time
	Expired  bool
	Task     Runnable

	// heapIndex is maintained by the priority queue; it is not part of the
	// job's logical state.
	heapIndex int
}

// NewJob constructs a job whose NextRun starts at the strategy's first
// occurrence.
func NewJob(name string, strategy Strategy, task Runnable) *Job {
	return &Job{
		Name:     name,
		Strategy: strategy,
		NextRun:  strategy.NextOccurrence(),
		Task:     task,
	}
}

// IsDue reports whether the job's next run instant is in the past or now.
func (j *Job) IsDue(now time.Time) bool {
	return !j.NextRun.After(now)
}

// HasExpired reports whether the job's strategy has no remaining
// occurrences.
func (j *Job) HasExpired() bool { return j.Expired }

// Advance moves the job to its next occurrence per the strategy's advance
// rule, without invoking its task.
func (j *Job) Advance() {
	next, expired := j.Strategy.advance()
	j.Strategy = next
	j.Expired = expired
	if !expired {
		j.NextRun = next.NextOccurrence()
	}
}

// Invoke runs the job's task against s.
func (j *Job) Invoke(ctx context.Context, s *store.Store) error {
	return j.Task.Run(ctx, s)
}

// Run advances the job's schedule and invokes its task. RunReady on the
// queue implements the batch-level policy (advance-without-invoke on later
// failures) by calling Advance and Invoke separately instead of through
// Run.
func (j *Job) Run(ctx context.Context, s *store.Store) error {
	j.Advance()
	return j.Invoke(ctx, s)
}
