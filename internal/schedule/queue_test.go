package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RamziA961/insomnia-db/internal/store"
)

func runnable(f func() error) Runnable {
	return RunnableFunc(func(ctx context.Context, s *store.Store) error { return f() })
}

func TestQueuePopOrdersByEarliestNextRun(t *testing.T) {
	now := time.Now()
	q := NewQueue()

	late, _ := NewOnce(now.Add(2*time.Second), now)
	early, _ := NewOnce(now.Add(time.Second), now)

	q.Push(NewJob("late", late, runnable(func() error { return nil })))
	q.Push(NewJob("early", early, runnable(func() error { return nil })))

	job, ok := q.Pop()
	if !ok || job.Name != "early" {
		t.Fatalf("expected earliest job first, got %v", job)
	}
}

func TestRunReadyBatchFirstFailurePolicy(t *testing.T) {
	now := time.Now()
	q := NewQueue()

	var ran []string
	mk := func(name string, at time.Time, fail bool) *Job {
		s, err := NewOnce(at, now)
		if err != nil {
			t.Fatal(err)
		}
		return NewJob(name, s, runnable(func() error {
			ran = append(ran, name)
			if fail {
				return errors.New("boom")
			}
			return nil
		}))
	}

	// Distinct, strictly increasing NextRun times so heap pop order is
	// deterministic: "a" runs, "b" runs and fails, "c" only advances.
	q.Push(mk("a", now, false))
	q.Push(mk("b", now.Add(time.Millisecond), true))
	q.Push(mk("c", now.Add(2*time.Millisecond), false))

	var failed []string
	err := q.RunReady(context.Background(), store.New(), now.Add(3*time.Millisecond), func(name string) {
		failed = append(failed, name)
	})
	if err == nil {
		t.Fatal("expected RunReady to report the batch's first failure")
	}
	if len(failed) != 1 || failed[0] != "b" {
		t.Fatalf("expected the failure observer to see [b], got %v", failed)
	}

	// "a" and "b" invoke (b fails); "c" only advances (not invoked) since it
	// comes after the first failure in the batch.
	if len(ran) != 2 || ran[0] != "a" || ran[1] != "b" {
		t.Fatalf("expected [a b] invoked, got %v", ran)
	}

	// All three were Once jobs and have now expired; none should remain
	// queued regardless of whether they were invoked.
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after all jobs expired, got %d", q.Len())
	}
}

func TestRunReadyNTimesRunsToExhaustion(t *testing.T) {
	now := time.Now()
	q := NewQueue()

	s, err := NewNTimes(3, now, 10*time.Millisecond, now)
	if err != nil {
		t.Fatal(err)
	}
	invoked := 0
	q.Push(NewJob("tick", s, runnable(func() error {
		invoked++
		return nil
	})))

	st := store.New()
	defer st.Shutdown()

	for i := 0; i < 3; i++ {
		at := now.Add(time.Duration(i) * 10 * time.Millisecond)
		if err := q.RunReady(context.Background(), st, at, nil); err != nil {
			t.Fatalf("RunReady #%d: %v", i+1, err)
		}
	}

	if invoked != 3 {
		t.Fatalf("expected 3 invocations, got %d", invoked)
	}
	if q.Len() != 0 {
		t.Fatalf("expected the job to expire off the queue, got %d queued", q.Len())
	}
}
