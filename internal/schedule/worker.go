package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RamziA961/insomnia-db/internal/store"
)

// RunJobWorker is the background job worker: while s is active, it peeks the
// queue; if the earliest job is due it runs the ready batch, otherwise it
// sleeps until the earliest job's due time or a queue notification of an
// earlier job, whichever comes first. Cancellation mirrors the expiration
// worker's. onFailure, if non-nil, is forwarded to RunReady so the caller
// can observe which job failed without this package depending on its
// metrics machinery.
func RunJobWorker(ctx context.Context, q *Queue, s *store.Store, logger *zap.Logger, onFailure func(jobName string)) {
	for {
		if !s.Active() {
			return
		}

		job, ok := q.Peek()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.Notifications():
				continue
			}
		}

		if job.IsDue(time.Now()) {
			if err := q.RunReady(ctx, s, time.Now(), onFailure); err != nil && logger != nil {
				logger.Warn("scheduled job batch failed", zap.Error(err))
			}
			continue
		}

		d := time.Until(job.NextRun)
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			stopQueueTimer(timer)
			return
		case <-q.Notifications():
			stopQueueTimer(timer)
		case <-timer.C:
		}
	}
}

func stopQueueTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
