package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunExpirationWorker is the background expiration worker: it purges due entries
// and sleeps until either the next known expiry or a store notification of
// an earlier one, re-checking Active() at the top of every iteration so it
// terminates promptly after Shutdown.
func RunExpirationWorker(ctx context.Context, s *Store, logger *zap.Logger) {
	for {
		if !s.Active() {
			return
		}

		next, hasNext := s.PurgeExpired(time.Now())

		var timer *time.Timer
		var timerC <-chan time.Time
		if hasNext {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-s.ExpiryNotifications():
			stopTimer(timer)
		case <-timerC:
		}

		if logger != nil {
			logger.Debug("expiration worker woke")
		}
	}
}

func stopTimer(t *time.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
