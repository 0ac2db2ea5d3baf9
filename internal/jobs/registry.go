// Package jobs provides the built-in jobs the server schedules on startup
// to exercise the scheduling subsystem and serve the ambient metrics
// concern: no client command registers jobs in this system, so the fixed
// set constructed here is the only source of scheduled work.
package jobs

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/RamziA961/insomnia-db/internal/metrics"
	"github.com/RamziA961/insomnia-db/internal/schedule"
	"github.com/RamziA961/insomnia-db/internal/store"
)

func pid() int { return os.Getpid() }

// Register builds and pushes the metrics sampler and stale-topic sweep
// jobs onto q. Each is first due at now and then repeats at its given
// interval.
func Register(q *schedule.Queue, reg *metrics.Registry, logger *zap.Logger, metricsInterval, sweepInterval time.Duration, now time.Time) error {
	metricsStrategy, err := schedule.NewIndefinite(now, metricsInterval, now)
	if err != nil {
		return err
	}
	q.Push(schedule.NewJob("metricsSampler", metricsStrategy, metricsSampler(reg, logger)))

	sweepStrategy, err := schedule.NewIndefinite(now, sweepInterval, now)
	if err != nil {
		return err
	}
	q.Push(schedule.NewJob("staleTopicSweep", sweepStrategy, staleTopicSweep(reg, logger)))

	return nil
}

// metricsSampler samples store size, topic count, and subscriber totals
// into Prometheus gauges on every run, plus one process CPU/RSS sample via
// gopsutil (cheap enough to run on the same cadence rather than its own
// strategy).
func metricsSampler(reg *metrics.Registry, logger *zap.Logger) schedule.Runnable {
	proc, procErr := process.NewProcess(int32(pid()))
	return schedule.RunnableFunc(func(ctx context.Context, s *store.Store) error {
		reg.JobRuns.WithLabelValues("metricsSampler").Inc()
		reg.StoreSize.Set(float64(s.Size()))
		reg.TopicCount.Set(float64(s.TopicCount()))
		reg.TopicSubscribers.Set(float64(s.TotalSubscribers()))

		if procErr != nil {
			return nil
		}
		if cpuPercent, err := proc.CPUPercent(); err == nil {
			reg.ProcessCPUPercent.Set(cpuPercent)
		} else {
			logger.Debug("cpu sample failed", zap.Error(err))
		}
		if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
			reg.ProcessRSSBytes.Set(float64(memInfo.RSS))
		} else if err != nil {
			logger.Debug("memory sample failed", zap.Error(err))
		}
		return nil
	})
}

// staleTopicSweep removes broadcasters with zero attached receivers,
// bounding the topic map's growth. This is additive housekeeping: a
// missing topic is already a no-op for publish, so removing one
// that nobody is listening to changes no observable behavior beyond
// reclaiming memory.
func staleTopicSweep(reg *metrics.Registry, logger *zap.Logger) schedule.Runnable {
	return schedule.RunnableFunc(func(ctx context.Context, s *store.Store) error {
		reg.JobRuns.WithLabelValues("staleTopicSweep").Inc()
		removed := s.SweepStaleTopics()
		if removed > 0 {
			logger.Debug("swept stale topics", zap.Int("removed", removed))
		}
		reg.TopicCount.Set(float64(s.TopicCount()))
		return nil
	})
}
