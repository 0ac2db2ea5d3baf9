// Command insomniadb runs the key/value store server: the shared state
// engine, its background workers, the command dispatcher over TCP, and the
// admin/metrics HTTP side listener.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/RamziA961/insomnia-db/internal/config"
	"github.com/RamziA961/insomnia-db/internal/jobs"
	"github.com/RamziA961/insomnia-db/internal/logging"
	"github.com/RamziA961/insomnia-db/internal/metrics"
	"github.com/RamziA961/insomnia-db/internal/resguard"
	"github.com/RamziA961/insomnia-db/internal/schedule"
	"github.com/RamziA961/insomnia-db/internal/server"
	"github.com/RamziA961/insomnia-db/internal/store"
)

func main() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set GOMAXPROCS: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	reg := metrics.NewRegistry()

	s := store.NewWithCapacity(cfg.Topics.BroadcastCapacity)
	queue := schedule.NewQueue()
	if err := jobs.Register(queue, reg, logger, cfg.Jobs.MetricsSampleInterval, cfg.Jobs.StaleTopicSweepInterval, time.Now()); err != nil {
		logger.Fatal("failed to register jobs", zap.Error(err))
	}

	guard := resguard.New(cfg.Server.MaxConnections, cfg.Server.AcceptRatePerSec, cfg.Server.AcceptBurst, cfg.Server.AcceptGraceTimeout)
	srv := server.New(cfg.Server.Host, cfg.Server.Port, guard, s, logger, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go store.RunExpirationWorker(ctx, s, logger)
	go schedule.RunJobWorker(ctx, queue, s, logger, func(jobName string) {
		reg.JobFailures.WithLabelValues(jobName).Inc()
	})

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}

	var adminErrCh chan error
	if cfg.Metrics.Enabled {
		adminErrCh = make(chan error, 1)
		go func() {
			adminErrCh <- server.RunAdminHTTP(ctx, cfg.Metrics.ListenAddr, s, reg, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-adminErrCh:
		if err != nil {
			logger.Error("admin http server error", zap.Error(err))
		}
		stop()
	}

	srv.Stop()
	s.Shutdown()
	logger.Info("server stopped")
}
