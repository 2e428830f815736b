// Package daemon wires the stores, the scan pipeline and the request
// scheduler into one long-running process.
package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/run"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/config"
	"github.com/frugalcloud/sweeper/directory"
	"github.com/frugalcloud/sweeper/export"
	"github.com/frugalcloud/sweeper/jobstore"
	"github.com/frugalcloud/sweeper/providers"
	"github.com/frugalcloud/sweeper/scheduler"
	"github.com/frugalcloud/sweeper/snapshot"
	"github.com/frugalcloud/sweeper/telemetry"
)

// Daemon owns the databases and the scheduler loop.
type Daemon struct {
	cfg       *config.Config
	logger    *telemetry.Logger
	jobs      *jobstore.Store
	snapshots *snapshot.Store
	dir       *directory.Directory
	sched     *scheduler.Scheduler
	startTime time.Time
}

// New opens the databases under cfg.DataDir and builds the scheduler.
// Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *telemetry.Logger) (*Daemon, error) {
	jobs, err := jobstore.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	snapshots, err := snapshot.Open(cfg.DataDir)
	if err != nil {
		_ = jobs.Close()
		return nil, err
	}
	dir, err := directory.Open(cfg.DataDir)
	if err != nil {
		_ = jobs.Close()
		_ = snapshots.Close()
		return nil, err
	}
	dir.SetDefaultThresholds(cfg.Thresholds)

	tags, err := classify.NewTagPolicy(ctx)
	if err != nil {
		_ = jobs.Close()
		_ = snapshots.Close()
		_ = dir.Close()
		return nil, err
	}

	scanner := scheduler.NewScanner(providers.Open, classify.New(tags), snapshots, logger, cfg.LookbackDays)
	if cfg.ExportDir != "" {
		sink, err := export.NewFileSink(cfg.ExportDir)
		if err != nil {
			_ = jobs.Close()
			_ = snapshots.Close()
			_ = dir.Close()
			return nil, err
		}
		scanner.SetExporter(sink)
	}
	sched := scheduler.New(jobs, dir, scanner, logger, cfg.PollInterval)

	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		jobs:      jobs,
		snapshots: snapshots,
		dir:       dir,
		sched:     sched,
		startTime: time.Now(),
	}, nil
}

// Run blocks until the context is canceled or one actor fails. The
// scheduler loop and the metrics server live in one run group, so a
// crash in either tears the whole process down cleanly.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group

	g.Add(func() error {
		return d.sched.Run(ctx)
	}, func(error) {
		cancel()
	})

	srv := d.metricsServer()
	g.Add(func() error {
		d.logger.WithContext(ctx).Info().Str("addr", srv.Addr).Msg("metrics server listening")
		return srv.ListenAndServe()
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	err := g.Run()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close closes the underlying databases.
func (d *Daemon) Close() error {
	return errors.Join(d.jobs.Close(), d.snapshots.Close(), d.dir.Close())
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Scopes        int    `json:"scopes"`
}

// Health reports liveness and the number of scopes with a snapshot.
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(d.startTime).Seconds()),
		Scopes:        len(d.snapshots.Stats()),
	}
}
