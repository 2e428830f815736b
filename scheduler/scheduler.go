package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/telemetry"
	"github.com/frugalcloud/sweeper/types"
)

// JobStore is the slice of the request store the scheduler needs.
type JobStore interface {
	FindDue(now time.Time) ([]types.ScanRequest, error)
	MarkCompleted(ids []string, now time.Time) error
}

// EnvironmentDirectory resolves owners to environments, references to
// credentials and policy thresholds.
type EnvironmentDirectory interface {
	Environments(owner string) ([]types.Environment, error)
	Credentials(ref string) (types.Credentials, error)
	Thresholds(ref string) (classify.Thresholds, error)
}

// ScanRunner runs one environment scan.
type ScanRunner interface {
	Scan(ctx context.Context, owner string, env types.Environment, creds types.Credentials, thresholds classify.Thresholds, now time.Time) (Summary, error)
}

// Scheduler claims due requests on a fixed interval and dispatches each
// exactly once. A single goroutine owns the claim-dispatch-complete
// cycle, so two requests due at the same instant are both dispatched
// and neither is dispatched twice.
type Scheduler struct {
	jobs     JobStore
	dir      EnvironmentDirectory
	scanner  ScanRunner
	logger   *telemetry.Logger
	interval time.Duration
	clock    func() time.Time
}

// New builds a scheduler polling on interval.
func New(jobs JobStore, dir EnvironmentDirectory, scanner ScanRunner, logger *telemetry.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		jobs:     jobs,
		dir:      dir,
		scanner:  scanner,
		logger:   logger,
		interval: interval,
		clock:    time.Now,
	}
}

// Run polls until the context is canceled. One tick runs at startup so
// a long-overdue request is picked up immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			s.logger.WithContext(ctx).Error().Err(err).Msg("tick failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick claims every due request and dispatches it. The batch is marked
// completed unconditionally afterwards: completion records dispatch,
// not scan success, so a broken environment cannot wedge its request in
// Pending and re-fire forever.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock().UTC()
	log := s.logger.WithContext(ctx)

	due, err := s.jobs.FindDue(now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	ids := make([]string, 0, len(due))
	for _, req := range due {
		s.dispatch(ctx, req, now)
		ids = append(ids, req.ID)
	}

	if err := s.jobs.MarkCompleted(ids, now); err != nil {
		return err
	}

	telemetry.RequestsDispatched.Add(ctx, int64(len(ids)))
	log.Info().Int("requests", len(ids)).Msg("tick dispatched")
	return nil
}

// dispatch scans every environment of one request's owner. Environment
// failures are logged and isolated; they never abort the sibling
// environments or the request.
func (s *Scheduler) dispatch(ctx context.Context, req types.ScanRequest, now time.Time) {
	log := s.logger.WithContext(ctx)

	envs, err := s.dir.Environments(req.Owner)
	if err != nil {
		log.Error().Err(err).Str("owner", req.Owner).Str("request", req.ID).
			Msg("environment lookup failed")
		return
	}
	if len(envs) == 0 {
		log.Warn().Str("owner", req.Owner).Str("request", req.ID).
			Msg("owner has no environments, completing request without scans")
		return
	}

	for _, env := range envs {
		s.scanEnvironment(ctx, req, env, now)
	}
}

func (s *Scheduler) scanEnvironment(ctx context.Context, req types.ScanRequest, env types.Environment, now time.Time) {
	log := s.logger.WithContext(ctx)
	attrs := metric.WithAttributes(attribute.String("provider", env.Provider))

	creds, err := s.dir.Credentials(env.CredentialsRef)
	if err != nil {
		telemetry.ScansFailed.Add(ctx, 1, attrs)
		log.Error().Err(err).
			Str("owner", req.Owner).
			Str("provider", env.Provider).
			Str("account_unit", env.AccountUnit).
			Msg("credential resolution failed, skipping environment")
		return
	}

	thresholds, err := s.dir.Thresholds(env.PolicyConfigRef)
	if err != nil {
		log.Warn().Err(err).Str("owner", req.Owner).
			Msg("threshold lookup failed, using defaults")
		thresholds = classify.DefaultThresholds()
	}

	summary, err := s.scanner.Scan(ctx, req.Owner, env, creds, thresholds, now)
	if err != nil {
		telemetry.ScansFailed.Add(ctx, 1, attrs)
		log.Error().Err(err).
			Str("owner", req.Owner).
			Str("scope", summary.Scope.Key()).
			Msg("scan failed, previous snapshot preserved")
		return
	}

	telemetry.ScansSucceeded.Add(ctx, 1, attrs)
}
