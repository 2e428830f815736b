// Package scheduler polls the request store, resolves each due
// request's environments, and runs the scan pipeline against each one.
// A failing environment never blocks the others, and a dispatched
// request is always completed.
package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/costs"
	"github.com/frugalcloud/sweeper/normalize"
	"github.com/frugalcloud/sweeper/providers"
	"github.com/frugalcloud/sweeper/telemetry"
	"github.com/frugalcloud/sweeper/types"
)

// SnapshotStore is the slice of the snapshot store the scanner needs.
type SnapshotStore interface {
	Replace(scope types.Scope, findings []types.Finding, now time.Time) error
}

// OpenGateway opens a gateway for one environment. Wired to
// providers.Open in production, swapped for fakes in tests.
type OpenGateway func(ctx context.Context, env types.Environment, creds types.Credentials) (providers.Gateway, error)

// Classifier is the slice of the classification engine the scanner
// drives. Satisfied by *classify.Classifier.
type Classifier interface {
	Classify(ctx context.Context, in classify.Input) (*types.Finding, error)
	ClassifyOrphans(in classify.OrphanInput) []types.Finding
}

// Exporter dumps a merged finding set before the snapshot replace.
// Export is best effort; its failure never aborts the replace.
type Exporter interface {
	Export(scope types.Scope, findings []types.Finding, now time.Time) error
}

// Summary reports what one environment scan saw.
type Summary struct {
	Scope         types.Scope
	Resources     int
	Findings      int
	CostRows      int
	CostMatched   int
	CostUnmatched int
}

// Scanner runs the scan pipeline for one environment at a time.
type Scanner struct {
	open         OpenGateway
	classifier   Classifier
	snapshots    SnapshotStore
	exporter     Exporter
	logger       *telemetry.Logger
	lookbackDays int
}

// NewScanner wires the pipeline. lookbackDays is the shared window for
// both the cost join and utilization metrics.
func NewScanner(open OpenGateway, classifier Classifier, snapshots SnapshotStore, logger *telemetry.Logger, lookbackDays int) *Scanner {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Scanner{
		open:         open,
		classifier:   classifier,
		snapshots:    snapshots,
		logger:       logger,
		lookbackDays: lookbackDays,
	}
}

// SetExporter enables the optional pre-replace JSON export.
func (s *Scanner) SetExporter(e Exporter) {
	s.exporter = e
}

// relationKinds are fetched once per scan, in a fixed order.
var relationKinds = []types.RelationKind{
	types.RelationDisks,
	types.RelationInterfaces,
	types.RelationPublicIPs,
	types.RelationSecurityGroups,
	types.RelationFlowLogs,
	types.RelationNetworks,
}

// Scan runs the full pipeline for one environment and atomically
// replaces the scope's snapshot. Resource listing failures abandon the
// scan; cost, metric and relation failures degrade it.
func (s *Scanner) Scan(ctx context.Context, owner string, env types.Environment, creds types.Credentials, thresholds classify.Thresholds, now time.Time) (Summary, error) {
	scope := env.Scope(owner)
	summary := Summary{Scope: scope}

	ctx, span := telemetry.Tracer.Start(ctx, "scan.environment")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", env.Provider),
		attribute.String("account_unit", env.AccountUnit),
		attribute.String("owner", owner),
	)

	started := time.Now()
	defer func() {
		telemetry.ScanDuration.Record(ctx, time.Since(started).Seconds(),
			metric.WithAttributes(attribute.String("provider", env.Provider)))
	}()

	log := s.logger.WithContext(ctx)

	gw, err := s.open(ctx, env, creds)
	if err != nil {
		return summary, err
	}

	resources, err := gw.ListResources(ctx)
	if err != nil {
		return summary, err
	}
	summary.Resources = len(resources)

	window := costs.LookbackWindow(now, s.lookbackDays)
	table := s.loadCosts(ctx, gw, window)
	summary.CostRows = table.Len()

	findings := s.classifyResources(ctx, gw, resources, table, owner, thresholds, now, &summary)

	relations, liveRefs := s.loadRelations(ctx, gw, resources)
	findings = append(findings, s.classifier.ClassifyOrphans(classify.OrphanInput{
		Scope:     scope,
		Relations: relations,
		LiveRefs:  liveRefs,
		Costs:     table,
		Now:       now,
	})...)

	merged := classify.Merge(findings)
	summary.Findings = len(merged)

	if s.exporter != nil {
		if err := s.exporter.Export(scope, merged, now); err != nil {
			log.Warn().Err(err).Str("scope", scope.Key()).
				Msg("export failed, continuing with snapshot replace")
		}
	}

	if err := s.snapshots.Replace(scope, merged, now); err != nil {
		return summary, err
	}

	telemetry.FindingsEmitted.Add(ctx, int64(len(merged)),
		metric.WithAttributes(attribute.String("provider", env.Provider)))
	telemetry.SnapshotFindings.Record(ctx, int64(len(merged)),
		metric.WithAttributes(attribute.String("scope", scope.Key())))

	log.Info().
		Str("scope", scope.Key()).
		Int("resources", summary.Resources).
		Int("findings", summary.Findings).
		Int("cost_rows", summary.CostRows).
		Int("cost_matched", summary.CostMatched).
		Int("cost_unmatched", summary.CostUnmatched).
		Msg("scan complete")

	return summary, nil
}

// loadCosts joins the cost export. A cost failure degrades to an empty
// table; every resource then reports an unknown cost.
func (s *Scanner) loadCosts(ctx context.Context, gw providers.Gateway, window costs.Window) *costs.Table {
	rows, err := gw.ListCosts(ctx, window)
	if err != nil {
		s.logger.WithContext(ctx).Warn().Err(err).Msg("cost query failed, continuing without costs")
		return costs.Empty()
	}
	telemetry.CostRowsJoined.Add(ctx, int64(len(rows)))
	return costs.Build(rows)
}

// classifyResources evaluates every resource. A classification failure
// skips that one resource; the rest of the scan proceeds.
func (s *Scanner) classifyResources(ctx context.Context, gw providers.Gateway, resources []types.Resource, table *costs.Table, owner string, thresholds classify.Thresholds, now time.Time, summary *Summary) []types.Finding {
	window := costs.LookbackWindow(now, s.lookbackDays)
	var findings []types.Finding

	for _, r := range resources {
		key := normalize.Key(r.ID)
		cost := table.Lookup(key)
		if cost.Known {
			summary.CostMatched++
		} else {
			summary.CostUnmatched++
		}

		finding, err := s.classifier.Classify(ctx, classify.Input{
			Resource:   r,
			Key:        key,
			Owner:      owner,
			Cost:       cost,
			Metrics:    s.fetchMetrics(ctx, gw, r, window),
			Thresholds: thresholds,
			Now:        now,
		})
		if err != nil {
			s.logger.WithContext(ctx).Error().Err(err).
				Str("resource", r.ID).
				Msg("classification failed, skipping resource")
			continue
		}
		if finding != nil {
			findings = append(findings, *finding)
		}
	}

	return findings
}

// neededMetrics lists the metric names a kind's policy consumes.
func neededMetrics(kind types.ResourceKind) []string {
	switch kind {
	case types.KindStorage:
		return []string{classify.MetricUsedCapacity}
	case types.KindCompute:
		return []string{classify.MetricCPU, classify.MetricMemory, classify.MetricNetwork}
	case types.KindDatabase:
		return []string{classify.MetricDatabaseUsedGB}
	default:
		return nil
	}
}

// fetchMetrics pulls each needed metric. A failed fetch logs and leaves
// that metric absent; the policies stay silent on missing telemetry.
func (s *Scanner) fetchMetrics(ctx context.Context, gw providers.Gateway, r types.Resource, window costs.Window) map[string][]float64 {
	names := neededMetrics(r.Kind)
	if len(names) == 0 || gw == nil {
		return map[string][]float64{}
	}

	metrics := make(map[string][]float64, len(names))
	for _, name := range names {
		samples, err := gw.GetMetric(ctx, r, name, window)
		if err != nil {
			s.logger.WithContext(ctx).Warn().Err(err).
				Str("resource", r.Name).
				Str("metric", name).
				Msg("metric fetch failed, treating as no data")
			continue
		}
		if len(samples) > 0 {
			metrics[name] = samples
		}
	}
	return metrics
}

// loadRelations fetches every relation set, degrading each failed kind
// to an empty set, and builds the live-reference index for dangling
// checks from resources, security groups and networks. A flow log can
// target either a security group or a whole network, so both sets must
// be in the index.
func (s *Scanner) loadRelations(ctx context.Context, gw providers.Gateway, resources []types.Resource) (map[types.RelationKind][]types.Relation, map[string]bool) {
	relations := make(map[types.RelationKind][]types.Relation, len(relationKinds))
	for _, kind := range relationKinds {
		rels, err := gw.ListRelations(ctx, kind)
		if err != nil {
			s.logger.WithContext(ctx).Warn().Err(err).
				Str("relation", string(kind)).
				Msg("relation fetch failed, skipping kind")
			continue
		}
		relations[kind] = rels
	}

	liveRefs := make(map[string]bool)
	for _, r := range resources {
		liveRefs[normalize.Key(r.ID)] = true
	}
	for _, kind := range []types.RelationKind{types.RelationSecurityGroups, types.RelationNetworks} {
		for _, rel := range relations[kind] {
			liveRefs[normalize.Key(rel.ID)] = true
		}
	}
	return relations, liveRefs
}
