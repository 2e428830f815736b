// Package export renders the snapshot store as a JSON report for
// downstream tooling.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/frugalcloud/sweeper/snapshot"
	"github.com/frugalcloud/sweeper/types"
)

// Source is the slice of the snapshot store the exporter reads.
type Source interface {
	Stats() []snapshot.ScopeStat
	Find(scope types.Scope) ([]types.Finding, error)
}

// Report is the full export payload.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Scopes      []ScopeReport `json:"scopes"`
}

// ScopeReport is one scope's findings plus cost rollup.
type ScopeReport struct {
	Scope     types.Scope     `json:"scope"`
	UpdatedAt time.Time       `json:"updated_at"`
	Findings  []types.Finding `json:"findings"`

	// KnownCost sums the findings whose cost join matched.
	KnownCost float64 `json:"known_cost"`

	// UnknownCostFindings counts the ones it did not.
	UnknownCostFindings int `json:"unknown_cost_findings"`
}

// Build collects every scope's current snapshot into one report, in
// scope-key order.
func Build(src Source, now time.Time) (Report, error) {
	report := Report{GeneratedAt: now}

	for _, stat := range src.Stats() {
		scope, err := types.ParseScope(stat.Scope)
		if err != nil {
			return Report{}, err
		}
		findings, err := src.Find(scope)
		if err != nil {
			return Report{}, fmt.Errorf("failed to export %s: %w", stat.Scope, err)
		}

		sr := ScopeReport{Scope: scope, UpdatedAt: stat.UpdatedAt, Findings: findings}
		for _, f := range findings {
			if f.TotalCost.Known {
				sr.KnownCost += f.TotalCost.Amount
			} else {
				sr.UnknownCostFindings++
			}
		}
		report.Scopes = append(report.Scopes, sr)
	}
	return report, nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
