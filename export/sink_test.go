package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/types"
)

func TestFileSinkWritesScopeFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	scope := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}

	require.NoError(t, sink.Export(scope, []types.Finding{
		{ResourceID: "sub-1/disk/d1", Reasons: "unattached", TotalCost: types.KnownCost(3)},
		{ResourceID: "sub-1/db/x", Reasons: "untagged", TotalCost: types.UnknownCost()},
	}, now))

	data, err := os.ReadFile(filepath.Join(dir, "azure_sub-1_team-a.json"))
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Scopes, 1)
	assert.Equal(t, scope, report.Scopes[0].Scope)
	assert.Len(t, report.Scopes[0].Findings, 2)
	assert.Equal(t, 3.0, report.Scopes[0].KnownCost)
	assert.Equal(t, 1, report.Scopes[0].UnknownCostFindings)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSinkOverwritesPriorExport(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	scope := types.Scope{Provider: "gcp", AccountUnit: "proj-1", Owner: "team-b"}
	now := time.Now().UTC()

	require.NoError(t, sink.Export(scope, []types.Finding{{ResourceID: "a"}}, now))
	require.NoError(t, sink.Export(scope, nil, now.Add(time.Hour)))

	data, err := os.ReadFile(filepath.Join(dir, "gcp_proj-1_team-b.json"))
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Empty(t, report.Scopes[0].Findings)
}
