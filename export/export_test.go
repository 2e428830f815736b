package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/snapshot"
	"github.com/frugalcloud/sweeper/types"
)

func TestBuildAndWriteJSON(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	store, err := snapshot.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	scopeA := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}
	scopeB := types.Scope{Provider: "gcp", AccountUnit: "proj-1", Owner: "team-b"}

	require.NoError(t, store.Replace(scopeA, []types.Finding{
		{ResourceID: "sub-1/disk/d1", Reasons: "unattached", TotalCost: types.KnownCost(10)},
		{ResourceID: "sub-1/disk/d2", Reasons: "orphaned", TotalCost: types.KnownCost(2.5)},
		{ResourceID: "sub-1/db/x", Reasons: "untagged", TotalCost: types.UnknownCost()},
	}, now))
	require.NoError(t, store.Replace(scopeB, nil, now))

	report, err := Build(store, now)
	require.NoError(t, err)
	require.Len(t, report.Scopes, 2)

	// Scopes come back in key order: azure before gcp.
	a := report.Scopes[0]
	assert.Equal(t, scopeA, a.Scope)
	assert.Len(t, a.Findings, 3)
	assert.Equal(t, 12.5, a.KnownCost)
	assert.Equal(t, 1, a.UnknownCostFindings)

	b := report.Scopes[1]
	assert.Equal(t, scopeB, b.Scope)
	assert.Empty(t, b.Findings)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.GeneratedAt, decoded.GeneratedAt)
	assert.Len(t, decoded.Scopes, 2)
}

func TestBuildEmptyStore(t *testing.T) {
	store, err := snapshot.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	report, err := Build(store, time.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Scopes)
}
