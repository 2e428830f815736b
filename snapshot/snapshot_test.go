package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func scanFinding(id string) types.Finding {
	return types.Finding{
		ResourceID:      id,
		Provider:        "azure",
		AccountUnit:     "sub-1",
		ScanOwner:       "team-a",
		Reasons:         "unattached",
		Recommendations: "attach or delete",
	}
}

func TestReplaceAndFind(t *testing.T) {
	store := openTestStore(t)
	scope := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Replace(scope, []types.Finding{
		scanFinding("disk/a"),
		scanFinding("disk/b"),
	}, now))

	found, err := store.Find(scope)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestReplaceSwapsWholeScope(t *testing.T) {
	store := openTestStore(t)
	scope := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}
	now := time.Now().UTC()

	require.NoError(t, store.Replace(scope, []types.Finding{
		scanFinding("disk/a"),
		scanFinding("disk/b"),
		scanFinding("disk/c"),
	}, now))
	require.NoError(t, store.Replace(scope, []types.Finding{
		scanFinding("disk/d"),
	}, now.Add(time.Hour)))

	found, err := store.Find(scope)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "disk/d", found[0].ResourceID)
}

func TestReplaceEmptySetClearsScope(t *testing.T) {
	store := openTestStore(t)
	scope := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}
	now := time.Now().UTC()

	require.NoError(t, store.Replace(scope, []types.Finding{scanFinding("disk/a")}, now))
	require.NoError(t, store.Replace(scope, nil, now.Add(time.Hour)))

	found, err := store.Find(scope)
	require.NoError(t, err)
	assert.Empty(t, found)

	stats := store.Stats()
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].Findings)
}

func TestScopesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	a := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}
	b := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-b"}
	now := time.Now().UTC()

	require.NoError(t, store.Replace(a, []types.Finding{scanFinding("disk/a")}, now))
	require.NoError(t, store.Replace(b, []types.Finding{scanFinding("disk/b"), scanFinding("disk/c")}, now))
	require.NoError(t, store.Replace(a, nil, now))

	foundB, err := store.Find(b)
	require.NoError(t, err)
	assert.Len(t, foundB, 2)
}

func TestFindUnknownScope(t *testing.T) {
	store := openTestStore(t)
	found, err := store.Find(types.Scope{Provider: "gcp", AccountUnit: "p", Owner: "o"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStatsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	scope := types.Scope{Provider: "azure", AccountUnit: "sub-1", Owner: "team-a"}
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Replace(scope, []types.Finding{scanFinding("disk/a")}, now))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	stats := reopened.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, scope.Key(), stats[0].Scope)
	assert.Equal(t, 1, stats[0].Findings)
	assert.True(t, stats[0].UpdatedAt.Equal(now))
}
