package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/telemetry"
	"github.com/frugalcloud/sweeper/types"
)

type fakeJobs struct {
	due       []types.ScanRequest
	completed [][]string
}

func (f *fakeJobs) FindDue(now time.Time) ([]types.ScanRequest, error) {
	out := f.due
	f.due = nil
	return out, nil
}

func (f *fakeJobs) MarkCompleted(ids []string, now time.Time) error {
	f.completed = append(f.completed, ids)
	return nil
}

type fakeDirectory struct {
	envs     map[string][]types.Environment
	creds    map[string]types.Credentials
	credErrs map[string]error
}

func (f *fakeDirectory) Environments(owner string) ([]types.Environment, error) {
	return f.envs[owner], nil
}

func (f *fakeDirectory) Credentials(ref string) (types.Credentials, error) {
	if err := f.credErrs[ref]; err != nil {
		return types.Credentials{}, err
	}
	return f.creds[ref], nil
}

func (f *fakeDirectory) Thresholds(ref string) (classify.Thresholds, error) {
	return classify.DefaultThresholds(), nil
}

type scanCall struct {
	owner string
	env   types.Environment
}

type fakeScanner struct {
	calls []scanCall
	fail  map[string]error // keyed by account unit
}

func (f *fakeScanner) Scan(ctx context.Context, owner string, env types.Environment, creds types.Credentials, thresholds classify.Thresholds, now time.Time) (Summary, error) {
	f.calls = append(f.calls, scanCall{owner: owner, env: env})
	if err := f.fail[env.AccountUnit]; err != nil {
		return Summary{Scope: env.Scope(owner)}, err
	}
	return Summary{Scope: env.Scope(owner), Findings: 1}, nil
}

func testScheduler(jobs *fakeJobs, dir *fakeDirectory, scanner *fakeScanner) *Scheduler {
	s := New(jobs, dir, scanner, telemetry.NewLogger("test"), time.Second)
	s.clock = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestTickDispatchesEachDueRequestOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{due: []types.ScanRequest{
		{ID: "a", Owner: "team-a", ScheduledAt: now},
		{ID: "b", Owner: "team-b", ScheduledAt: now},
	}}
	dir := &fakeDirectory{
		envs: map[string][]types.Environment{
			"team-a": {{Provider: "azure", AccountUnit: "sub-1", CredentialsRef: "c1"}},
			"team-b": {{Provider: "gcp", AccountUnit: "proj-1", CredentialsRef: "c2"}},
		},
		creds: map[string]types.Credentials{"c1": {}, "c2": {}},
	}
	scanner := &fakeScanner{}

	s := testScheduler(jobs, dir, scanner)
	require.NoError(t, s.Tick(context.Background()))

	assert.Len(t, scanner.calls, 2)
	require.Len(t, jobs.completed, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, jobs.completed[0])

	// Second tick has nothing due: no re-dispatch.
	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, scanner.calls, 2)
	assert.Len(t, jobs.completed, 1)
}

func TestFailedEnvironmentDoesNotBlockSiblings(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{due: []types.ScanRequest{{ID: "a", Owner: "team-a", ScheduledAt: now}}}
	dir := &fakeDirectory{
		envs: map[string][]types.Environment{
			"team-a": {
				{Provider: "azure", AccountUnit: "broken", CredentialsRef: "c1"},
				{Provider: "gcp", AccountUnit: "healthy", CredentialsRef: "c2"},
			},
		},
		creds: map[string]types.Credentials{"c1": {}, "c2": {}},
	}
	scanner := &fakeScanner{fail: map[string]error{"broken": errors.New("list resources: denied")}}

	s := testScheduler(jobs, dir, scanner)
	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, scanner.calls, 2)
	assert.Equal(t, "healthy", scanner.calls[1].env.AccountUnit)
	require.Len(t, jobs.completed, 1)
	assert.Equal(t, []string{"a"}, jobs.completed[0])
}

func TestCredentialFailureSkipsOnlyThatEnvironment(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{due: []types.ScanRequest{{ID: "a", Owner: "team-a", ScheduledAt: now}}}
	dir := &fakeDirectory{
		envs: map[string][]types.Environment{
			"team-a": {
				{Provider: "azure", AccountUnit: "sub-1", CredentialsRef: "bad"},
				{Provider: "gcp", AccountUnit: "proj-1", CredentialsRef: "good"},
			},
		},
		creds:    map[string]types.Credentials{"good": {}},
		credErrs: map[string]error{"bad": errors.New("not found")},
	}
	scanner := &fakeScanner{}

	s := testScheduler(jobs, dir, scanner)
	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, scanner.calls, 1)
	assert.Equal(t, "proj-1", scanner.calls[0].env.AccountUnit)
	assert.Len(t, jobs.completed, 1)
}

func TestOwnerWithoutEnvironmentsStillCompletes(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{due: []types.ScanRequest{{ID: "a", Owner: "ghost", ScheduledAt: now}}}
	dir := &fakeDirectory{envs: map[string][]types.Environment{}}
	scanner := &fakeScanner{}

	s := testScheduler(jobs, dir, scanner)
	require.NoError(t, s.Tick(context.Background()))

	assert.Empty(t, scanner.calls)
	require.Len(t, jobs.completed, 1)
	assert.Equal(t, []string{"a"}, jobs.completed[0])
}

func TestEmptyTickCompletesNothing(t *testing.T) {
	jobs := &fakeJobs{}
	s := testScheduler(jobs, &fakeDirectory{}, &fakeScanner{})

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, jobs.completed)
}
