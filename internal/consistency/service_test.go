package consistency

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-fm/gatehouse/internal/audit"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

type staticGraph struct {
	graph *rolegraph.Graph
}

func (s staticGraph) Snapshot(ctx context.Context) (*rolegraph.Graph, error) {
	return s.graph, nil
}

type fakeAccounts struct {
	assignments map[int64]rolegraph.Assignment
	removals    map[int64][]string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		assignments: make(map[int64]rolegraph.Assignment),
		removals:    make(map[int64][]string),
	}
}

func (f *fakeAccounts) add(id int64, roleKeys ...string) {
	f.assignments[id] = rolegraph.Assignment{UserID: strconv.FormatInt(id, 10), Roles: roleKeys}
}

func (f *fakeAccounts) Assignment(ctx context.Context, id int64) (rolegraph.Assignment, error) {
	return f.assignments[id], nil
}

func (f *fakeAccounts) ListAssignments(ctx context.Context) ([]rolegraph.Assignment, error) {
	out := make([]rolegraph.Assignment, 0, len(f.assignments))
	for _, a := range f.assignments {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAccounts) RemoveRoles(ctx context.Context, accountID int64, roleKeys []string) error {
	f.removals[accountID] = append([]string{}, roleKeys...)
	return nil
}

type fakeAudit struct {
	runs        []audit.Run
	conflicts   []audit.ConflictRecord
	resolutions []audit.Resolution
}

func (f *fakeAudit) RecordRun(ctx context.Context, run audit.Run, conflicts []audit.ConflictRecord) error {
	f.runs = append(f.runs, run)
	f.conflicts = append(f.conflicts, conflicts...)
	return nil
}

func (f *fakeAudit) RecordResolution(ctx context.Context, res audit.Resolution) error {
	f.resolutions = append(f.resolutions, res)
	return nil
}

type fakeObserver struct {
	accounts  int
	conflicts int
	calls     int
}

func (f *fakeObserver) ObserveSweep(accountsChecked, conflictsFound int, elapsed time.Duration) {
	f.accounts = accountsChecked
	f.conflicts = conflictsFound
	f.calls++
}

func testGraph() *rolegraph.Graph {
	return rolegraph.NewGraph([]rolegraph.Role{
		{Key: "portal", Partition: "portal"},
		{Key: "internal", Partition: "internal"},
		{Key: "technician", Implies: []string{"internal"}},
		{Key: "tenant", Implies: []string{"portal"}},
	})
}

func TestSweepFindsAndRecordsConflicts(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "technician")
	accounts.add(2, "tenant")
	accounts.add(3, "technician", "tenant")
	accounts.add(4, "internal", "tenant")

	auditStore := &fakeAudit{}
	observer := &fakeObserver{}
	svc := NewService(staticGraph{testGraph()}, accounts, auditStore, observer, nil, Options{})

	summary, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 4, summary.AccountsChecked)
	assert.Equal(t, 2, summary.ConflictsFound)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "3", summary.Results[0].AccountID)
	assert.Equal(t, "4", summary.Results[1].AccountID)
	assert.Equal(t, []string{"tenant"}, summary.Results[0].Suggested)
	assert.Equal(t, []string{"internal", "portal"}, summary.Results[0].Conflict.Partitions)

	require.Len(t, auditStore.runs, 1)
	assert.Equal(t, summary.RunID, auditStore.runs[0].ID)
	assert.Equal(t, 2, auditStore.runs[0].ConflictsFound)
	assert.Len(t, auditStore.conflicts, 2)

	assert.Equal(t, 1, observer.calls)
	assert.Equal(t, 4, observer.accounts)
	assert.Equal(t, 2, observer.conflicts)
}

func TestSweepFailsOnUnknownRole(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "technician")
	accounts.add(2, "ghost")

	auditStore := &fakeAudit{}
	svc := NewService(staticGraph{testGraph()}, accounts, auditStore, nil, nil, Options{})

	_, err := svc.Sweep(context.Background())
	var unknown *rolegraph.UnknownRoleError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Role)
	assert.Empty(t, auditStore.runs, "failed sweeps must not be recorded")
}

func TestSweepHonorsDepthCap(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "technician")

	svc := NewService(staticGraph{testGraph()}, accounts, nil, nil, nil, Options{MaxDepth: 1})

	_, err := svc.Sweep(context.Background())
	var exceeded *rolegraph.CycleDepthExceededError
	require.ErrorAs(t, err, &exceeded)
}

func TestCheckAccountCleanAndConflicting(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "technician")
	accounts.add(2, "technician", "tenant")

	svc := NewService(staticGraph{testGraph()}, accounts, nil, nil, nil, Options{})

	res, err := svc.CheckAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, res.Conflict)
	assert.Empty(t, res.Suggested)

	res, err = svc.CheckAccount(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, []string{"tenant"}, res.Suggested)
}

func TestResolveDryRunLeavesRolesUntouched(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(2, "technician", "tenant")
	auditStore := &fakeAudit{}
	svc := NewService(staticGraph{testGraph()}, accounts, auditStore, nil, nil, Options{})

	resolution, err := svc.Resolve(context.Background(), 2, false, "ops@fm")
	require.NoError(t, err)
	assert.False(t, resolution.Applied)
	assert.Equal(t, []string{"tenant"}, resolution.Suggested)
	assert.Empty(t, accounts.removals)
	assert.Empty(t, auditStore.resolutions)
}

func TestResolveAppliesAndAudits(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(2, "technician", "tenant")
	auditStore := &fakeAudit{}
	svc := NewService(staticGraph{testGraph()}, accounts, auditStore, nil, nil, Options{})

	resolution, err := svc.Resolve(context.Background(), 2, true, "ops@fm")
	require.NoError(t, err)
	assert.True(t, resolution.Applied)
	assert.Equal(t, []string{"tenant"}, accounts.removals[2])

	require.Len(t, auditStore.resolutions, 1)
	assert.Equal(t, "2", auditStore.resolutions[0].AccountID)
	assert.Equal(t, []string{"tenant"}, auditStore.resolutions[0].RemovedRoles)
	assert.Equal(t, "ops@fm", auditStore.resolutions[0].AppliedBy)
}

func TestResolveNoConflictIsNoop(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "technician")
	svc := NewService(staticGraph{testGraph()}, accounts, &fakeAudit{}, nil, nil, Options{})

	resolution, err := svc.Resolve(context.Background(), 1, true, "ops@fm")
	require.NoError(t, err)
	assert.False(t, resolution.Applied)
	assert.Nil(t, resolution.Conflict)
	assert.Empty(t, accounts.removals)
}

func TestCustomPriorityKeepsPortalSide(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(2, "technician", "tenant")
	svc := NewService(staticGraph{testGraph()}, accounts, nil, nil, nil, Options{Priority: []string{"portal", "internal"}})

	res, err := svc.CheckAccount(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"technician"}, res.Suggested)
}
