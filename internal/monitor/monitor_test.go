package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labops/patchctl/internal/git"
	"github.com/labops/patchctl/internal/tracker"
	"github.com/labops/patchctl/internal/types"
)

// fakeGit records mutations behind a mutex; the loop runs on its own
// goroutine.
type fakeGit struct {
	mu        sync.Mutex
	calls     []string
	commitErr error
}

func (g *fakeGit) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGit) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGit) CurrentBranch(context.Context) (string, error) { return "patch/x", nil }
func (g *fakeGit) CreateBranch(_ context.Context, name, _ string) error {
	g.record("create:" + name)
	return nil
}
func (g *fakeGit) Checkout(_ context.Context, ref string) error {
	g.record("checkout:" + ref)
	return nil
}
func (g *fakeGit) StageAll(context.Context) error {
	g.record("stage")
	return nil
}
func (g *fakeGit) Commit(_ context.Context, _ string) (string, error) {
	g.record("commit")
	if g.commitErr != nil {
		return "", g.commitErr
	}
	return "deadbee", nil
}
func (g *fakeGit) Push(_ context.Context, branch string) error {
	g.record("push:" + branch)
	return nil
}
func (g *fakeGit) HeadHash(context.Context) (string, error) { return "deadbee", nil }
func (g *fakeGit) DiffStats(context.Context, string, string) (*git.DiffStats, error) {
	return &git.DiffStats{}, nil
}
func (g *fakeGit) ResetHard(_ context.Context, ref string) error {
	g.record("reset:" + ref)
	return nil
}
func (g *fakeGit) HasUncommittedChanges(context.Context) (bool, error) { return false, nil }

type fakeSource struct {
	comments []tracker.ReviewComment
	err      error
}

func (s *fakeSource) ListArtifactComments(context.Context, string) ([]tracker.ReviewComment, error) {
	return s.comments, s.err
}

type fakeTriager struct {
	mu      sync.Mutex
	planned []*types.FailureAnalysis
}

func (f *fakeTriager) Plan(_ context.Context, analysis *types.FailureAnalysis, _ bool) (*types.IssueStrategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planned = append(f.planned, analysis)
	strategy := &types.IssueStrategy{
		SummaryAction: types.ActionCreate,
		PerCategory:   make(map[types.FailureCategory]types.CategoryDecision),
	}
	for _, cat := range analysis.Categories() {
		strategy.PerCategory[cat] = types.CategoryDecision{Action: types.ActionCreate}
	}
	return strategy, nil
}

func (f *fakeTriager) Execute(context.Context, *types.FailureAnalysis, *types.IssueStrategy, *types.TrackingSession) error {
	return nil
}

func (f *fakeTriager) plannedAnalyses() []*types.FailureAnalysis {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.FailureAnalysis(nil), f.planned...)
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop in time")
	}
}

func reviewComment(id string, offset time.Duration) tracker.ReviewComment {
	return tracker.ReviewComment{
		ID:        id,
		Author:    "reviewer",
		Body:      "please rename this",
		CreatedAt: time.Now().Add(offset),
	}
}

func TestMonitorRequiresBranch(t *testing.T) {
	_, err := New(&fakeGit{}, &fakeSource{}, nil, nil, nil, Options{})
	assert.Error(t, err)
}

func TestMonitorAppliesNewMaterialOnce(t *testing.T) {
	g := &fakeGit{}
	source := &fakeSource{comments: []tracker.ReviewComment{reviewComment("c1", time.Minute)}}
	applied := 0
	handler := func(context.Context, tracker.ReviewComment) error {
		applied++
		return nil
	}

	m, err := New(g, source, handler, nil, nil, Options{
		Branch:        "patch/x",
		Interval:      time.Millisecond,
		MaxIterations: 3,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	waitDone(t, m)

	assert.Equal(t, 1, applied, "already-seen material is not reapplied")
	assert.Equal(t, []string{"stage", "commit", "push:patch/x"}, g.recorded())
}

func TestMonitorIgnoresMaterialFromBeforeStart(t *testing.T) {
	g := &fakeGit{}
	source := &fakeSource{comments: []tracker.ReviewComment{
		reviewComment("old1", -time.Hour),
		reviewComment("old2", -time.Minute),
	}}
	handler := func(_ context.Context, c tracker.ReviewComment) error {
		t.Errorf("material %s predates the session and must not replay", c.ID)
		return nil
	}

	m, err := New(g, source, handler, nil, nil, Options{
		Branch:        "patch/x",
		Interval:      time.Millisecond,
		MaxIterations: 3,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	waitDone(t, m)

	assert.Empty(t, g.recorded())
}

func TestMonitorNoMaterialNoStateChange(t *testing.T) {
	g := &fakeGit{}
	m, err := New(g, &fakeSource{}, nil, nil, nil, Options{
		Branch:        "patch/x",
		Interval:      time.Millisecond,
		MaxIterations: 2,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	waitDone(t, m)

	assert.Empty(t, g.recorded())
}

func TestMonitorCleanTreeSkipsPush(t *testing.T) {
	g := &fakeGit{commitErr: fmt.Errorf("clean: %w", git.ErrNothingToCommit)}
	source := &fakeSource{comments: []tracker.ReviewComment{reviewComment("c1", time.Minute)}}
	handler := func(context.Context, tracker.ReviewComment) error { return nil }

	m, err := New(g, source, handler, nil, nil, Options{
		Branch:        "patch/x",
		Interval:      time.Millisecond,
		MaxIterations: 1,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	waitDone(t, m)

	assert.Equal(t, []string{"stage", "commit"}, g.recorded(), "no push on a clean tree")
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	m, err := New(&fakeGit{}, &fakeSource{}, nil, nil, nil, Options{
		Branch:   "patch/x",
		Interval: time.Hour,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	m.Stop()
	m.Stop()
	waitDone(t, m)
}

func TestMonitorContextCancellation(t *testing.T) {
	m, err := New(&fakeGit{}, &fakeSource{}, nil, nil, nil, Options{
		Branch:   "patch/x",
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	waitDone(t, m)
}

func TestMonitorDeadline(t *testing.T) {
	g := &fakeGit{}
	source := &fakeSource{comments: []tracker.ReviewComment{reviewComment("c1", time.Minute)}}
	handler := func(context.Context, tracker.ReviewComment) error {
		t.Error("handler must not run past the deadline")
		return nil
	}

	m, err := New(g, source, handler, nil, nil, Options{
		Branch:   "patch/x",
		Interval: time.Millisecond,
		Deadline: time.Now().Add(-time.Second),
	})
	require.NoError(t, err)

	m.Start(context.Background())
	waitDone(t, m)
	assert.Empty(t, g.recorded())
}

func TestMonitorEscalatesPollFailures(t *testing.T) {
	triager := &fakeTriager{}
	source := &fakeSource{err: errors.New("tracker timeout")}

	m, err := New(&fakeGit{}, source, nil, triager, nil, Options{
		Branch:        "patch/x",
		Interval:      time.Millisecond,
		MaxIterations: 1,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	waitDone(t, m)

	planned := triager.plannedAnalyses()
	require.Len(t, planned, 1)
	assert.NotEmpty(t, planned[0].ByCategory[types.CategoryRuntimeError])
}

func TestBranchLocksSerializePerBranch(t *testing.T) {
	locks := NewBranchLocks()
	unlock := locks.Lock("patch/x")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		release := locks.Lock("patch/x")
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}

	// Different branches never contend.
	other := locks.Lock("patch/y")
	other()
}
