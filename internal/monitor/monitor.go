// Package monitor implements the background review monitor: a
// cancellable polling loop that watches the open publish artifact for
// new review material and re-enters a reduced apply, commit, push
// sequence when material appears.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labops/patchctl/internal/analyzer"
	"github.com/labops/patchctl/internal/git"
	"github.com/labops/patchctl/internal/logging"
	"github.com/labops/patchctl/internal/orchestrator"
	"github.com/labops/patchctl/internal/tracker"
	"github.com/labops/patchctl/internal/types"
)

// Handler applies one piece of review material to the working tree. The
// monitor commits and pushes whatever the handler changed.
type Handler func(ctx context.Context, comment tracker.ReviewComment) error

// Options configure a monitor.
type Options struct {
	// Branch is the watched patch branch. Required.
	Branch string

	// Interval between polls. Defaults to one minute.
	Interval time.Duration

	// MaxIterations stops the loop after that many polls. Zero means
	// unbounded.
	MaxIterations int

	// Deadline stops the loop at the given time. Zero means none.
	Deadline time.Time
}

func (o Options) validate() error {
	if o.Branch == "" {
		return fmt.Errorf("branch is required")
	}
	return nil
}

// Monitor polls for review material on one branch. It owns its own
// tracking session and never mutates another run's state. Use Locks to
// serialize against foreground runs on the same branch.
type Monitor struct {
	git      git.Operations
	source   tracker.ReviewSource
	handler  Handler
	triager  orchestrator.Triager
	analyzer *analyzer.Analyzer
	locks    *BranchLocks
	opts     Options

	session  *types.TrackingSession
	lastSeen time.Time

	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a monitor. The triager may be nil; escalated failures are
// then only logged.
func New(gitOps git.Operations, source tracker.ReviewSource, handler Handler, triager orchestrator.Triager, locks *BranchLocks, opts Options) (*Monitor, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor options: %w", err)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if locks == nil {
		locks = NewBranchLocks()
	}
	now := time.Now
	start := now()
	return &Monitor{
		git:      gitOps,
		source:   source,
		handler:  handler,
		triager:  triager,
		analyzer: analyzer.New(),
		locks:    locks,
		opts:     opts,
		session: &types.TrackingSession{
			TrackingID: fmt.Sprintf("monitor-%s-%s", start.UTC().Format("20060102-150405"), uuid.NewString()[:8]),
			StartedAt:  start,
		},
		// Material predating the session was already handled, or was
		// never ours to handle.
		lastSeen: start,
		now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SetClock overrides the monitor clock for deterministic tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// Start launches the polling loop in its own goroutine. The loop ends
// when Stop is called, the context is cancelled, or a guard
// (MaxIterations, Deadline) trips.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

// Stop requests loop shutdown. Safe to call more than once and before
// Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Done is closed when the loop has fully exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	logging.Info("monitor started", "branch", m.opts.Branch,
		"interval", m.opts.Interval, "tracking_id", m.session.TrackingID)

	iterations := 0
	for {
		select {
		case <-ctx.Done():
			logging.Info("monitor cancelled", "branch", m.opts.Branch)
			return
		case <-m.stop:
			logging.Info("monitor stopped", "branch", m.opts.Branch)
			return
		case <-ticker.C:
		}

		if !m.opts.Deadline.IsZero() && !m.now().Before(m.opts.Deadline) {
			logging.Info("monitor deadline reached", "branch", m.opts.Branch)
			return
		}

		if err := m.poll(ctx); err != nil {
			m.escalate(ctx, err)
		}

		iterations++
		if m.opts.MaxIterations > 0 && iterations >= m.opts.MaxIterations {
			logging.Info("monitor iteration limit reached", "branch", m.opts.Branch,
				"iterations", iterations)
			return
		}
	}
}

// poll runs one iteration: fetch review material and apply anything new.
// No new material means no state change.
func (m *Monitor) poll(ctx context.Context) error {
	comments, err := m.source.ListArtifactComments(ctx, m.opts.Branch)
	if err != nil {
		return fmt.Errorf("failed to list review material: %w", err)
	}

	fresh := m.newComments(comments)
	if len(fresh) == 0 {
		return nil
	}

	unlock := m.locks.Lock(m.opts.Branch)
	defer unlock()

	logging.Info("new review material found", "branch", m.opts.Branch, "count", len(fresh))
	for _, comment := range fresh {
		if err := m.apply(ctx, comment); err != nil {
			return err
		}
		if comment.CreatedAt.After(m.lastSeen) {
			m.lastSeen = comment.CreatedAt
		}
	}
	return nil
}

// newComments filters to material newer than the last applied comment,
// or newer than the session start before anything has been applied.
func (m *Monitor) newComments(comments []tracker.ReviewComment) []tracker.ReviewComment {
	var fresh []tracker.ReviewComment
	for _, c := range comments {
		if c.CreatedAt.After(m.lastSeen) {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

// apply runs the reduced sequence for one comment: handler, commit,
// push. A clean tree after the handler skips the push.
func (m *Monitor) apply(ctx context.Context, comment tracker.ReviewComment) error {
	if m.handler == nil {
		logging.Debug("no handler configured, skipping review material", "comment", comment.ID)
		return nil
	}
	if err := m.handler(ctx, comment); err != nil {
		return fmt.Errorf("failed to apply review material %s: %w", comment.ID, err)
	}

	if err := m.git.StageAll(ctx); err != nil {
		return fmt.Errorf("failed to stage review changes: %w", err)
	}

	message := fmt.Sprintf("Apply review suggestion from %s", comment.Author)
	hash, err := m.git.Commit(ctx, message)
	if errors.Is(err, git.ErrNothingToCommit) {
		logging.Debug("review material produced no changes", "comment", comment.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to commit review changes: %w", err)
	}

	if err := m.git.Push(ctx, m.opts.Branch); err != nil {
		return fmt.Errorf("failed to push review changes: %w", err)
	}
	logging.Info("review suggestion applied", "comment", comment.ID, "commit", hash)
	return nil
}

// escalate classifies a poll failure and routes it through triage under
// the monitor's own session.
func (m *Monitor) escalate(ctx context.Context, pollErr error) {
	logging.Error("monitor iteration failed", "branch", m.opts.Branch, "error", pollErr)
	if m.triager == nil {
		return
	}

	analysis := m.analyzer.Classify(&types.ValidationResult{
		Checks: map[string]types.CheckOutcome{
			"monitor": {Passed: false, Detail: "runtime error: " + pollErr.Error()},
		},
		RawOutput: pollErr.Error(),
	})
	strategy, err := m.triager.Plan(ctx, analysis, false)
	if err != nil {
		logging.Error("failed to plan monitor triage", "error", err)
		return
	}
	if err := m.triager.Execute(ctx, analysis, strategy, m.session); err != nil {
		logging.Error("failed to execute monitor triage", "error", err)
	}
}
