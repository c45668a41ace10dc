package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labops/patchctl/internal/logging"
	"github.com/labops/patchctl/internal/tracker"
	"github.com/labops/patchctl/internal/types"
)

// IssueTracker is the slice of the tracker surface the engine needs.
// Satisfied by tracker.Tracker implementations.
type IssueTracker interface {
	CreateIssue(ctx context.Context, title, body string, labels []string) (*tracker.Ref, error)
	CommentOnIssue(ctx context.Context, id, body string) error
	SearchOpenIssues(ctx context.Context, labelFilter, titleFilter string) ([]types.ExistingIssueRef, error)
	EnsureLabels(ctx context.Context, labels []string) error
}

// categoryMarkers map each category to the marker embedded in
// per-category issue titles.
var categoryMarkers = map[types.FailureCategory]string{
	types.CategoryModuleImport:           "module import failures",
	types.CategorySyntaxError:            "syntax errors",
	types.CategoryCommandMissing:         "missing commands",
	types.CategoryFileSystemError:        "filesystem errors",
	types.CategoryVersionControlConflict: "version control conflicts",
	types.CategoryConfigurationError:     "configuration errors",
	types.CategoryRuntimeError:           "runtime errors",
	types.CategoryOther:                  "unclassified failures",
}

// Engine plans and executes issue deduplication.
type Engine struct {
	tracker IssueTracker
	config  Config
	now     func() time.Time
}

// NewEngine creates a deduplication engine. A zero Config is replaced by
// DefaultConfig.
func NewEngine(tracker IssueTracker, config Config) (*Engine, error) {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup config: %w", err)
	}
	return &Engine{tracker: tracker, config: config, now: time.Now}, nil
}

// SetClock overrides the engine's clock for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Plan decides the create/update/skip action for the summary issue and
// for every category present in the analysis.
//
// Recency controls the decisions; the similarity scores in
// Strategy.Related are advisory annotations only.
func (e *Engine) Plan(ctx context.Context, analysis *types.FailureAnalysis, force bool) (*types.IssueStrategy, error) {
	existing, err := e.tracker.SearchOpenIssues(ctx, e.config.TrackingLabel, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing issues: %w", err)
	}

	now := e.now()
	strategy := &types.IssueStrategy{
		PerCategory: make(map[types.FailureCategory]types.CategoryDecision),
	}

	summaries := filterByTitle(existing, e.config.SummaryMarker)
	recentSummaries := filterByAge(summaries, now, e.config.SummaryLookback)

	if force {
		// Force bypasses the recency windows entirely. The counter
		// suffix still disambiguates against existing duplicates.
		strategy.SummaryAction = types.ActionCreate
		if n := len(recentSummaries); n > 0 {
			strategy.CounterSuffix = n + 1
		}
		for _, cat := range analysis.Categories() {
			strategy.PerCategory[cat] = types.CategoryDecision{Action: types.ActionCreate}
		}
		strategy.Related = e.scoreRelated(existing, analysis, now)
		return strategy, nil
	}

	// Summary decision: a fresh enough summary is updated in place;
	// too many recent duplicates get a counter suffix for visibility.
	newest := newestIssue(recentSummaries)
	switch {
	case newest != nil && newest.Age(now) < e.config.SummaryUpdateWindow:
		strategy.SummaryAction = types.ActionUpdate
		strategy.SummaryTarget = newest
	case len(recentSummaries) >= e.config.MaxSummaryDuplicates:
		strategy.SummaryAction = types.ActionCreate
		strategy.CounterSuffix = len(recentSummaries) + 1
	default:
		strategy.SummaryAction = types.ActionCreate
	}

	// Per-category decisions.
	for _, cat := range analysis.Categories() {
		marker := categoryMarkers[cat]
		matches := filterByTitle(existing, marker)
		newest := newestIssue(matches)
		if newest != nil && newest.Age(now) < e.config.CategoryUpdateWindow {
			strategy.PerCategory[cat] = types.CategoryDecision{
				Action:      types.ActionUpdate,
				TargetIssue: newest,
			}
			continue
		}
		strategy.PerCategory[cat] = types.CategoryDecision{Action: types.ActionCreate}
	}

	strategy.Related = e.scoreRelated(existing, analysis, now)

	if err := strategy.Validate(analysis); err != nil {
		return nil, fmt.Errorf("planned strategy is incomplete: %w", err)
	}
	return strategy, nil
}

// Execute applies a planned strategy: creates or updates the summary and
// per-category issues and records them in the session.
func (e *Engine) Execute(ctx context.Context, analysis *types.FailureAnalysis, strategy *types.IssueStrategy, session *types.TrackingSession) error {
	// Labeling is best effort; a failed label create never blocks triage.
	if err := e.tracker.EnsureLabels(ctx, []string{e.config.TrackingLabel}); err != nil {
		logging.Warn("failed to ensure tracking label", "error", err)
	}

	labels := []string{e.config.TrackingLabel}

	switch strategy.SummaryAction {
	case types.ActionCreate:
		title := e.SummaryTitle(strategy.CounterSuffix)
		body := BuildSummaryBody(analysis, strategy.Related, session.TrackingID)
		ref, err := e.tracker.CreateIssue(ctx, title, body, labels)
		if err != nil {
			return fmt.Errorf("failed to create summary issue: %w", err)
		}
		session.SummaryIssueID = ref.ID
	case types.ActionUpdate:
		body := BuildSummaryUpdate(analysis, session.TrackingID)
		if err := e.tracker.CommentOnIssue(ctx, strategy.SummaryTarget.ID, body); err != nil {
			return fmt.Errorf("failed to update summary issue %s: %w", strategy.SummaryTarget.ID, err)
		}
		session.SummaryIssueID = strategy.SummaryTarget.ID
	}

	for _, cat := range analysis.Categories() {
		decision := strategy.PerCategory[cat]
		records := analysis.ByCategory[cat]

		switch decision.Action {
		case types.ActionCreate:
			title := e.CategoryTitle(cat)
			body := BuildCategoryBody(cat, records, session.TrackingID)
			ref, err := e.tracker.CreateIssue(ctx, title, body, labels)
			if err != nil {
				return fmt.Errorf("failed to create issue for %s: %w", cat, err)
			}
			session.SubIssueIDs = append(session.SubIssueIDs, ref.ID)
		case types.ActionUpdate:
			body := BuildCategoryUpdate(cat, records, session.TrackingID)
			if err := e.tracker.CommentOnIssue(ctx, decision.TargetIssue.ID, body); err != nil {
				return fmt.Errorf("failed to update issue %s for %s: %w", decision.TargetIssue.ID, cat, err)
			}
			session.SubIssueIDs = append(session.SubIssueIDs, decision.TargetIssue.ID)
		}
	}

	return nil
}

// SummaryTitle renders the summary issue title, with the counter suffix
// when one is set.
func (e *Engine) SummaryTitle(counter int) string {
	title := fmt.Sprintf("Validation failures %s", e.config.SummaryMarker)
	if counter > 0 {
		title = fmt.Sprintf("%s (%d)", title, counter)
	}
	return title
}

// CategoryTitle renders the per-category issue title.
func (e *Engine) CategoryTitle(cat types.FailureCategory) string {
	return fmt.Sprintf("Patch validation: %s", categoryMarkers[cat])
}

// filterByTitle returns issues whose title contains needle.
func filterByTitle(issues []types.ExistingIssueRef, needle string) []types.ExistingIssueRef {
	var out []types.ExistingIssueRef
	for _, issue := range issues {
		if strings.Contains(issue.Title, needle) {
			out = append(out, issue)
		}
	}
	return out
}

// filterByAge returns issues created within window of now.
func filterByAge(issues []types.ExistingIssueRef, now time.Time, window time.Duration) []types.ExistingIssueRef {
	var out []types.ExistingIssueRef
	for _, issue := range issues {
		if issue.Age(now) < window {
			out = append(out, issue)
		}
	}
	return out
}

// newestIssue returns the most recently created issue, or nil.
func newestIssue(issues []types.ExistingIssueRef) *types.ExistingIssueRef {
	var newest *types.ExistingIssueRef
	for i := range issues {
		if newest == nil || issues[i].CreatedAt.After(newest.CreatedAt) {
			newest = &issues[i]
		}
	}
	return newest
}
