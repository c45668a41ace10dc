package types

import (
	"fmt"
	"time"
)

// ExistingIssueRef is a read-only snapshot of an issue fetched from the
// external tracker. Never owned or mutated by this system.
type ExistingIssueRef struct {
	ID        string
	URL       string
	Title     string
	CreatedAt time.Time
	Labels    []string
}

// Age returns how old the issue is relative to now.
func (r *ExistingIssueRef) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// IssueAction is the per-issue decision of the deduplication engine.
type IssueAction string

const (
	ActionCreate IssueAction = "create" // Open a new tracking issue
	ActionUpdate IssueAction = "update" // Comment on an existing issue
	ActionSkip   IssueAction = "skip"   // Suppress duplicate noise
)

// IsValid checks if the action value is valid.
func (a IssueAction) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionSkip:
		return true
	}
	return false
}

// CategoryDecision is the deduplication decision for one failure category.
type CategoryDecision struct {
	Action IssueAction

	// TargetIssue is the existing issue to update. Set only when Action
	// is ActionUpdate.
	TargetIssue *ExistingIssueRef
}

// IssueStrategy is the full output of the deduplication engine: a defined
// action for the summary issue and for every category present in the
// analysis.
type IssueStrategy struct {
	SummaryAction IssueAction

	// SummaryTarget is the existing summary issue to update, when
	// SummaryAction is ActionUpdate.
	SummaryTarget *ExistingIssueRef

	// CounterSuffix disambiguates the summary title when recent
	// duplicates exist. Zero means no suffix.
	CounterSuffix int

	// PerCategory maps each category present in the analysis to its
	// decision. Never missing a present category.
	PerCategory map[FailureCategory]CategoryDecision

	// Related lists issues whose similarity score exceeded the advisory
	// threshold. Reported in issue bodies, never used to decide actions.
	Related []ScoredIssue
}

// ScoredIssue pairs an existing issue with its similarity score.
type ScoredIssue struct {
	Issue ExistingIssueRef
	Score float64
}

// Validate checks the strategy defines an action everywhere it must.
func (s *IssueStrategy) Validate(analysis *FailureAnalysis) error {
	if !s.SummaryAction.IsValid() {
		return fmt.Errorf("invalid summary action: %s", s.SummaryAction)
	}
	if s.SummaryAction == ActionUpdate && s.SummaryTarget == nil {
		return fmt.Errorf("summary action is update but no target issue set")
	}
	for _, cat := range analysis.Categories() {
		decision, ok := s.PerCategory[cat]
		if !ok {
			return fmt.Errorf("no decision for category %s", cat)
		}
		if !decision.Action.IsValid() {
			return fmt.Errorf("invalid action for category %s: %s", cat, decision.Action)
		}
		if decision.Action == ActionUpdate && decision.TargetIssue == nil {
			return fmt.Errorf("category %s action is update but no target issue set", cat)
		}
	}
	return nil
}
