// Package types defines the shared data model for the patch workflow:
// requests, workflow states, failure classification, and tracking records.
package types

import (
	"context"
	"fmt"
	"time"
)

// Priority indicates how urgent a patch request is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid checks if the priority value is valid.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ChangeOperation is the caller-supplied unit of work applied on the patch
// branch. It may perform arbitrary file mutations and must signal failure
// through its error return. The orchestrator treats it as opaque and
// invokes it exactly once per run.
type ChangeOperation func(ctx context.Context) error

// PatchRequest describes a single code change to drive through the
// workflow. It is immutable once the orchestrator starts.
type PatchRequest struct {
	// Description is a human-readable summary of the change. Required.
	Description string

	// Operation performs the actual change. Optional: a nil operation
	// makes the run a branch/validate exercise with no file mutations.
	Operation ChangeOperation

	// AffectedFiles are optional hints about which files the operation
	// touches. Used only for reporting.
	AffectedFiles []string

	// Priority defaults to medium when unset.
	Priority Priority

	// DryRun stops the run after the branch decision, reporting what
	// would happen without side effects.
	DryRun bool

	// Force proceeds past validation failures (they are still triaged
	// and tracked) and bypasses deduplication windows.
	Force bool

	// SkipValidation skips the pre-operation validation pass.
	SkipValidation bool

	// CreateArtifact controls whether a publish artifact (pull request)
	// is created on success.
	CreateArtifact bool

	// ForceNewBranch forces creation of a fresh patch branch even when
	// the current branch would otherwise be reused.
	ForceNewBranch bool
}

// Validate checks that the request has usable field values.
func (r *PatchRequest) Validate() error {
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	if r.Priority != "" && !r.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", r.Priority)
	}
	return nil
}

// PatchState represents the state of a patch run in the workflow state
// machine.
type PatchState string

const (
	StateInit             PatchState = "init"              // Run created, nothing done yet
	StatePreValidate      PatchState = "pre_validate"      // Running pre-operation validation
	StateBranchReady      PatchState = "branch_ready"      // Branch decided and checked out
	StateOperationApplied PatchState = "operation_applied" // Change operation executed
	StateCommitted        PatchState = "committed"         // Changes staged and committed
	StatePostValidate     PatchState = "post_validate"     // Running post-operation validation
	StatePublished        PatchState = "published"         // Publish artifact created
	StateTracked          PatchState = "tracked"           // Tracking record registered
	StateComplete         PatchState = "complete"          // Terminal success
	StateFailed           PatchState = "failed"            // Terminal failure
	StateRolledBack       PatchState = "rolled_back"       // Terminal failure after compensation
)

// IsValid checks if the patch state value is valid.
func (s PatchState) IsValid() bool {
	switch s {
	case StateInit, StatePreValidate, StateBranchReady, StateOperationApplied,
		StateCommitted, StatePostValidate, StatePublished, StateTracked,
		StateComplete, StateFailed, StateRolledBack:
		return true
	}
	return false
}

// IsTerminal reports whether the state ends a run.
func (s PatchState) IsTerminal() bool {
	switch s {
	case StateComplete, StateFailed, StateRolledBack:
		return true
	}
	return false
}

// ValidTransitions defines the valid transitions of the patch state
// machine.
//
// State machine diagram:
//
//	init → pre_validate → branch_ready → operation_applied → committed
//	     → post_validate → published → tracked → complete
//
// Validation and publish steps are optional, so committed and
// post_validate may jump straight to complete. Every non-terminal state
// may also transition to failed, and failed may transition to
// rolled_back when a rollback point was captured.
func (s PatchState) ValidTransitions() []PatchState {
	switch s {
	case StateInit:
		return []PatchState{StatePreValidate, StateBranchReady, StateFailed}
	case StatePreValidate:
		return []PatchState{StateBranchReady, StateFailed}
	case StateBranchReady:
		return []PatchState{StateOperationApplied, StateComplete, StateFailed}
	case StateOperationApplied:
		return []PatchState{StateCommitted, StateFailed}
	case StateCommitted:
		return []PatchState{StatePostValidate, StatePublished, StateComplete, StateFailed}
	case StatePostValidate:
		return []PatchState{StatePublished, StateComplete, StateFailed}
	case StatePublished:
		return []PatchState{StateTracked, StateComplete, StateFailed}
	case StateTracked:
		return []PatchState{StateComplete, StateFailed}
	case StateComplete, StateRolledBack:
		return []PatchState{} // Terminal states
	case StateFailed:
		return []PatchState{StateRolledBack}
	default:
		return []PatchState{}
	}
}

// CanTransitionTo checks if a transition from this state to the target
// state is valid.
func (s PatchState) CanTransitionTo(target PatchState) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// RollbackPoint captures where to return to if the run fails after the
// working branch was created. Owned exclusively by the run that captured
// it.
type RollbackPoint struct {
	// BranchName is the branch the run was on before the patch branch
	// was created.
	BranchName string

	// CommitHash is the commit the patch branch started from.
	CommitHash string
}

// TrackingSession holds the external tracking records registered during
// one orchestrator run. Run-scoped; durable storage is the tracker's
// responsibility.
type TrackingSession struct {
	// TrackingID uniquely identifies the run. Time-derived plus a UUID
	// component so concurrent runs never collide.
	TrackingID string

	// SummaryIssueID is the id of the summary tracking issue, if one was
	// created or updated.
	SummaryIssueID string

	// SubIssueIDs are per-category issue ids created or updated.
	SubIssueIDs []string

	// StartedAt is when triage began.
	StartedAt time.Time
}

// PatchResult is the structured terminal outcome of an orchestrator run.
type PatchResult struct {
	State    PatchState `json:"state" yaml:"state"`
	Success  bool       `json:"success" yaml:"success"`
	Degraded bool       `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Message  string     `json:"message" yaml:"message"`

	// Branch is the branch the change landed on (or would land on, for
	// dry runs).
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`

	// CommitHash is the commit created by the run, when one exists.
	CommitHash string `json:"commit_hash,omitempty" yaml:"commit_hash,omitempty"`

	// ArtifactURL is the publish artifact (pull request) URL on success.
	ArtifactURL string `json:"artifact_url,omitempty" yaml:"artifact_url,omitempty"`

	// TrackingID identifies the run's tracking session.
	TrackingID string `json:"tracking_id,omitempty" yaml:"tracking_id,omitempty"`

	// TrackingIssueID references the tracking record created for a
	// failure, so failures are never silently dropped.
	TrackingIssueID string `json:"tracking_issue_id,omitempty" yaml:"tracking_issue_id,omitempty"`
}
