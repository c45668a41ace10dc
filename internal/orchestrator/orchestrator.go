// Package orchestrator drives the patch workflow state machine:
// pre-validate, branch, apply, commit, post-validate, publish, track,
// with compensating rollback on terminal failure.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labops/patchctl/internal/analyzer"
	"github.com/labops/patchctl/internal/branch"
	"github.com/labops/patchctl/internal/git"
	"github.com/labops/patchctl/internal/logging"
	"github.com/labops/patchctl/internal/tracker"
	"github.com/labops/patchctl/internal/types"
)

// Validator runs the external validation step against the current
// working tree. The orchestrator never interprets the checks itself; it
// hands failures to the analyzer.
type Validator interface {
	Validate(ctx context.Context) (*types.ValidationResult, error)
}

// Triager plans and executes failure tracking. Satisfied by
// dedup.Engine.
type Triager interface {
	Plan(ctx context.Context, analysis *types.FailureAnalysis, force bool) (*types.IssueStrategy, error)
	Execute(ctx context.Context, analysis *types.FailureAnalysis, strategy *types.IssueStrategy, session *types.TrackingSession) error
}

// Options tune an orchestrator. The zero value is usable.
type Options struct {
	// Validator runs pre- and post-operation validation. Nil disables
	// both passes.
	Validator Validator

	// BaseBranch is the publish target. Defaults to "main".
	BaseBranch string

	// RetryAttempts bounds retries of external calls. Defaults to 3.
	RetryAttempts int

	// RetryInterval is the fixed backoff between retries. Defaults to
	// 2 seconds.
	RetryInterval time.Duration

	// TrackingLabel is applied to success tracking issues. Defaults to
	// "patchctl".
	TrackingLabel string
}

func (o Options) withDefaults() Options {
	if o.BaseBranch == "" {
		o.BaseBranch = "main"
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 2 * time.Second
	}
	if o.TrackingLabel == "" {
		o.TrackingLabel = "patchctl"
	}
	return o
}

// Orchestrator executes patch requests as a single sequential flow. One
// orchestrator may serve many runs; each Run owns its own session and
// rollback state.
type Orchestrator struct {
	git      git.Operations
	strategy *branch.Strategy
	analyzer *analyzer.Analyzer
	triager  Triager
	tracker  tracker.Tracker
	rollback *RollbackController
	opts     Options

	now   func() time.Time
	newID func() string
}

// New creates an orchestrator. The tracker may be nil for local-only
// runs; publish and tracking steps then report degraded success.
func New(gitOps git.Operations, trk tracker.Tracker, triager Triager, opts Options) *Orchestrator {
	return &Orchestrator{
		git:      gitOps,
		strategy: branch.NewStrategy(),
		analyzer: analyzer.New(),
		triager:  triager,
		tracker:  trk,
		rollback: NewRollbackController(gitOps),
		opts:     opts.withDefaults(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetClock overrides the clocks for deterministic tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
	o.strategy = branch.NewStrategyWithClock(now)
}

// run carries the mutable state of a single orchestrator run.
type run struct {
	o       *Orchestrator
	req     *types.PatchRequest
	state   types.PatchState
	session *types.TrackingSession
	point   *types.RollbackPoint
	result  *types.PatchResult
}

// Run drives one patch request through the workflow and returns its
// terminal result. The returned error is non-nil only for failed runs;
// degraded successes return a result with Degraded set and a nil error.
func (o *Orchestrator) Run(ctx context.Context, req *types.PatchRequest) (*types.PatchResult, error) {
	r := &run{
		o:     o,
		req:   req,
		state: types.StateInit,
		session: &types.TrackingSession{
			TrackingID: fmt.Sprintf("patch-%s-%s", o.now().UTC().Format("20060102-150405"), o.newID()[:8]),
			StartedAt:  o.now(),
		},
		result: &types.PatchResult{},
	}
	r.result.TrackingID = r.session.TrackingID

	if err := req.Validate(); err != nil {
		return r.fail(ctx, types.KindConfiguration, err)
	}

	if err := r.preValidate(ctx); err != nil {
		return r.failWith(ctx, err)
	}

	decision, err := r.decideBranch(ctx)
	if err != nil {
		return r.failWith(ctx, err)
	}

	if req.DryRun {
		return r.finishDryRun(decision)
	}

	if err := r.prepareBranch(ctx, decision); err != nil {
		return r.failWith(ctx, err)
	}

	if req.Operation == nil {
		r.advance(types.StateComplete)
		return r.finish("no change operation supplied; branch prepared"), nil
	}

	if err := r.applyOperation(ctx); err != nil {
		return r.failWith(ctx, err)
	}

	if err := r.commit(ctx); err != nil {
		return r.failWith(ctx, err)
	}

	if err := r.postValidate(ctx); err != nil {
		return r.failWith(ctx, err)
	}

	r.publishAndTrack(ctx, decision)

	r.advance(types.StateComplete)
	if r.result.Degraded {
		return r.finish("patch committed; publish or tracking degraded"), nil
	}
	return r.finish("patch applied"), nil
}

// advance moves the run to the next state, logging invalid transitions
// instead of panicking.
func (r *run) advance(to types.PatchState) {
	if !r.state.CanTransitionTo(to) {
		logging.Error("invalid state transition", "from", r.state, "to", to)
	}
	r.state = to
	r.result.State = to
}

// preValidate runs the pre-operation validation pass. Failures are
// always triaged; force downgrades them to a logged warning.
func (r *run) preValidate(ctx context.Context) error {
	if r.req.SkipValidation || r.o.opts.Validator == nil {
		return nil
	}
	r.advance(types.StatePreValidate)

	result, err := r.o.opts.Validator.Validate(ctx)
	if err != nil {
		return types.NewWorkflowError(types.KindValidation, r.state, err)
	}

	analysis := r.o.analyzer.Classify(result)
	if analysis.TotalFailures == 0 {
		return nil
	}

	r.triage(ctx, analysis)
	if r.req.Force {
		logging.Warn("pre-validation failed, proceeding under force",
			"failures", analysis.TotalFailures, "critical", analysis.CriticalCount)
		return nil
	}
	return types.NewWorkflowError(types.KindValidation, r.state,
		fmt.Errorf("%d validation failures (%d critical)", analysis.TotalFailures, analysis.CriticalCount))
}

// decideBranch detects the current branch and asks the strategy for a
// decision. Detection failures degrade rather than abort.
func (r *run) decideBranch(ctx context.Context) (branch.Decision, error) {
	current, err := r.o.git.CurrentBranch(ctx)
	var decision branch.Decision
	if err != nil {
		logging.Warn("branch detection failed, reusing last known branch", "error", err)
		decision = r.o.strategy.DecideDegraded(err)
	} else {
		decision = r.o.strategy.Decide(r.req.Description, current, r.req.ForceNewBranch)
	}

	if decision.TargetBranch == "" {
		return decision, types.NewWorkflowError(types.KindConfiguration, r.state,
			fmt.Errorf("branch strategy produced an empty target branch"))
	}
	r.result.Branch = decision.TargetBranch
	return decision, nil
}

// prepareBranch creates or reuses the target branch and captures the
// rollback point.
func (r *run) prepareBranch(ctx context.Context, decision branch.Decision) error {
	head, err := r.o.git.HeadHash(ctx)
	if err != nil {
		return types.NewWorkflowError(types.KindBranch, r.state, err)
	}

	if decision.SkipCreation {
		if decision.CurrentBranch != decision.TargetBranch {
			if err := r.o.git.Checkout(ctx, decision.TargetBranch); err != nil {
				return types.NewWorkflowError(types.KindBranch, r.state, err)
			}
		}
	} else {
		if err := r.o.git.CreateBranch(ctx, decision.TargetBranch, ""); err != nil {
			return types.NewWorkflowError(types.KindBranch, r.state, err)
		}
	}

	r.point = &types.RollbackPoint{
		BranchName: decision.CurrentBranch,
		CommitHash: head,
	}
	r.advance(types.StateBranchReady)
	logging.Info("branch ready", "branch", decision.TargetBranch, "reason", decision.Reason)
	return nil
}

// applyOperation invokes the caller's change operation exactly once,
// converting panics and errors into operation failures.
func (r *run) applyOperation(ctx context.Context) error {
	err := invokeGuarded(ctx, r.req.Operation)
	if err != nil {
		// The failure is triaged like any validation failure so the
		// run leaves an auditable record.
		r.triage(ctx, r.operationFailureAnalysis(err))
		return types.NewWorkflowError(types.KindOperation, r.state, err)
	}
	r.advance(types.StateOperationApplied)
	return nil
}

// invokeGuarded runs op, converting a panic into an error.
func invokeGuarded(ctx context.Context, op types.ChangeOperation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return op(ctx)
}

// operationFailureAnalysis classifies a change-operation failure.
func (r *run) operationFailureAnalysis(opErr error) *types.FailureAnalysis {
	result := &types.ValidationResult{
		Checks: map[string]types.CheckOutcome{
			"change-operation": {Passed: false, Detail: "runtime error: " + opErr.Error()},
		},
		RawOutput: opErr.Error(),
	}
	return r.o.analyzer.Classify(result)
}

// commit stages and commits the working tree. A clean tree after the
// operation is a proceedable no-op.
func (r *run) commit(ctx context.Context) error {
	if err := r.o.git.StageAll(ctx); err != nil {
		return types.NewWorkflowError(types.KindCommit, r.state, err)
	}

	message := r.commitMessage()
	hash, err := r.o.git.Commit(ctx, message)
	switch {
	case err == nil:
		r.result.CommitHash = hash
	case errors.Is(err, git.ErrNothingToCommit):
		logging.Info("operation produced no changes, proceeding")
		if head, headErr := r.o.git.HeadHash(ctx); headErr == nil {
			r.result.CommitHash = head
		}
	default:
		return types.NewWorkflowError(types.KindCommit, r.state, err)
	}

	r.advance(types.StateCommitted)
	return nil
}

func (r *run) commitMessage() string {
	message := r.req.Description
	if len(r.req.AffectedFiles) > 0 {
		message += "\n\nAffected files:"
		for _, f := range r.req.AffectedFiles {
			message += "\n- " + f
		}
	}
	return message
}

// postValidate re-runs validation against the committed change. Failures
// here are fatal unless forced, because the commit already exists.
func (r *run) postValidate(ctx context.Context) error {
	if r.o.opts.Validator == nil {
		return nil
	}
	r.advance(types.StatePostValidate)

	result, err := r.o.opts.Validator.Validate(ctx)
	if err != nil {
		return types.NewWorkflowError(types.KindValidation, r.state, err)
	}

	analysis := r.o.analyzer.Classify(result)
	if analysis.TotalFailures == 0 {
		return nil
	}

	r.triage(ctx, analysis)
	if r.req.Force {
		logging.Warn("post-validation failed, proceeding under force",
			"failures", analysis.TotalFailures, "critical", analysis.CriticalCount)
		return nil
	}
	return types.NewWorkflowError(types.KindValidation, r.state,
		fmt.Errorf("post-operation validation failed: %d failures (%d critical)",
			analysis.TotalFailures, analysis.CriticalCount))
}

// publishAndTrack pushes the branch, creates the publish artifact, and
// registers the success tracking record. Failures degrade the result
// instead of failing the run: the change is already committed.
func (r *run) publishAndTrack(ctx context.Context, decision branch.Decision) {
	if !r.req.CreateArtifact {
		return
	}
	if r.o.tracker == nil {
		logging.Warn("artifact requested but no tracker configured, reporting degraded success")
		r.result.Degraded = true
		return
	}

	if err := r.retryExternal(ctx, func() error {
		return r.o.git.Push(ctx, decision.TargetBranch)
	}); err != nil {
		logging.Error("push failed, reporting degraded success", "error", err)
		r.result.Degraded = true
		return
	}

	ref, err := r.ensureArtifact(ctx, decision)
	if err != nil {
		logging.Error("publish failed, reporting degraded success", "error", err)
		r.result.Degraded = true
		return
	}
	r.result.ArtifactURL = ref.URL
	r.advance(types.StatePublished)

	if err := r.trackSuccess(ctx, ref); err != nil {
		logging.Error("tracking failed, reporting degraded success", "error", err)
		r.result.Degraded = true
		return
	}
	r.advance(types.StateTracked)
}

// ensureArtifact reuses an open publish artifact for the branch when one
// exists, so re-runs after Complete never create duplicates.
func (r *run) ensureArtifact(ctx context.Context, decision branch.Decision) (*tracker.Ref, error) {
	var existing *tracker.Ref
	if err := r.retryExternal(ctx, func() error {
		var err error
		existing, err = r.o.tracker.ViewPublishArtifact(ctx, decision.TargetBranch)
		return err
	}); err != nil {
		return nil, err
	}
	if existing != nil {
		logging.Info("reusing open publish artifact", "url", existing.URL)
		return existing, nil
	}

	title := r.req.Description
	body := fmt.Sprintf("Automated patch.\n\n%s\n\nTracking ID: `%s`", r.req.Description, r.session.TrackingID)
	var ref *tracker.Ref
	err := r.retryExternal(ctx, func() error {
		var err error
		ref, err = r.o.tracker.CreatePublishArtifact(ctx, title, body, decision.TargetBranch, r.o.opts.BaseBranch)
		return err
	})
	return ref, err
}

// trackSuccess records the completed patch in the issue tracker.
func (r *run) trackSuccess(ctx context.Context, artifact *tracker.Ref) error {
	title := fmt.Sprintf("Patch applied: %s", r.req.Description)
	body := fmt.Sprintf("Branch: `%s`\nCommit: `%s`\nArtifact: %s\n\nTracking ID: `%s`",
		r.result.Branch, r.result.CommitHash, artifact.URL, r.session.TrackingID)

	var ref *tracker.Ref
	err := r.retryExternal(ctx, func() error {
		var err error
		ref, err = r.o.tracker.CreateIssue(ctx, title, body, []string{r.o.opts.TrackingLabel})
		return err
	})
	if err != nil {
		return err
	}
	r.result.TrackingIssueID = ref.ID
	return nil
}

// triage routes a failure analysis through the deduplication engine.
// Triage is best effort: a tracker outage must not mask the original
// failure.
func (r *run) triage(ctx context.Context, analysis *types.FailureAnalysis) {
	if r.o.triager == nil || analysis.TotalFailures == 0 {
		return
	}
	strategy, err := r.o.triager.Plan(ctx, analysis, r.req.Force)
	if err != nil {
		logging.Error("failed to plan failure triage", "error", err)
		return
	}
	if err := r.o.triager.Execute(ctx, analysis, strategy, r.session); err != nil {
		logging.Error("failed to execute failure triage", "error", err)
		return
	}
	r.result.TrackingIssueID = r.session.SummaryIssueID
}

// fail terminates the run with a fresh workflow error.
func (r *run) fail(ctx context.Context, kind types.ErrorKind, err error) (*types.PatchResult, error) {
	return r.failWith(ctx, types.NewWorkflowError(kind, r.state, err))
}

// failWith terminates the run, rolling back when the error kind is fatal
// and a rollback point was captured.
func (r *run) failWith(ctx context.Context, err error) (*types.PatchResult, error) {
	r.advance(types.StateFailed)

	kind, _ := types.KindOf(err)
	if r.point != nil && (kind.Fatal() || kind == types.KindValidation) {
		if rbErr := r.o.rollback.Rollback(ctx, r.point); rbErr != nil {
			logging.Error("rollback failed", "error", rbErr)
		} else {
			r.advance(types.StateRolledBack)
		}
	}

	r.result.Success = false
	r.result.Message = err.Error()
	logging.Error("patch run failed", "tracking_id", r.session.TrackingID,
		"state", r.result.State, "error", err)
	return r.result, err
}

// finishDryRun reports the branch decision without side effects.
func (r *run) finishDryRun(decision branch.Decision) (*types.PatchResult, error) {
	r.advance(types.StateBranchReady)
	r.advance(types.StateComplete)
	action := "create"
	if decision.SkipCreation {
		action = "reuse"
	}
	return r.finish(fmt.Sprintf("dry run: would %s branch %s (%s)",
		action, decision.TargetBranch, decision.Reason)), nil
}

func (r *run) finish(message string) *types.PatchResult {
	r.result.Success = true
	r.result.Message = message
	logging.Info("patch run finished", "tracking_id", r.session.TrackingID,
		"state", r.result.State, "branch", r.result.Branch)
	return r.result
}
