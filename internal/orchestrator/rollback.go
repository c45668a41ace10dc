package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/labops/patchctl/internal/git"
	"github.com/labops/patchctl/internal/logging"
	"github.com/labops/patchctl/internal/types"
)

// RollbackController executes compensating actions when a run reaches a
// terminal failure: reset the working tree to the pre-operation commit,
// then return to the original branch. Steps run in order; a failed step
// is reported but never stops the remaining steps.
type RollbackController struct {
	git git.Operations
}

// NewRollbackController creates a rollback controller.
func NewRollbackController(gitOps git.Operations) *RollbackController {
	return &RollbackController{git: gitOps}
}

// Rollback compensates a failed run from its rollback point. The
// returned error aggregates every failed step.
func (c *RollbackController) Rollback(ctx context.Context, point *types.RollbackPoint) error {
	if point == nil {
		return fmt.Errorf("no rollback point captured")
	}

	var errs []error

	logging.Info("rolling back working tree", "commit", point.CommitHash)
	if err := c.git.ResetHard(ctx, point.CommitHash); err != nil {
		logging.Error("failed to reset working tree", "commit", point.CommitHash, "error", err)
		errs = append(errs, fmt.Errorf("reset to %s: %w", point.CommitHash, err))
	}

	logging.Info("returning to original branch", "branch", point.BranchName)
	if err := c.git.Checkout(ctx, point.BranchName); err != nil {
		logging.Error("failed to return to original branch", "branch", point.BranchName, "error", err)
		errs = append(errs, fmt.Errorf("checkout %s: %w", point.BranchName, err))
	}

	return errors.Join(errs...)
}
