package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labops/patchctl/internal/orchestrator"
	"github.com/labops/patchctl/internal/tracker"
	"github.com/labops/patchctl/internal/types"
)

var (
	applyExec           string
	applyCheck          string
	applyDryRun         bool
	applyForce          bool
	applySkipValidation bool
	applyNoPR           bool
	applyForceBranch    bool
	applyPriority       string
	applyFiles          []string
)

var applyCmd = &cobra.Command{
	Use:   "apply <description>",
	Short: "Drive a change through the patch workflow",
	Long: `Apply a change through the full workflow: decide the branch, run the
change command, validate, commit, open a pull request, and register
tracking issues. Validation failures are classified and deduplicated
against existing tracking issues before the run stops.

The change itself is the command given with --exec, run inside the
repository on the patch branch. Without --exec the run only prepares
the branch.

Examples:
  patchctl apply "fix syntax errors" --exec "./scripts/fix.sh"
  patchctl apply "bump deps" --exec "go get -u ./..." --check "go test ./..."
  patchctl apply "risky change" --dry-run
  patchctl apply "hotfix" --exec "./fix.sh" --force --no-pr`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		description := strings.Join(args, " ")

		gitOps, err := initGit(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize git: %w", err)
		}

		var trk tracker.Tracker
		var triager orchestrator.Triager
		if ghTracker, trackerErr := initTracker(ctx); trackerErr == nil {
			trk = ghTracker
			engine, engineErr := initDedup(ghTracker)
			if engineErr != nil {
				return engineErr
			}
			triager = engine
		} else if !applyNoPR && !applyDryRun {
			return trackerErr
		}

		opts := orchestrator.Options{
			BaseBranch:    cfg.BaseBranch,
			RetryAttempts: cfg.Retry.Attempts,
			RetryInterval: cfg.Retry.Interval,
			TrackingLabel: cfg.Dedup.TrackingLabel,
		}
		if applyCheck != "" {
			opts.Validator = &commandValidator{command: applyCheck}
		}

		var operation types.ChangeOperation
		if applyExec != "" {
			operation = commandOperation(applyExec)
		}

		req := &types.PatchRequest{
			Description:    description,
			Operation:      operation,
			AffectedFiles:  applyFiles,
			Priority:       types.Priority(applyPriority),
			DryRun:         applyDryRun,
			Force:          applyForce,
			SkipValidation: applySkipValidation,
			CreateArtifact: !applyNoPR,
			ForceNewBranch: applyForceBranch,
		}

		o := orchestrator.New(gitOps, trk, triager, opts)
		result, runErr := o.Run(ctx, req)
		if printErr := printResult(result); printErr != nil {
			return printErr
		}
		if runErr != nil {
			return fmt.Errorf("patch run failed in state %s", result.State)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyExec, "exec", "", "Command to run as the change operation")
	applyCmd.Flags().StringVar(&applyCheck, "check", "", "Validation command run before and after the change")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Report the branch decision without side effects")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "Proceed past validation failures (still tracked)")
	applyCmd.Flags().BoolVar(&applySkipValidation, "skip-validation", false, "Skip the pre-change validation pass")
	applyCmd.Flags().BoolVar(&applyNoPR, "no-pr", false, "Do not push or open a pull request")
	applyCmd.Flags().BoolVar(&applyForceBranch, "force-new-branch", false, "Always create a fresh patch branch")
	applyCmd.Flags().StringVar(&applyPriority, "priority", "", "Request priority: low, medium, high, or critical")
	applyCmd.Flags().StringSliceVar(&applyFiles, "file", nil, "Affected file hint (repeatable)")
	rootCmd.AddCommand(applyCmd)
}
