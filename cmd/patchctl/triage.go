package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/labops/patchctl/internal/analyzer"
	"github.com/labops/patchctl/internal/types"
)

var (
	triageLogType string
	triageForce   bool
	triageDryRun  bool
	triageResolve bool
)

var triageCmd = &cobra.Command{
	Use:   "triage <log-file>",
	Short: "Classify a validation log and file tracking issues",
	Long: `Parse a test or lint log, classify the failures into categories with
severity, and create or update tracking issues through the
deduplication engine.

Recent matching issues are updated instead of duplicated: a summary
issue younger than the update window gets a comment, and so does a
per-category issue.

Examples:
  patchctl triage test-output.log
  patchctl triage lint-output.log --type lint
  patchctl triage test-output.log --dry-run   # classify and plan only
  patchctl triage test-output.log --resolve   # close tracking issues on a clean log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read log file: %w", err)
		}

		var result *types.ValidationResult
		switch triageLogType {
		case "test":
			result = analyzer.ParseTestLog(string(data))
		case "lint":
			result = analyzer.ParseLintLog(string(data))
		default:
			return fmt.Errorf("invalid log type %q (want test or lint)", triageLogType)
		}

		analysis := analyzer.New().Classify(result)
		if err := printAnalysis(analysis); err != nil {
			return err
		}
		if analysis.TotalFailures == 0 {
			if triageResolve {
				return resolveTrackingIssues(ctx)
			}
			return nil
		}

		trk, err := initTracker(ctx)
		if err != nil {
			return err
		}
		engine, err := initDedup(trk)
		if err != nil {
			return err
		}

		strategy, err := engine.Plan(ctx, analysis, triageForce)
		if err != nil {
			return fmt.Errorf("failed to plan triage: %w", err)
		}

		if triageDryRun {
			fmt.Printf("\n%s\n", color.YellowString("DRY RUN - no issues will be touched"))
			fmt.Printf("Summary issue: %s\n", strategy.SummaryAction)
			for cat, decision := range strategy.PerCategory {
				fmt.Printf("  %s: %s\n", cat, decision.Action)
			}
			return nil
		}

		session := &types.TrackingSession{
			TrackingID: fmt.Sprintf("triage-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8]),
			StartedAt:  time.Now(),
		}
		if err := engine.Execute(ctx, analysis, strategy, session); err != nil {
			return fmt.Errorf("failed to execute triage: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Tracking updated: summary #%s, %d sub-issue(s)\n",
			green("✓"), session.SummaryIssueID, len(session.SubIssueIDs))
		return nil
	},
}

// resolveTrackingIssues closes the open tracking issues once validation
// passes again.
func resolveTrackingIssues(ctx context.Context) error {
	trk, err := initTracker(ctx)
	if err != nil {
		return err
	}

	open, err := trk.SearchOpenIssues(ctx, cfg.Dedup.TrackingLabel, "")
	if err != nil {
		return fmt.Errorf("failed to list tracking issues: %w", err)
	}
	if len(open) == 0 {
		fmt.Println("No open tracking issues to resolve")
		return nil
	}

	if triageDryRun {
		fmt.Printf("%s\n", color.YellowString("DRY RUN - no issues will be closed"))
		for _, issue := range open {
			fmt.Printf("  would close #%s %s\n", issue.ID, issue.Title)
		}
		return nil
	}

	for _, issue := range open {
		if err := trk.CloseIssue(ctx, issue.ID, "Validation is passing again; closing automatically."); err != nil {
			return fmt.Errorf("failed to close issue #%s: %w", issue.ID, err)
		}
		fmt.Printf("  closed #%s %s\n", issue.ID, issue.Title)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Resolved %d tracking issue(s)\n", green("✓"), len(open))
	return nil
}

func init() {
	triageCmd.Flags().StringVar(&triageLogType, "type", "test", "Log format: test or lint")
	triageCmd.Flags().BoolVar(&triageForce, "force", false, "Bypass deduplication windows and create fresh issues")
	triageCmd.Flags().BoolVar(&triageDryRun, "dry-run", false, "Plan the tracking actions without executing them")
	triageCmd.Flags().BoolVar(&triageResolve, "resolve", false, "Close open tracking issues when the log has no failures")
	rootCmd.AddCommand(triageCmd)
}
