package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/labops/patchctl/internal/monitor"
	"github.com/labops/patchctl/internal/tracker"
)

var (
	monitorBranch   string
	monitorExec     string
	monitorInterval time.Duration
	monitorMaxIters int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the open pull request for new review material",
	Long: `Poll the open pull request of a patch branch for new review comments
and re-enter a reduced apply, commit, push sequence when material
appears. The loop runs until interrupted, the deadline passes, or the
iteration limit is reached.

Each new comment is passed to the --exec command through the
PATCHCTL_REVIEW_COMMENT environment variable; whatever the command
changes is committed and pushed.

Examples:
  patchctl monitor --branch patch/20240115-103000-fix-syntax-errors
  patchctl monitor --branch patch/x --exec "./scripts/apply-review.sh"
  patchctl monitor --branch patch/x --interval 30s --max-iterations 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gitOps, err := initGit(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize git: %w", err)
		}
		if monitorBranch == "" {
			monitorBranch, err = gitOps.CurrentBranch(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to detect the branch to watch: %w", err)
			}
		}

		trk, err := initTracker(cmd.Context())
		if err != nil {
			return err
		}
		engine, err := initDedup(trk)
		if err != nil {
			return err
		}

		var handler monitor.Handler
		if monitorExec != "" {
			handler = reviewHandler(monitorExec)
		}

		interval := monitorInterval
		if interval <= 0 {
			interval = cfg.Monitor.Interval
		}
		opts := monitor.Options{
			Branch:        monitorBranch,
			Interval:      interval,
			MaxIterations: monitorMaxIters,
		}
		if cfg.Monitor.Deadline > 0 {
			opts.Deadline = time.Now().Add(cfg.Monitor.Deadline)
		}

		m, err := monitor.New(gitOps, trk, handler, engine, monitor.NewBranchLocks(), opts)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s every %s (Ctrl-C to stop)\n",
			color.CyanString(monitorBranch), interval)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			m.Start(ctx)
			<-m.Done()
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			m.Stop()
			return nil
		})
		return g.Wait()
	},
}

// reviewHandler runs a command for each new review comment, exposing
// the comment body through the environment.
func reviewHandler(command string) monitor.Handler {
	return func(ctx context.Context, comment tracker.ReviewComment) error {
		op := commandOperationWithEnv(command, map[string]string{
			"PATCHCTL_REVIEW_COMMENT": comment.Body,
			"PATCHCTL_REVIEW_AUTHOR":  comment.Author,
		})
		return op(ctx)
	}
}

func init() {
	monitorCmd.Flags().StringVar(&monitorBranch, "branch", "", "Branch to watch (defaults to the current branch)")
	monitorCmd.Flags().StringVar(&monitorExec, "exec", "", "Command run for each new review comment")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Poll interval (defaults to the configured value)")
	monitorCmd.Flags().IntVar(&monitorMaxIters, "max-iterations", 0, "Stop after this many polls (0 means unbounded)")
	rootCmd.AddCommand(monitorCmd)
}
