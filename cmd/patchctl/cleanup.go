package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cleanupRemote string
	cleanupDryRun bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up stale remote patch branches",
	Long: `Delete stale remote patch branches, keeping the newest branch per
hour so rapid successive runs leave one survivor per burst. Protected
branches (main, master, release/*) are never touched.

Examples:
  patchctl cleanup                 # Delete stale branches on origin
  patchctl cleanup --dry-run       # Preview what would be deleted
  patchctl cleanup --remote fork   # Clean a different remote`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gitOps, err := initGit(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize git: %w", err)
		}

		if cleanupDryRun {
			fmt.Printf("%s\n", color.YellowString("DRY RUN MODE - No branches will be deleted"))
		}

		deleted, err := gitOps.CleanupRemoteBranches(ctx, cleanupRemote, cleanupDryRun)
		if err != nil {
			return fmt.Errorf("branch cleanup failed: %w", err)
		}

		if len(deleted) == 0 {
			fmt.Println("No stale branches found")
			return nil
		}
		for _, name := range deleted {
			fmt.Printf("  %s\n", name)
		}
		if cleanupDryRun {
			fmt.Printf("Would delete %d branch(es); run without --dry-run to delete\n", len(deleted))
		} else {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s Deleted %d branch(es)\n", green("✓"), len(deleted))
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupRemote, "remote", "origin", "Remote to clean")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Preview deletions without performing them")
	rootCmd.AddCommand(cleanupCmd)
}
