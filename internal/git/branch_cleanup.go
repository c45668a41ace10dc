package git

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RemoteBranch pairs a remote branch name with its last commit time.
type RemoteBranch struct {
	Name       string
	CommittedAt time.Time
}

// protectedRemoteBranches are never deleted by cleanup.
var protectedRemoteBranches = map[string]bool{
	"HEAD":   true,
	"main":   true,
	"master": true,
}

// ListRemoteBranches returns the branches on remote with their commit
// timestamps, newest first.
func (g *Git) ListRemoteBranches(ctx context.Context, remote string) ([]RemoteBranch, error) {
	out, err := g.run(ctx, "for-each-ref",
		"--sort=-committerdate",
		"--format=%(committerdate:iso8601-strict)%09%(refname)",
		fmt.Sprintf("refs/remotes/%s", remote))
	if err != nil {
		return nil, fmt.Errorf("failed to list remote branches: %w", err)
	}

	prefix := fmt.Sprintf("refs/remotes/%s/", remote)
	var branches []RemoteBranch
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[1], prefix) {
			continue
		}
		name := strings.TrimPrefix(parts[1], prefix)
		if protectedRemoteBranches[name] {
			continue
		}
		ts, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			continue
		}
		branches = append(branches, RemoteBranch{Name: name, CommittedAt: ts})
	}
	return branches, nil
}

// CleanupRemoteBranches deletes remote branches, keeping only the newest
// branch per clock hour. HEAD, main, and master are never touched. If
// dryRun is true, candidates are identified but not deleted. Returns the
// names of deleted (or would-be deleted) branches.
func (g *Git) CleanupRemoteBranches(ctx context.Context, remote string, dryRun bool) ([]string, error) {
	branches, err := g.ListRemoteBranches(ctx, remote)
	if err != nil {
		return nil, err
	}

	deleted := SelectBranchesToDelete(branches)

	if dryRun {
		return deleted, nil
	}

	for _, name := range deleted {
		if _, err := g.run(ctx, "push", remote, "--delete", name); err != nil {
			return deleted, fmt.Errorf("failed to delete remote branch %s: %w", name, err)
		}
	}
	return deleted, nil
}

// SelectBranchesToDelete applies the keep-newest-per-hour rule to a
// branch list sorted newest first: the first branch seen in each hour
// bucket is kept, the rest are deletion candidates.
func SelectBranchesToDelete(branches []RemoteBranch) []string {
	kept := make(map[string]bool)
	var deleted []string
	for _, b := range branches {
		bucket := b.CommittedAt.Format("2006-01-02 15")
		if !kept[bucket] {
			kept[bucket] = true
			continue
		}
		deleted = append(deleted, b.Name)
	}
	return deleted
}
