// Package git implements the version-control surface of the patch
// workflow over the git CLI.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNothingToCommit is returned by Commit when the working tree has no
// staged changes. Callers treat it as a proceedable no-op, not a failure.
var ErrNothingToCommit = errors.New("nothing to commit")

// Git implements Operations using the git CLI.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string

	// repoPath is the repository the instance operates on
	repoPath string
}

// New creates a Git instance rooted at repoPath.
// It verifies that git is available on the system.
func New(ctx context.Context, repoPath string) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath, repoPath: repoPath}, nil
}

// run executes a git command in the repository and returns its combined
// output. Failures wrap the captured output so diagnostics survive.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", g.repoPath}, args...)
	cmd := exec.CommandContext(ctx, g.gitPath, full...)
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		return text, fmt.Errorf("git %s failed: %w\noutput: %s", args[0], err, text)
	}
	return text, nil
}

// CurrentBranch returns the name of the checked-out branch.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return out, nil
}

// CreateBranch creates name from base and checks it out.
func (g *Git) CreateBranch(ctx context.Context, name, base string) error {
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return nil
}

// Checkout switches to an existing branch or ref.
func (g *Git) Checkout(ctx context.Context, ref string) error {
	if _, err := g.run(ctx, "checkout", ref); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", ref, err)
	}
	return nil
}

// StageAll stages every change in the working tree.
func (g *Git) StageAll(ctx context.Context) error {
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

// Commit creates a commit and returns its hash. Returns
// ErrNothingToCommit when the tree is clean.
func (g *Git) Commit(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("commit message is required")
	}

	out, err := g.run(ctx, "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") ||
			strings.Contains(out, "nothing added to commit") {
			return "", ErrNothingToCommit
		}
		return "", fmt.Errorf("commit failed: %w", err)
	}

	return g.HeadHash(ctx)
}

// Push pushes branch to origin, setting the upstream.
func (g *Git) Push(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return nil
}

// HeadHash returns the hash of HEAD.
func (g *Git) HeadHash(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD hash: %w", err)
	}
	return out, nil
}

// DiffStats summarizes changes between base and head using
// git diff --shortstat.
func (g *Git) DiffStats(ctx context.Context, base, head string) (*DiffStats, error) {
	out, err := g.run(ctx, "diff", "--shortstat", fmt.Sprintf("%s...%s", base, head))
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s...%s: %w", base, head, err)
	}
	return parseShortstat(out), nil
}

// ResetHard resets the working tree and index to ref.
func (g *Git) ResetHard(ctx context.Context, ref string) error {
	if _, err := g.run(ctx, "reset", "--hard", ref); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", ref, err)
	}
	return nil
}

// HasUncommittedChanges reports whether the working tree is dirty.
func (g *Git) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check working tree: %w", err)
	}
	return out != "", nil
}

// parseShortstat parses lines like
// " 3 files changed, 41 insertions(+), 7 deletions(-)".
// Any missing segment means zero.
func parseShortstat(out string) *DiffStats {
	stats := &DiffStats{}
	for _, part := range strings.Split(out, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(fields[1], "file"):
			stats.FilesChanged = n
		case strings.HasPrefix(fields[1], "insertion"):
			stats.LinesAdded = n
		case strings.HasPrefix(fields[1], "deletion"):
			stats.LinesRemoved = n
		}
	}
	return stats
}
