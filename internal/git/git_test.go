package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// newTestRepo initializes a throwaway git repository with one commit.
func newTestRepo(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = tmpDir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	run("init", "-b", "main")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")

	if err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("seed\n"), 0644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	run("add", "-A")
	run("commit", "-m", "initial commit")

	return tmpDir
}

func TestGitWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	g, err := New(ctx, repo)
	if err != nil {
		t.Fatalf("failed to create Git instance: %v", err)
	}

	t.Run("CurrentBranch", func(t *testing.T) {
		branch, err := g.CurrentBranch(ctx)
		if err != nil {
			t.Fatalf("CurrentBranch failed: %v", err)
		}
		if branch != "main" {
			t.Errorf("branch = %q, want main", branch)
		}
	})

	t.Run("CreateBranchAndCommit", func(t *testing.T) {
		if err := g.CreateBranch(ctx, "patch/20240101-000000-test", ""); err != nil {
			t.Fatalf("CreateBranch failed: %v", err)
		}

		file := filepath.Join(repo, "change.txt")
		if err := os.WriteFile(file, []byte("patched\n"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		dirty, err := g.HasUncommittedChanges(ctx)
		if err != nil {
			t.Fatalf("HasUncommittedChanges failed: %v", err)
		}
		if !dirty {
			t.Error("expected dirty working tree")
		}

		if err := g.StageAll(ctx); err != nil {
			t.Fatalf("StageAll failed: %v", err)
		}
		hash, err := g.Commit(ctx, "apply test patch")
		if err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if len(hash) < 7 {
			t.Errorf("suspicious commit hash %q", hash)
		}
	})

	t.Run("NoOpCommit", func(t *testing.T) {
		_, err := g.Commit(ctx, "empty commit attempt")
		if !errors.Is(err, ErrNothingToCommit) {
			t.Errorf("expected ErrNothingToCommit, got %v", err)
		}
	})

	t.Run("DiffStats", func(t *testing.T) {
		stats, err := g.DiffStats(ctx, "main", "patch/20240101-000000-test")
		if err != nil {
			t.Fatalf("DiffStats failed: %v", err)
		}
		if stats.FilesChanged != 1 {
			t.Errorf("FilesChanged = %d, want 1", stats.FilesChanged)
		}
		if stats.LinesAdded != 1 {
			t.Errorf("LinesAdded = %d, want 1", stats.LinesAdded)
		}
	})

	t.Run("ResetHardAndCheckout", func(t *testing.T) {
		head, err := g.HeadHash(ctx)
		if err != nil {
			t.Fatalf("HeadHash failed: %v", err)
		}

		file := filepath.Join(repo, "scratch.txt")
		if err := os.WriteFile(file, []byte("discard me\n"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if err := g.ResetHard(ctx, head); err != nil {
			t.Fatalf("ResetHard failed: %v", err)
		}

		if err := g.Checkout(ctx, "main"); err != nil {
			t.Fatalf("Checkout failed: %v", err)
		}
		branch, err := g.CurrentBranch(ctx)
		if err != nil {
			t.Fatalf("CurrentBranch failed: %v", err)
		}
		if branch != "main" {
			t.Errorf("branch = %q, want main", branch)
		}
	})
}

func TestCommitRequiresMessage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	g, err := New(ctx, repo)
	if err != nil {
		t.Fatalf("failed to create Git instance: %v", err)
	}

	if _, err := g.Commit(ctx, ""); err == nil {
		t.Error("expected error for empty commit message")
	}
}

func TestParseShortstat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want DiffStats
	}{
		{
			name: "full line",
			in:   " 3 files changed, 41 insertions(+), 7 deletions(-)",
			want: DiffStats{FilesChanged: 3, LinesAdded: 41, LinesRemoved: 7},
		},
		{
			name: "insertions only",
			in:   " 1 file changed, 2 insertions(+)",
			want: DiffStats{FilesChanged: 1, LinesAdded: 2},
		},
		{
			name: "deletions only",
			in:   " 2 files changed, 5 deletions(-)",
			want: DiffStats{FilesChanged: 2, LinesRemoved: 5},
		},
		{
			name: "empty diff",
			in:   "",
			want: DiffStats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseShortstat(tt.in)
			if *got != tt.want {
				t.Errorf("parseShortstat(%q) = %+v, want %+v", tt.in, *got, tt.want)
			}
		})
	}
}
