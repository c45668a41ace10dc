package git

import (
	"context"
)

// Operations is the version-control surface the orchestrator depends on.
// All operations are synchronous, take a context for cancellation and
// timeouts, and return captured diagnostic text in their errors. No
// operation swallows a non-zero exit.
type Operations interface {
	// CurrentBranch returns the name of the checked-out branch.
	CurrentBranch(ctx context.Context) (string, error)

	// CreateBranch creates name from base and checks it out. An empty
	// base branches from HEAD.
	CreateBranch(ctx context.Context, name, base string) error

	// Checkout switches to an existing branch or ref.
	Checkout(ctx context.Context, ref string) error

	// StageAll stages every change in the working tree.
	StageAll(ctx context.Context) error

	// Commit creates a commit and returns its hash. A clean tree is not
	// an error: Commit returns ErrNothingToCommit, which callers treat
	// as a proceedable no-op.
	Commit(ctx context.Context, message string) (string, error)

	// Push pushes branch to the default remote, setting upstream.
	Push(ctx context.Context, branch string) error

	// HeadHash returns the hash of HEAD.
	HeadHash(ctx context.Context) (string, error)

	// DiffStats summarizes changes between base and head.
	DiffStats(ctx context.Context, base, head string) (*DiffStats, error)

	// ResetHard resets the working tree and index to ref.
	ResetHard(ctx context.Context, ref string) error

	// HasUncommittedChanges reports whether the working tree is dirty.
	HasUncommittedChanges(ctx context.Context) (bool, error)
}

// DiffStats summarizes the size of a change between two refs.
type DiffStats struct {
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}
