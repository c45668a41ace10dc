// Package tracker defines the issue and publish-artifact surface of the
// patch workflow, with a GitHub realization.
package tracker

import (
	"context"
	"time"

	"github.com/labops/patchctl/internal/types"
)

// Ref identifies a tracker object (issue or publish artifact).
type Ref struct {
	ID  string
	URL string
}

// Tracker is the narrow contract the workflow needs from an external
// issue and review system. Exact transport is an implementation detail.
type Tracker interface {
	// CreateIssue opens a tracking issue and returns its reference.
	CreateIssue(ctx context.Context, title, body string, labels []string) (*Ref, error)

	// CommentOnIssue appends a comment to an existing issue.
	CommentOnIssue(ctx context.Context, id, body string) error

	// CloseIssue closes an issue with a closing comment.
	CloseIssue(ctx context.Context, id, reason string) error

	// SearchOpenIssues returns open issues matching the label filter and
	// whose title contains titleFilter. Either filter may be empty.
	SearchOpenIssues(ctx context.Context, labelFilter, titleFilter string) ([]types.ExistingIssueRef, error)

	// CreatePublishArtifact opens a review request (pull request) from
	// head into base.
	CreatePublishArtifact(ctx context.Context, title, body, head, base string) (*Ref, error)

	// ViewPublishArtifact returns the open artifact for head, if one
	// exists. Used for already-exists recovery on re-runs.
	ViewPublishArtifact(ctx context.Context, head string) (*Ref, error)

	// EnsureLabels creates any of the given labels that do not exist
	// yet. Failures are tolerated by callers: labeling is best effort.
	EnsureLabels(ctx context.Context, labels []string) error
}

// ReviewComment is a piece of review material discovered by the
// background monitor on an open publish artifact.
type ReviewComment struct {
	ID        string
	Author    string
	Body      string
	CreatedAt time.Time
}

// ReviewSource is the optional surface for monitors that poll for new
// review material. Separated from Tracker because foreground runs never
// need it.
type ReviewSource interface {
	// ListArtifactComments returns comments on the open artifact for
	// head, oldest first.
	ListArtifactComments(ctx context.Context, head string) ([]ReviewComment, error)
}
