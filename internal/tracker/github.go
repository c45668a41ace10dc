package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/labops/patchctl/internal/logging"
	"github.com/labops/patchctl/internal/types"
)

// defaultLabelColor is used when creating missing labels.
const defaultLabelColor = "ededed"

// GitHubTracker implements Tracker and ReviewSource against the GitHub
// API.
type GitHubTracker struct {
	client *github.Client
	owner  string
	repo   string

	// limiter throttles API calls so bursts of triage activity stay
	// inside the secondary rate limits.
	limiter *rate.Limiter
}

// GitHubOptions configures a GitHubTracker.
type GitHubOptions struct {
	// Token is the API token. Required.
	Token string

	// Repository is "owner/repo". Required.
	Repository string

	// Domain selects a GitHub Enterprise host. Empty means github.com.
	Domain string

	// RequestsPerSecond bounds outgoing API calls. Zero means the
	// default of 5.
	RequestsPerSecond float64
}

// NewGitHubTracker creates a tracker for the configured repository.
func NewGitHubTracker(ctx context.Context, opts GitHubOptions) (*GitHubTracker, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	parts := strings.Split(opts.Repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository format: %s, expected owner/repo", opts.Repository)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if opts.Domain != "" && opts.Domain != "github.com" {
		apiURL, err := url.Parse(fmt.Sprintf("https://%s/api/v3/", opts.Domain))
		if err != nil {
			return nil, fmt.Errorf("invalid github domain %s: %w", opts.Domain, err)
		}
		client.BaseURL = apiURL
		client.UploadURL = apiURL
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &GitHubTracker{
		client:  client,
		owner:   parts[0],
		repo:    parts[1],
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// wait blocks until the rate limiter admits another API call.
func (t *GitHubTracker) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// CreateIssue opens a tracking issue.
func (t *GitHubTracker) CreateIssue(ctx context.Context, title, body string, labels []string) (*Ref, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	req := &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &labels,
	}
	issue, _, err := t.client.Issues.Create(ctx, t.owner, t.repo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	logging.Info("created tracking issue",
		"number", issue.GetNumber(),
		"title", title)
	return &Ref{
		ID:  strconv.Itoa(issue.GetNumber()),
		URL: issue.GetHTMLURL(),
	}, nil
}

// CommentOnIssue appends a comment to an existing issue.
func (t *GitHubTracker) CommentOnIssue(ctx context.Context, id, body string) error {
	number, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid issue id %q: %w", id, err)
	}
	if err := t.wait(ctx); err != nil {
		return err
	}

	comment := &github.IssueComment{Body: github.String(body)}
	if _, _, err := t.client.Issues.CreateComment(ctx, t.owner, t.repo, number, comment); err != nil {
		return fmt.Errorf("failed to comment on issue #%d: %w", number, err)
	}
	return nil
}

// CloseIssue closes an issue, leaving the reason as a final comment.
func (t *GitHubTracker) CloseIssue(ctx context.Context, id, reason string) error {
	number, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid issue id %q: %w", id, err)
	}

	if reason != "" {
		if err := t.CommentOnIssue(ctx, id, reason); err != nil {
			logging.Warn("failed to add closing comment", "issue", id, "error", err)
		}
	}

	if err := t.wait(ctx); err != nil {
		return err
	}
	req := &github.IssueRequest{State: github.String("closed")}
	if _, _, err := t.client.Issues.Edit(ctx, t.owner, t.repo, number, req); err != nil {
		return fmt.Errorf("failed to close issue #%d: %w", number, err)
	}
	return nil
}

// SearchOpenIssues lists open issues filtered by label and title
// substring. Pull requests are excluded: the issues API returns both.
func (t *GitHubTracker) SearchOpenIssues(ctx context.Context, labelFilter, titleFilter string) ([]types.ExistingIssueRef, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if labelFilter != "" {
		opts.Labels = []string{labelFilter}
	}

	var refs []types.ExistingIssueRef
	for {
		if err := t.wait(ctx); err != nil {
			return nil, err
		}
		issues, resp, err := t.client.Issues.ListByRepo(ctx, t.owner, t.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search open issues: %w", err)
		}

		for _, issue := range issues {
			if issue.PullRequestLinks != nil {
				continue
			}
			title := issue.GetTitle()
			if titleFilter != "" && !strings.Contains(title, titleFilter) {
				continue
			}

			labelNames := make([]string, 0, len(issue.Labels))
			for _, label := range issue.Labels {
				labelNames = append(labelNames, label.GetName())
			}
			refs = append(refs, types.ExistingIssueRef{
				ID:        strconv.Itoa(issue.GetNumber()),
				URL:       issue.GetHTMLURL(),
				Title:     title,
				CreatedAt: issue.GetCreatedAt(),
				Labels:    labelNames,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return refs, nil
}

// CreatePublishArtifact opens a pull request from head into base.
func (t *GitHubTracker) CreatePublishArtifact(ctx context.Context, title, body, head, base string) (*Ref, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	pr := &github.NewPullRequest{
		Title: github.String(title),
		Body:  github.String(body),
		Head:  github.String(head),
		Base:  github.String(base),
	}
	created, _, err := t.client.PullRequests.Create(ctx, t.owner, t.repo, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request %s -> %s: %w", head, base, err)
	}

	logging.Info("created pull request",
		"number", created.GetNumber(),
		"head", head,
		"base", base)
	return &Ref{
		ID:  strconv.Itoa(created.GetNumber()),
		URL: created.GetHTMLURL(),
	}, nil
}

// ViewPublishArtifact returns the open pull request for head, or nil
// when none exists.
func (t *GitHubTracker) ViewPublishArtifact(ctx context.Context, head string) (*Ref, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.PullRequestListOptions{
		State: "open",
		Head:  fmt.Sprintf("%s:%s", t.owner, head),
	}
	prs, _, err := t.client.PullRequests.List(ctx, t.owner, t.repo, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", head, err)
	}
	if len(prs) == 0 {
		return nil, nil
	}

	return &Ref{
		ID:  strconv.Itoa(prs[0].GetNumber()),
		URL: prs[0].GetHTMLURL(),
	}, nil
}

// EnsureLabels creates any missing labels. Existing labels are left
// untouched.
func (t *GitHubTracker) EnsureLabels(ctx context.Context, labels []string) error {
	for _, name := range labels {
		if err := t.wait(ctx); err != nil {
			return err
		}
		_, resp, err := t.client.Issues.GetLabel(ctx, t.owner, t.repo, name)
		if err == nil {
			continue
		}
		if resp == nil || resp.StatusCode != 404 {
			return fmt.Errorf("failed to check label %s: %w", name, err)
		}

		if err := t.wait(ctx); err != nil {
			return err
		}
		label := &github.Label{
			Name:  github.String(name),
			Color: github.String(defaultLabelColor),
		}
		if _, _, err := t.client.Issues.CreateLabel(ctx, t.owner, t.repo, label); err != nil {
			return fmt.Errorf("failed to create label %s: %w", name, err)
		}
		logging.Debug("created missing label", "label", name)
	}
	return nil
}

// ListArtifactComments returns the issue comments on the open pull
// request for head, oldest first. No open pull request means no
// comments.
func (t *GitHubTracker) ListArtifactComments(ctx context.Context, head string) ([]ReviewComment, error) {
	ref, err := t.ViewPublishArtifact(ctx, head)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, nil
	}
	number, err := strconv.Atoi(ref.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact id %q: %w", ref.ID, err)
	}

	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	opts := &github.IssueListCommentsOptions{
		Sort:        github.String("created"),
		Direction:   github.String("asc"),
		ListOptions: github.ListOptions{PerPage: 100},
	}
	comments, _, err := t.client.Issues.ListComments(ctx, t.owner, t.repo, number, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments on pull request #%d: %w", number, err)
	}

	result := make([]ReviewComment, 0, len(comments))
	for _, c := range comments {
		result = append(result, ReviewComment{
			ID:        strconv.FormatInt(c.GetID(), 10),
			Author:    c.GetUser().GetLogin(),
			Body:      c.GetBody(),
			CreatedAt: c.GetCreatedAt(),
		})
	}
	return result, nil
}

// IsPermanent reports whether err is an API rejection that a retry
// cannot fix, such as a validation or permission error. Rate limits and
// server-side failures stay retryable.
func IsPermanent(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return false
	}
	var apiErr *github.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		code := apiErr.Response.StatusCode
		return code >= 400 && code < 500 &&
			code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
	}
	return false
}
