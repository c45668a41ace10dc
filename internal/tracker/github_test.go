package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-github/v41/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGitHubTracker(t *testing.T) {
	ctx := context.Background()

	_, err := NewGitHubTracker(ctx, GitHubOptions{Repository: "acme/widgets"})
	assert.Error(t, err, "token is required")

	_, err = NewGitHubTracker(ctx, GitHubOptions{Token: "tok", Repository: "not-a-repo"})
	assert.Error(t, err, "repository must be owner/repo")

	trk, err := NewGitHubTracker(ctx, GitHubOptions{Token: "tok", Repository: "acme/widgets"})
	require.NoError(t, err)
	assert.Equal(t, "acme", trk.owner)
	assert.Equal(t, "widgets", trk.repo)
}

func TestNewGitHubTrackerEnterpriseDomain(t *testing.T) {
	trk, err := NewGitHubTracker(context.Background(), GitHubOptions{
		Token:      "tok",
		Repository: "acme/widgets",
		Domain:     "github.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.example.com/api/v3/", trk.client.BaseURL.String())
}

func TestIsPermanent(t *testing.T) {
	apiError := func(code int) error {
		resp := &github.ErrorResponse{
			Response: &http.Response{
				StatusCode: code,
				Request:    &http.Request{Method: http.MethodPost},
			},
		}
		return fmt.Errorf("api call failed: %w", resp)
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation rejection", apiError(http.StatusUnprocessableEntity), true},
		{"not found", apiError(http.StatusNotFound), true},
		{"forbidden", apiError(http.StatusForbidden), true},
		{"server error", apiError(http.StatusInternalServerError), false},
		{"rate limited", apiError(http.StatusTooManyRequests), false},
		{"rate limit type", &github.RateLimitError{}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}
