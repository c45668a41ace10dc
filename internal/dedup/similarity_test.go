package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/labops/patchctl/internal/types"
)

func TestScoreWeights(t *testing.T) {
	engine := newTestEngine(t, newFakeTracker())
	analysis := syntaxAnalysis()

	tests := []struct {
		name  string
		issue types.ExistingIssueRef
		want  float64
	}{
		{
			name:  "unrelated title and old",
			issue: types.ExistingIssueRef{Title: "Docs typo", CreatedAt: testNow.Add(-30 * 24 * time.Hour)},
			want:  0.0,
		},
		{
			name:  "one category keyword only",
			issue: types.ExistingIssueRef{Title: "Weird parse behavior", CreatedAt: testNow.Add(-30 * 24 * time.Hour)},
			want:  0.3,
		},
		{
			name:  "generic keyword plus week recency",
			issue: types.ExistingIssueRef{Title: "CI flakiness", CreatedAt: testNow.Add(-3 * 24 * time.Hour)},
			want:  0.1 + 0.1,
		},
		{
			name: "exact category marker plus day recency",
			// Marker, the "syntax" keyword, "validation", and recency
			// stack up to exactly the cap.
			issue: types.ExistingIssueRef{Title: "Patch validation: syntax errors", CreatedAt: testNow.Add(-time.Hour)},
			want:  0.4 + 0.3 + 0.1 + 0.2,
		},
		{
			name:  "score capped at one",
			issue: types.ExistingIssueRef{Title: "validation failed: syntax parse indentation errors in test check", CreatedAt: testNow.Add(-time.Hour)},
			want:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Score(tt.issue, analysis, testNow)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScoreRelatedIsAdvisoryAndSorted(t *testing.T) {
	ft := newFakeTracker()
	ft.issues = []types.ExistingIssueRef{
		{ID: "1", Title: "Docs typo", CreatedAt: testNow.Add(-time.Hour)},
		{ID: "2", Title: "Patch validation: syntax errors", CreatedAt: testNow.Add(-time.Hour)},
		{ID: "3", Title: "syntax parse failed in validation check", CreatedAt: testNow.Add(-time.Hour)},
	}
	engine := newTestEngine(t, ft)
	analysis := syntaxAnalysis()

	related := engine.scoreRelated(ft.issues, analysis, testNow)
	if assert.NotEmpty(t, related) {
		for i := 1; i < len(related); i++ {
			assert.GreaterOrEqual(t, related[i-1].Score, related[i].Score)
		}
		for _, r := range related {
			assert.Greater(t, r.Score, engine.config.SimilarThreshold)
			assert.NotEqual(t, "1", r.Issue.ID, "unrelated issue must not appear")
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.SummaryUpdateWindow = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.SimilarThreshold = 1.5
	assert.Error(t, bad.Validate())
}
