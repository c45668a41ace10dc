package dedup

import (
	"sort"
	"strings"
	"time"

	"github.com/labops/patchctl/internal/types"
)

// categoryKeywords are the per-category keywords looked for in candidate
// issue titles when scoring similarity.
var categoryKeywords = map[types.FailureCategory][]string{
	types.CategoryModuleImport:           {"import", "module", "dependency"},
	types.CategorySyntaxError:            {"syntax", "parse", "indentation"},
	types.CategoryCommandMissing:         {"command", "missing", "path"},
	types.CategoryFileSystemError:        {"file", "filesystem", "permission"},
	types.CategoryVersionControlConflict: {"git", "merge", "conflict"},
	types.CategoryConfigurationError:     {"config", "configuration", "setting"},
	types.CategoryRuntimeError:           {"runtime", "panic", "crash"},
	types.CategoryOther:                  {"failure", "unknown"},
}

// genericKeywords are validation-flavored words that weakly indicate a
// related issue.
var genericKeywords = []string{"validation", "failed", "failing", "check", "test", "ci"}

// Score rates how related a candidate issue is to the analysis, between
// 0.0 and 1.0. Contributions:
//
//   - CategoryKeywordWeight per category keyword shared with the title
//   - GenericKeywordWeight per generic validation keyword in the title
//   - ExactCategoryWeight when the title names a present category exactly
//   - Recent24hWeight when the issue is younger than 24 hours
//   - Recent7dWeight when the issue is younger than 7 days
//
// The result is advisory: it annotates issue bodies with related issues
// but never drives the create/update decision, which is recency's job.
func (e *Engine) Score(issue types.ExistingIssueRef, analysis *types.FailureAnalysis, now time.Time) float64 {
	title := strings.ToLower(issue.Title)
	score := 0.0

	for _, cat := range analysis.Categories() {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(title, kw) {
				score += e.config.CategoryKeywordWeight
			}
		}
		if strings.Contains(title, strings.ToLower(categoryMarkers[cat])) {
			score += e.config.ExactCategoryWeight
		}
	}

	for _, kw := range genericKeywords {
		if strings.Contains(title, kw) {
			score += e.config.GenericKeywordWeight
		}
	}

	age := issue.Age(now)
	if age < 24*time.Hour {
		score += e.config.Recent24hWeight
	} else if age < 7*24*time.Hour {
		score += e.config.Recent7dWeight
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// scoreRelated returns the candidates scoring above the advisory
// threshold, highest first.
func (e *Engine) scoreRelated(issues []types.ExistingIssueRef, analysis *types.FailureAnalysis, now time.Time) []types.ScoredIssue {
	var related []types.ScoredIssue
	for _, issue := range issues {
		if score := e.Score(issue, analysis, now); score > e.config.SimilarThreshold {
			related = append(related, types.ScoredIssue{Issue: issue, Score: score})
		}
	}
	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Score > related[j].Score
	})
	return related
}
