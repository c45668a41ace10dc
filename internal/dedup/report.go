package dedup

import (
	"fmt"
	"strings"

	"github.com/labops/patchctl/internal/types"
)

// BuildSummaryBody renders the body of a new summary issue.
func BuildSummaryBody(analysis *types.FailureAnalysis, related []types.ScoredIssue, trackingID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Automated validation found %d failure(s): %d critical, %d warning.\n\n",
		analysis.TotalFailures, analysis.CriticalCount, analysis.WarningCount)

	b.WriteString("## Failures by category\n\n")
	for _, cat := range analysis.Categories() {
		records := analysis.ByCategory[cat]
		fmt.Fprintf(&b, "### %s (%d)\n\n", categoryMarkers[cat], len(records))
		for _, r := range records {
			detail := r.Detail
			if len(detail) > 300 {
				detail = detail[:300] + "... (truncated)"
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", r.Key, detail)
		}
		b.WriteString("\n")
	}

	if len(analysis.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rec := range analysis.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}

	if len(related) > 0 {
		b.WriteString("## Possibly related issues\n\n")
		for _, r := range related {
			fmt.Fprintf(&b, "- #%s %s (similarity %.2f)\n", r.Issue.ID, r.Issue.Title, r.Score)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\nTracking ID: `%s`\n", trackingID)
	return b.String()
}

// BuildSummaryUpdate renders the comment appended to an existing summary
// issue when the engine decides to update rather than create.
func BuildSummaryUpdate(analysis *types.FailureAnalysis, trackingID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Validation failed again: %d failure(s) (%d critical, %d warning).\n\n",
		analysis.TotalFailures, analysis.CriticalCount, analysis.WarningCount)
	for _, cat := range analysis.Categories() {
		fmt.Fprintf(&b, "- %s: %d\n", categoryMarkers[cat], len(analysis.ByCategory[cat]))
	}
	fmt.Fprintf(&b, "\nTracking ID: `%s`\n", trackingID)
	return b.String()
}

// BuildCategoryBody renders the body of a new per-category issue.
func BuildCategoryBody(cat types.FailureCategory, records []types.FailureRecord, trackingID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Automated validation found %d %s.\n\n", len(records), categoryMarkers[cat])
	for _, r := range records {
		fmt.Fprintf(&b, "### %s\n\n", r.Key)
		detail := r.Detail
		if len(detail) > 1000 {
			detail = detail[:1000] + "\n... (truncated)"
		}
		fmt.Fprintf(&b, "```\n%s\n```\n\n", detail)
		if len(r.SourceFiles) > 0 {
			fmt.Fprintf(&b, "Files: %s\n\n", strings.Join(r.SourceFiles, ", "))
		}
	}

	fmt.Fprintf(&b, "---\nTracking ID: `%s`\n", trackingID)
	return b.String()
}

// BuildCategoryUpdate renders the comment appended to an existing
// per-category issue.
func BuildCategoryUpdate(cat types.FailureCategory, records []types.FailureRecord, trackingID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Seen again: %d %s.\n\n", len(records), categoryMarkers[cat])
	for _, r := range records {
		detail := r.Detail
		if len(detail) > 200 {
			detail = detail[:200] + "... (truncated)"
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", r.Key, detail)
	}
	fmt.Fprintf(&b, "\nTracking ID: `%s`\n", trackingID)
	return b.String()
}
