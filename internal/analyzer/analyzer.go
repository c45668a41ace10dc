// Package analyzer classifies raw validation failures into the closed
// failure taxonomy with severity, and aggregates them for triage.
package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/labops/patchctl/internal/types"
)

// rule maps a set of keywords to a failure category. Rules are evaluated
// in order over the check name and detail text; the first match wins.
type rule struct {
	category types.FailureCategory
	keywords []string
}

// classificationRules is the ordered rule table. Order matters: earlier
// rules shadow later ones, so the more specific patterns come first.
var classificationRules = []rule{
	{types.CategoryModuleImport, []string{"modulenotfounderror", "cannot import", "import error", "no module named", "module", "import"}},
	{types.CategorySyntaxError, []string{"syntaxerror", "syntax", "parse error", "parse", "unexpected token", "indentation"}},
	{types.CategoryVersionControlConflict, []string{"merge conflict", "conflict", "git", "merge", "rebase"}},
	{types.CategoryCommandMissing, []string{"command not found", "not recognized", "executable file not found", "no such command"}},
	{types.CategoryFileSystemError, []string{"no such file", "permission denied", "file not found", "is a directory", "disk full"}},
	{types.CategoryConfigurationError, []string{"config", "configuration", "missing setting", "invalid setting", "env var"}},
	{types.CategoryRuntimeError, []string{"panic", "traceback", "runtime error", "nil pointer", "exception", "segmentation fault"}},
}

// criticalCategories always yield critical severity.
var criticalCategories = map[types.FailureCategory]bool{
	types.CategorySyntaxError:            true,
	types.CategoryModuleImport:           true,
	types.CategoryVersionControlConflict: true,
	types.CategoryRuntimeError:           true,
}

// recommendations holds one canned guidance string per category.
var recommendations = map[types.FailureCategory]string{
	types.CategoryModuleImport:           "Verify module paths and run the dependency install step before retrying.",
	types.CategorySyntaxError:            "Fix the reported syntax errors before any other remediation; downstream checks are unreliable until parsing succeeds.",
	types.CategoryCommandMissing:         "Install the missing tool or add it to PATH on the runner.",
	types.CategoryFileSystemError:        "Check file paths and permissions on the runner workspace.",
	types.CategoryVersionControlConflict: "Resolve merge conflicts and re-run validation; do not force-push over the conflicted branch.",
	types.CategoryConfigurationError:     "Review configuration values and required environment variables.",
	types.CategoryRuntimeError:           "Inspect the stack trace and add a regression test before fixing.",
	types.CategoryOther:                  "Inspect the raw output; the failure did not match any known pattern.",
}

// sourceFilePattern extracts file-looking paths from failure details.
var sourceFilePattern = regexp.MustCompile(`[\w./-]+\.(?:go|py|ps1|psm1|yaml|yml|json|sh|md)\b`)

// Analyzer classifies validation results. Classification is
// deterministic: identical input yields identical output, which the
// deduplication engine relies on for stable comparisons across retries.
type Analyzer struct{}

// New creates a failure analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Classify derives one FailureRecord per failing check and aggregates
// them into a FailureAnalysis. Passing checks produce no records; a
// result with zero failing checks yields TotalFailures == 0.
func (a *Analyzer) Classify(result *types.ValidationResult) *types.FailureAnalysis {
	analysis := &types.FailureAnalysis{
		ByCategory: make(map[types.FailureCategory][]types.FailureRecord),
	}

	for _, name := range result.FailedChecks() {
		outcome := result.Checks[name]
		record := classifyOne(name, outcome)
		analysis.ByCategory[record.Category] = append(analysis.ByCategory[record.Category], record)
		analysis.TotalFailures++
		if record.Severity == types.SeverityCritical {
			analysis.CriticalCount++
		} else {
			analysis.WarningCount++
		}
	}

	for _, cat := range analysis.Categories() {
		analysis.Recommendations = append(analysis.Recommendations, recommendations[cat])
	}

	return analysis
}

// classifyOne classifies a single failing check.
func classifyOne(name string, outcome types.CheckOutcome) types.FailureRecord {
	category := matchCategory(name + " " + outcome.Detail)

	severity := types.SeverityWarning
	if criticalCategories[category] {
		severity = types.SeverityCritical
	}
	// Security-tagged input is always critical regardless of category.
	if outcome.SecurityRelated {
		severity = types.SeverityCritical
	}

	return types.FailureRecord{
		Category:    category,
		Severity:    severity,
		Key:         name,
		Detail:      outcome.Detail,
		SourceFiles: extractSourceFiles(outcome.Detail),
	}
}

// matchCategory runs the rule table over the combined check name and
// detail text. Case-insensitive, first match wins, fallback Other.
func matchCategory(text string) types.FailureCategory {
	lower := strings.ToLower(text)
	for _, r := range classificationRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return types.CategoryOther
}

// extractSourceFiles pulls file paths out of the detail text, deduplicated
// and sorted for deterministic output.
func extractSourceFiles(detail string) []string {
	matches := sourceFilePattern.FindAllString(detail, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var files []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}
