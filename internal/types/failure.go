package types

import (
	"fmt"
	"sort"
)

// FailureCategory classifies a validation failure. The set is closed:
// unclassifiable input maps to CategoryOther, never to an empty value.
type FailureCategory string

const (
	CategoryModuleImport           FailureCategory = "module_import"
	CategorySyntaxError            FailureCategory = "syntax_error"
	CategoryCommandMissing         FailureCategory = "command_missing"
	CategoryFileSystemError        FailureCategory = "filesystem_error"
	CategoryVersionControlConflict FailureCategory = "vcs_conflict"
	CategoryConfigurationError     FailureCategory = "configuration_error"
	CategoryRuntimeError           FailureCategory = "runtime_error"
	CategoryOther                  FailureCategory = "other"
)

// AllCategories lists every failure category in a stable order.
func AllCategories() []FailureCategory {
	return []FailureCategory{
		CategoryModuleImport,
		CategorySyntaxError,
		CategoryCommandMissing,
		CategoryFileSystemError,
		CategoryVersionControlConflict,
		CategoryConfigurationError,
		CategoryRuntimeError,
		CategoryOther,
	}
}

// IsValid checks if the category value is valid.
func (c FailureCategory) IsValid() bool {
	switch c {
	case CategoryModuleImport, CategorySyntaxError, CategoryCommandMissing,
		CategoryFileSystemError, CategoryVersionControlConflict,
		CategoryConfigurationError, CategoryRuntimeError, CategoryOther:
		return true
	}
	return false
}

// Severity ranks a failure record.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// IsValid checks if the severity value is valid.
func (s Severity) IsValid() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// CheckOutcome is the result of a single validation check.
type CheckOutcome struct {
	// Passed is true when the check succeeded.
	Passed bool

	// Detail carries the failure detail for failed checks. Empty for
	// passing checks.
	Detail string

	// SecurityRelated marks checks whose failure is always critical,
	// regardless of category.
	SecurityRelated bool
}

// ValidationResult maps check names to outcomes, with the raw diagnostic
// payload that produced them. Produced by an external validation step and
// consumed by the failure analyzer.
type ValidationResult struct {
	Checks map[string]CheckOutcome

	// RawOutput is the unparsed diagnostic payload (test output, stack
	// trace, or command output).
	RawOutput string
}

// FailedChecks returns the names of failing checks in sorted order.
// Sorted so downstream classification is deterministic across runs.
func (v *ValidationResult) FailedChecks() []string {
	var names []string
	for name, outcome := range v.Checks {
		if !outcome.Passed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllPassed reports whether no check failed.
func (v *ValidationResult) AllPassed() bool {
	for _, outcome := range v.Checks {
		if !outcome.Passed {
			return false
		}
	}
	return true
}

// FailureRecord is one classified validation failure.
type FailureRecord struct {
	Category FailureCategory `json:"category"`
	Severity Severity        `json:"severity"`

	// Key is the check name the record was derived from.
	Key string `json:"key"`

	// Detail is the failure detail text.
	Detail string `json:"detail"`

	// SourceFiles are file paths extracted from the detail, when any.
	SourceFiles []string `json:"source_files,omitempty"`
}

// Validate checks the record holds closed-enum values.
func (r *FailureRecord) Validate() error {
	if !r.Category.IsValid() {
		return fmt.Errorf("invalid category: %s", r.Category)
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", r.Severity)
	}
	if r.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

// FailureAnalysis aggregates classified failure records. Immutable once
// produced; consumed once by the deduplication engine.
type FailureAnalysis struct {
	// ByCategory groups records by category.
	ByCategory map[FailureCategory][]FailureRecord `json:"by_category"`

	TotalFailures int `json:"total_failures"`
	CriticalCount int `json:"critical_count"`
	WarningCount  int `json:"warning_count"`

	// Recommendations holds one canned guidance string per category
	// present, in category order.
	Recommendations []string `json:"recommendations"`
}

// Categories returns the categories present in the analysis in the
// stable order of AllCategories.
func (a *FailureAnalysis) Categories() []FailureCategory {
	var present []FailureCategory
	for _, cat := range AllCategories() {
		if len(a.ByCategory[cat]) > 0 {
			present = append(present, cat)
		}
	}
	return present
}

// HasCritical reports whether any record is critical.
func (a *FailureAnalysis) HasCritical() bool {
	return a.CriticalCount > 0
}
