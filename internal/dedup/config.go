// Package dedup decides, per validation failure, whether to open a new
// tracking issue, update an existing one, or suppress duplicate noise.
//
// Recency decides, similarity explains: the create/update decision is
// driven purely by how recently a matching issue was filed, while the
// similarity score only annotates issue bodies with related issues. This
// split prevents both ticket spam and silent suppression.
package dedup

import (
	"fmt"
	"time"
)

// Config holds the deduplication thresholds and similarity weights. The
// defaults are empirically chosen; they are configuration, not
// invariants.
type Config struct {
	// SummaryUpdateWindow is the age under which an existing summary
	// issue is updated instead of a new one being created.
	// Default: 2 hours.
	SummaryUpdateWindow time.Duration

	// CategoryUpdateWindow is the age under which an existing
	// per-category issue is updated instead of created.
	// Default: 6 hours.
	CategoryUpdateWindow time.Duration

	// SummaryLookback is how far back summary issues count as
	// duplicates. Default: 7 days.
	SummaryLookback time.Duration

	// MaxSummaryDuplicates is the number of summary issues within the
	// lookback at which new issues get a disambiguating counter suffix.
	// Default: 3.
	MaxSummaryDuplicates int

	// SimilarThreshold is the score above which a candidate issue is
	// reported as related. Advisory only. Default: 0.7.
	SimilarThreshold float64

	// Similarity weights. See Score for how they combine.
	CategoryKeywordWeight float64 // Default: 0.3 per shared category keyword
	GenericKeywordWeight  float64 // Default: 0.1 per generic validation keyword
	ExactCategoryWeight   float64 // Default: 0.4 for an exact category-name match
	Recent24hWeight       float64 // Default: 0.2 when created within 24 hours
	Recent7dWeight        float64 // Default: 0.1 when created within 7 days

	// SummaryMarker is the canonical marker embedded in summary issue
	// titles, used to find previous summaries.
	SummaryMarker string

	// TrackingLabel is applied to every issue the engine creates.
	TrackingLabel string
}

// DefaultConfig returns the default deduplication configuration.
func DefaultConfig() Config {
	return Config{
		SummaryUpdateWindow:   2 * time.Hour,
		CategoryUpdateWindow:  6 * time.Hour,
		SummaryLookback:       7 * 24 * time.Hour,
		MaxSummaryDuplicates:  3,
		SimilarThreshold:      0.7,
		CategoryKeywordWeight: 0.3,
		GenericKeywordWeight:  0.1,
		ExactCategoryWeight:   0.4,
		Recent24hWeight:       0.2,
		Recent7dWeight:        0.1,
		SummaryMarker:         "[patch-validation]",
		TrackingLabel:         "patchctl",
	}
}

// Validate checks the configuration has usable values.
func (c Config) Validate() error {
	if c.SummaryUpdateWindow <= 0 {
		return fmt.Errorf("summary_update_window must be positive (got %v)", c.SummaryUpdateWindow)
	}
	if c.CategoryUpdateWindow <= 0 {
		return fmt.Errorf("category_update_window must be positive (got %v)", c.CategoryUpdateWindow)
	}
	if c.SummaryLookback < c.SummaryUpdateWindow {
		return fmt.Errorf("summary_lookback (%v) must not be shorter than summary_update_window (%v)",
			c.SummaryLookback, c.SummaryUpdateWindow)
	}
	if c.MaxSummaryDuplicates < 1 {
		return fmt.Errorf("max_summary_duplicates must be at least 1 (got %d)", c.MaxSummaryDuplicates)
	}
	if c.SimilarThreshold < 0 || c.SimilarThreshold > 1 {
		return fmt.Errorf("similar_threshold must be between 0.0 and 1.0 (got %.2f)", c.SimilarThreshold)
	}
	for name, w := range map[string]float64{
		"category_keyword_weight": c.CategoryKeywordWeight,
		"generic_keyword_weight":  c.GenericKeywordWeight,
		"exact_category_weight":   c.ExactCategoryWeight,
		"recent_24h_weight":       c.Recent24hWeight,
		"recent_7d_weight":        c.Recent7dWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0 (got %.2f)", name, w)
		}
	}
	if c.SummaryMarker == "" {
		return fmt.Errorf("summary_marker is required")
	}
	return nil
}
