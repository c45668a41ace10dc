package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/labops/patchctl/internal/types"
)

// printResult renders a patch result in the selected output format.
func printResult(result *types.PatchResult) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(result)
	}

	if result.Success {
		marker := color.GreenString("✓")
		if result.Degraded {
			marker = color.YellowString("⚠")
		}
		fmt.Printf("%s %s\n", marker, result.Message)
	} else {
		fmt.Printf("%s %s\n", color.RedString("✗"), result.Message)
	}

	if result.Branch != "" {
		fmt.Printf("  Branch:   %s\n", result.Branch)
	}
	if result.CommitHash != "" {
		fmt.Printf("  Commit:   %s\n", result.CommitHash)
	}
	if result.ArtifactURL != "" {
		fmt.Printf("  PR:       %s\n", result.ArtifactURL)
	}
	if result.TrackingIssueID != "" {
		fmt.Printf("  Issue:    #%s\n", result.TrackingIssueID)
	}
	fmt.Printf("  Tracking: %s\n", result.TrackingID)
	return nil
}

// printAnalysis renders a failure analysis in the selected output
// format.
func printAnalysis(analysis *types.FailureAnalysis) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(analysis)
	}

	if analysis.TotalFailures == 0 {
		fmt.Printf("%s No failures found\n", color.GreenString("✓"))
		return nil
	}

	fmt.Printf("%s %d failure(s): %d critical, %d warning\n",
		color.RedString("✗"), analysis.TotalFailures,
		analysis.CriticalCount, analysis.WarningCount)
	for _, cat := range analysis.Categories() {
		records := analysis.ByCategory[cat]
		fmt.Printf("\n  %s (%d)\n", color.CyanString(string(cat)), len(records))
		for _, rec := range records {
			fmt.Printf("    - [%s] %s\n", rec.Severity, rec.Key)
		}
	}
	return nil
}
