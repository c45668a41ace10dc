package analyzer

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/labops/patchctl/internal/types"
)

// goTestFailPattern matches "--- FAIL: TestName" lines in go test output.
var goTestFailPattern = regexp.MustCompile(`^\s*--- FAIL: (\S+)`)

// pytestFailPattern matches "FAILED path::test - message" lines.
var pytestFailPattern = regexp.MustCompile(`^FAILED\s+(\S+?)(?:\s+-\s+(.*))?$`)

// lintLinePattern matches "path:line:col: message" diagnostics (ruff,
// golangci-lint, and most linters share the shape).
var lintLinePattern = regexp.MustCompile(`^(\S+?):\d+(?::\d+)?:\s*(.+)$`)

// warnErrPattern matches free-form warning/error lines in lint logs.
var warnErrPattern = regexp.MustCompile(`(?i)\b(warning|error)\b`)

// ParseTestLog converts raw test-runner output (go test or pytest style)
// into a ValidationResult with one failing check per failed test. Lines
// following a failure marker, up to the next marker or summary line, are
// collected as the failure detail.
func ParseTestLog(output string) *types.ValidationResult {
	result := &types.ValidationResult{
		Checks:    make(map[string]types.CheckOutcome),
		RawOutput: output,
	}

	var currentName string
	var detail []string
	flush := func() {
		if currentName == "" {
			return
		}
		result.Checks[currentName] = types.CheckOutcome{
			Passed: false,
			Detail: strings.TrimSpace(strings.Join(detail, "\n")),
		}
		currentName = ""
		detail = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := goTestFailPattern.FindStringSubmatch(line); m != nil {
			flush()
			currentName = m[1]
			continue
		}
		if m := pytestFailPattern.FindStringSubmatch(line); m != nil {
			flush()
			result.Checks[m[1]] = types.CheckOutcome{
				Passed: false,
				Detail: strings.TrimSpace(m[2]),
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FAIL") || strings.HasPrefix(trimmed, "ok ") ||
			strings.HasPrefix(trimmed, "=== RUN") || strings.HasPrefix(trimmed, "--- PASS") {
			flush()
			continue
		}
		if currentName != "" {
			detail = append(detail, line)
		}
	}
	flush()

	return result
}

// ParseLintLog converts linter output into a ValidationResult, keeping
// only diagnostic lines (path:line:col or lines mentioning warning or
// error), deduplicated in input order. Each distinct file becomes one
// failing check.
func ParseLintLog(output string) *types.ValidationResult {
	result := &types.ValidationResult{
		Checks:    make(map[string]types.CheckOutcome),
		RawOutput: output,
	}

	perFile := make(map[string][]string)
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || seen[line] {
			continue
		}

		if m := lintLinePattern.FindStringSubmatch(line); m != nil {
			seen[line] = true
			perFile[m[1]] = append(perFile[m[1]], line)
			continue
		}
		if warnErrPattern.MatchString(line) {
			seen[line] = true
			perFile["lint"] = append(perFile["lint"], line)
		}
	}

	for file, lines := range perFile {
		name := file
		if file != "lint" {
			name = fmt.Sprintf("lint:%s", file)
		}
		result.Checks[name] = types.CheckOutcome{
			Passed: false,
			Detail: strings.Join(lines, "\n"),
		}
	}

	return result
}
