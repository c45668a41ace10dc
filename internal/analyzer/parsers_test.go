package analyzer

import (
	"strings"
	"testing"
)

func TestParseTestLogGoStyle(t *testing.T) {
	output := `=== RUN   TestBranchDecide
--- PASS: TestBranchDecide (0.00s)
=== RUN   TestCommit
--- FAIL: TestCommit (0.01s)
    git_test.go:42: expected commit hash, got empty string
    git_test.go:43: repo state dirty
=== RUN   TestPush
--- FAIL: TestPush (0.02s)
    git_test.go:88: remote rejected
FAIL
FAIL	github.com/labops/patchctl/internal/git	0.131s
`

	result := ParseTestLog(output)
	failed := result.FailedChecks()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failing checks, got %v", failed)
	}

	commit := result.Checks["TestCommit"]
	if !strings.Contains(commit.Detail, "expected commit hash") {
		t.Errorf("TestCommit detail missing first line: %q", commit.Detail)
	}
	if !strings.Contains(commit.Detail, "repo state dirty") {
		t.Errorf("TestCommit detail missing second line: %q", commit.Detail)
	}

	push := result.Checks["TestPush"]
	if !strings.Contains(push.Detail, "remote rejected") {
		t.Errorf("TestPush detail = %q", push.Detail)
	}
	if result.RawOutput != output {
		t.Error("raw output must be preserved")
	}
}

func TestParseTestLogPytestStyle(t *testing.T) {
	output := `FAILED tests/test_cli.py::test_apply - ModuleNotFoundError: cannot import name 'runner'
FAILED tests/test_ui.py::test_render
PASSED tests/test_index.py::test_lookup
`

	result := ParseTestLog(output)
	failed := result.FailedChecks()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failing checks, got %v", failed)
	}

	apply := result.Checks["tests/test_cli.py::test_apply"]
	if !strings.Contains(apply.Detail, "ModuleNotFoundError") {
		t.Errorf("detail = %q", apply.Detail)
	}
}

func TestParseTestLogAllPassing(t *testing.T) {
	output := `ok  	github.com/labops/patchctl/internal/branch	0.004s
ok  	github.com/labops/patchctl/internal/types	0.002s
`
	result := ParseTestLog(output)
	if !result.AllPassed() {
		t.Errorf("expected no failures, got %v", result.FailedChecks())
	}
}

func TestParseLintLog(t *testing.T) {
	output := `cmd/main.go:10:2: unused variable 'x'
cmd/main.go:22:5: error: undefined name
internal/app/run.go:7:1: warning: missing doc comment
cmd/main.go:10:2: unused variable 'x'
some informational line
WARNING: lint took longer than expected
`

	result := ParseLintLog(output)

	main := result.Checks["lint:cmd/main.go"]
	if main.Passed {
		t.Fatal("expected failing check for cmd/main.go")
	}
	// Duplicate diagnostic collapsed
	if strings.Count(main.Detail, "unused variable 'x'") != 1 {
		t.Errorf("duplicate line not collapsed:\n%s", main.Detail)
	}

	if _, ok := result.Checks["lint:internal/app/run.go"]; !ok {
		t.Error("missing check for internal/app/run.go")
	}

	// Free-form warning lines are kept under the generic check;
	// informational lines are dropped.
	generic := result.Checks["lint"]
	if !strings.Contains(generic.Detail, "lint took longer") {
		t.Errorf("generic detail = %q", generic.Detail)
	}
	if strings.Contains(generic.Detail, "informational") {
		t.Error("informational line should be dropped")
	}
}

func TestParseLintLogClassifiesThroughAnalyzer(t *testing.T) {
	output := "setup.py:3:1: SyntaxError: invalid syntax\n"
	analysis := New().Classify(ParseLintLog(output))

	if analysis.TotalFailures != 1 {
		t.Fatalf("TotalFailures = %d, want 1", analysis.TotalFailures)
	}
	if len(analysis.ByCategory["syntax_error"]) != 1 {
		t.Errorf("expected syntax_error category, got %+v", analysis.ByCategory)
	}
}
