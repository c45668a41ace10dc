package branch

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
}

func TestDecideOnProtectedBranch(t *testing.T) {
	s := NewStrategyWithClock(fixedClock)

	for _, protected := range []string{"main", "master", "release/1.2"} {
		t.Run(protected, func(t *testing.T) {
			d := s.Decide("fix syntax errors", protected, false)
			if d.SkipCreation {
				t.Error("protected branch must not be reused")
			}
			if d.TargetBranch == protected {
				t.Errorf("target branch %q must differ from protected branch", d.TargetBranch)
			}
			if !strings.HasPrefix(d.TargetBranch, "patch/") {
				t.Errorf("expected patch/ prefix, got %q", d.TargetBranch)
			}
		})
	}
}

func TestDecideProtectedBranchGetsNewPatchBranch(t *testing.T) {
	// Description "fix syntax errors" on main produces
	// patch/<timestamp>-fix-syntax-errors.
	s := NewStrategyWithClock(fixedClock)
	d := s.Decide("fix syntax errors", "main", false)

	want := "patch/20240115-103000-fix-syntax-errors"
	if d.TargetBranch != want {
		t.Errorf("TargetBranch = %q, want %q", d.TargetBranch, want)
	}
	if d.SkipCreation {
		t.Error("SkipCreation should be false on main")
	}
}

func TestDecideReusesExistingPatchBranch(t *testing.T) {
	// An existing patch branch is reused rather than stacked on.
	s := NewStrategyWithClock(fixedClock)
	d := s.Decide("add logging", "patch/20240101-000000-old-fix", false)

	if !d.SkipCreation {
		t.Error("expected SkipCreation on existing patch branch")
	}
	if d.TargetBranch != "patch/20240101-000000-old-fix" {
		t.Errorf("TargetBranch = %q, want the current branch", d.TargetBranch)
	}
}

func TestDecideWorkingBranches(t *testing.T) {
	s := NewStrategyWithClock(fixedClock)

	for _, working := range []string{"patch/x", "feature/login", "fix/crash", "hotfix/urgent"} {
		t.Run(working, func(t *testing.T) {
			d := s.Decide("anything", working, false)
			if !d.SkipCreation {
				t.Errorf("working branch %s should be reused", working)
			}
			if d.TargetBranch != working {
				t.Errorf("TargetBranch = %q, want %q", d.TargetBranch, working)
			}
		})
	}
}

func TestDecideForceNewOverridesReuse(t *testing.T) {
	s := NewStrategyWithClock(fixedClock)
	d := s.Decide("force it", "feature/login", true)

	if d.SkipCreation {
		t.Error("forceNew must always create a branch")
	}
	if !strings.HasPrefix(d.TargetBranch, "patch/") {
		t.Errorf("expected patch/ prefix, got %q", d.TargetBranch)
	}
}

func TestDecideUnknownBranchDefaultsToIsolation(t *testing.T) {
	s := NewStrategyWithClock(fixedClock)
	d := s.Decide("some change", "experiments", false)

	if d.SkipCreation {
		t.Error("unknown branch should not be reused")
	}
	if !strings.HasPrefix(d.TargetBranch, "patch/") {
		t.Errorf("expected patch/ prefix, got %q", d.TargetBranch)
	}
}

func TestDecideIdempotent(t *testing.T) {
	s := NewStrategyWithClock(fixedClock)

	first := s.Decide("same input", "main", false)
	second := s.Decide("same input", "main", false)
	if first != second {
		t.Errorf("identical inputs with a fixed clock should yield identical decisions:\n%+v\n%+v", first, second)
	}
}

func TestDecideDegraded(t *testing.T) {
	s := NewStrategyWithClock(fixedClock)
	s.Decide("warm up last known", "feature/known", false)

	d := s.DecideDegraded(errors.New("git exited 128"))
	if !d.SkipCreation {
		t.Error("degraded decision must skip creation")
	}
	if d.TargetBranch != "feature/known" {
		t.Errorf("TargetBranch = %q, want last known branch", d.TargetBranch)
	}
	if !strings.Contains(d.Reason, "git exited 128") {
		t.Errorf("reason should record the detection failure, got %q", d.Reason)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "fix syntax errors", "fix-syntax-errors"},
		{"case preserved", "Fix Login Bug", "Fix-Login-Bug"},
		{"punctuation collapsed", "fix: this -- now!!", "fix-this-now"},
		{"leading trailing trimmed", "...fix...", "fix"},
		{"empty input", "", ""},
		{"only punctuation", "!!!", ""},
		{
			"truncated to 40",
			"this is a very long description that keeps going and going",
			"this-is-a-very-long-description-that-kee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(tt.want) > 0 && len(Slugify(tt.in)) > 40 {
				t.Error("slug exceeds 40 characters")
			}
		})
	}
}
