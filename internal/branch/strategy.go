// Package branch decides which branch a patch run should land on:
// reuse the current working branch or create a fresh, isolated one.
package branch

import (
	"fmt"
	"strings"
	"time"
)

// Protected branches never receive patches directly. A decision with
// SkipCreation=false always yields a target distinct from these.
var protectedBranches = map[string]bool{
	"main":   true,
	"master": true,
}

// workingPrefixes identify branches that are already isolated change
// branches. Reusing them is the anti-recursion rule: applying a patch
// while on a patch branch must not stack another branch on top.
var workingPrefixes = []string{
	"patch/",
	"feature/",
	"fix/",
	"hotfix/",
}

// Decision is the outcome of a branch strategy evaluation, produced once
// per patch request and consumed immediately by the orchestrator.
type Decision struct {
	// CurrentBranch is the branch the repository was on when the
	// decision was made.
	CurrentBranch string

	// TargetBranch is the branch the patch should land on.
	TargetBranch string

	// SkipCreation is true when TargetBranch already exists and should
	// be reused as-is.
	SkipCreation bool

	// Reason records why the decision was made, including degraded-mode
	// notes when branch detection failed.
	Reason string
}

// Strategy decides branching for patch requests.
type Strategy struct {
	now func() time.Time

	// lastKnownBranch is the fallback target when branch detection
	// fails. Updated on every successful Decide call.
	lastKnownBranch string
}

// NewStrategy creates a branch strategy using the system clock.
func NewStrategy() *Strategy {
	return &Strategy{now: time.Now}
}

// NewStrategyWithClock creates a branch strategy with an injected clock
// for deterministic tests.
func NewStrategyWithClock(now func() time.Time) *Strategy {
	return &Strategy{now: now}
}

// Decide evaluates the branching rules for a patch described by
// description, given the branch the repository is currently on.
//
// Rules, in order:
//   - forceNew always creates a fresh patch branch.
//   - A non-protected working branch (patch/, feature/, fix/, hotfix/)
//     is reused.
//   - Protected branches (main, master, release/*) always get a fresh
//     patch branch.
//   - Anything else gets a fresh patch branch. Isolation is the
//     conservative default.
func (s *Strategy) Decide(description, currentBranch string, forceNew bool) Decision {
	s.lastKnownBranch = currentBranch

	if forceNew {
		return Decision{
			CurrentBranch: currentBranch,
			TargetBranch:  s.newBranchName(description),
			SkipCreation:  false,
			Reason:        "new branch forced by request",
		}
	}

	if isWorkingBranch(currentBranch) && !isProtected(currentBranch) {
		return Decision{
			CurrentBranch: currentBranch,
			TargetBranch:  currentBranch,
			SkipCreation:  true,
			Reason:        fmt.Sprintf("already on working branch %s, reusing it", currentBranch),
		}
	}

	if isProtected(currentBranch) {
		return Decision{
			CurrentBranch: currentBranch,
			TargetBranch:  s.newBranchName(description),
			SkipCreation:  false,
			Reason:        fmt.Sprintf("%s is protected, creating patch branch", currentBranch),
		}
	}

	return Decision{
		CurrentBranch: currentBranch,
		TargetBranch:  s.newBranchName(description),
		SkipCreation:  false,
		Reason:        fmt.Sprintf("unrecognized branch %s, creating patch branch for isolation", currentBranch),
	}
}

// DecideDegraded returns a decision for when branch detection itself
// failed. The orchestrator must be able to proceed, so this never
// errors: it reuses the last known branch and records the failure in
// the reason.
func (s *Strategy) DecideDegraded(detectErr error) Decision {
	target := s.lastKnownBranch
	return Decision{
		CurrentBranch: target,
		TargetBranch:  target,
		SkipCreation:  true,
		Reason:        fmt.Sprintf("branch detection failed (%v), reusing last known branch %q", detectErr, target),
	}
}

// newBranchName assembles patch/<timestamp>-<slug>.
func (s *Strategy) newBranchName(description string) string {
	timestamp := s.now().Format("20060102-150405")
	slug := Slugify(description)
	if slug == "" {
		return fmt.Sprintf("patch/%s", timestamp)
	}
	return fmt.Sprintf("patch/%s-%s", timestamp, slug)
}

// Slugify collapses non-alphanumeric runs to single dashes, trims
// leading and trailing dashes, and truncates to 40 characters.
func Slugify(description string) string {
	var b strings.Builder
	lastDash := true // Suppress a leading dash
	for _, r := range description {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	return slug
}

func isProtected(name string) bool {
	if protectedBranches[name] {
		return true
	}
	return strings.HasPrefix(name, "release/")
}

func isWorkingBranch(name string) bool {
	for _, prefix := range workingPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
