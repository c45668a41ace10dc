package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/labops/patchctl/internal/analyzer"
	"github.com/labops/patchctl/internal/dedup"
	"github.com/labops/patchctl/internal/git"
	"github.com/labops/patchctl/internal/tracker"
	"github.com/labops/patchctl/internal/types"
)

func initGit(ctx context.Context) (*git.Git, error) {
	return git.New(ctx, cfg.RepoPath)
}

// initTracker builds the GitHub tracker from configuration. Returns an
// error when the required credentials are missing.
func initTracker(ctx context.Context) (*tracker.GitHubTracker, error) {
	if err := cfg.RequireTracker(); err != nil {
		return nil, err
	}
	return tracker.NewGitHubTracker(ctx, tracker.GitHubOptions{
		Token:             cfg.GitHub.Token,
		Repository:        cfg.GitHub.Repository,
		Domain:            cfg.GitHub.Domain,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	})
}

func initDedup(trk dedup.IssueTracker) (*dedup.Engine, error) {
	return dedup.NewEngine(trk, cfg.Dedup)
}

// commandOperation wraps a shell command as a change operation.
func commandOperation(command string) types.ChangeOperation {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = cfg.RepoPath
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(string(output)))
		}
		return nil
	}
}

// commandOperationWithEnv is commandOperation with extra environment
// variables for the spawned command.
func commandOperationWithEnv(command string, env map[string]string) types.ChangeOperation {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = cfg.RepoPath
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(string(output)))
		}
		return nil
	}
}

// commandValidator runs a check command and converts its output into a
// validation result. A zero exit is a single passing check; a non-zero
// exit is parsed for individual test failures.
type commandValidator struct {
	command string
}

func (v *commandValidator) Validate(ctx context.Context) (*types.ValidationResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", v.command)
	cmd.Dir = cfg.RepoPath
	output, err := cmd.CombinedOutput()
	raw := string(output)

	if err == nil {
		return &types.ValidationResult{
			Checks:    map[string]types.CheckOutcome{"validate": {Passed: true}},
			RawOutput: raw,
		}, nil
	}

	result := analyzer.ParseTestLog(raw)
	if len(result.FailedChecks()) == 0 {
		// Nothing recognizable in the output; record the command
		// failure itself.
		result.Checks["validate"] = types.CheckOutcome{
			Passed: false,
			Detail: fmt.Sprintf("%v: %s", err, truncate(raw, 500)),
		}
	}
	return result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
