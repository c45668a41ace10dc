package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of workflow errors.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"      // Bad or missing request fields
	KindBranch            ErrorKind = "branch"             // Branch creation/checkout failure
	KindOperation         ErrorKind = "operation"          // Change-operation callback failed
	KindCommit            ErrorKind = "commit"             // Staging or commit failure
	KindValidation        ErrorKind = "validation"         // Pre- or post-operation validation failure
	KindPublish           ErrorKind = "publish"            // Publish artifact creation failed
	KindTracking          ErrorKind = "tracking"           // Issue creation/update failed
	KindTransientExternal ErrorKind = "transient_external" // Timeout or network error, retryable
)

// IsValid checks if the error kind value is valid.
func (k ErrorKind) IsValid() bool {
	switch k {
	case KindConfiguration, KindBranch, KindOperation, KindCommit,
		KindValidation, KindPublish, KindTracking, KindTransientExternal:
		return true
	}
	return false
}

// Fatal reports whether the kind always terminates the current run.
// Publish and tracking errors are non-fatal: the code change is already
// durably committed, so the run reports degraded success instead.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindConfiguration, KindBranch, KindOperation, KindCommit:
		return true
	}
	return false
}

// Retryable reports whether the kind is eligible for local retries.
func (k ErrorKind) Retryable() bool {
	return k == KindTransientExternal
}

// WorkflowError wraps an underlying error with its kind and the workflow
// stage it occurred in.
type WorkflowError struct {
	Kind  ErrorKind
	Stage PatchState
	Err   error
}

func (e *WorkflowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error in %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError builds a WorkflowError for the given kind and stage.
func NewWorkflowError(kind ErrorKind, stage PatchState, err error) *WorkflowError {
	return &WorkflowError{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the error kind from err, unwrapping as needed.
// The second return is false when no kind is attached.
func KindOf(err error) (ErrorKind, bool) {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Kind, true
	}
	return "", false
}
