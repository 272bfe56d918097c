package orchestrator

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/pacforge/internal/model"
)

// Outcome is what happened to one explicit target.
type Outcome string

const (
	OutcomeInstalled Outcome = "installed"
	OutcomeUpToDate  Outcome = "up-to-date"
	OutcomeFailed    Outcome = "failed"
	OutcomePruned    Outcome = "pruned"
	OutcomeAborted   Outcome = "aborted"
)

// Failure is a batch-local failure.
type Failure struct {
	Label string
	Kind  model.ErrorKind
	Err   error
}

// Result is the per-run result record. Labels are package bases for source
// batches and joined package names for repo batches.
type Result struct {
	RunID     string
	Succeeded []string
	Failed    []Failure
	// Pruned lists batches skipped because a dependency failed.
	Pruned []string
	// Aborted is set when the user or a cancellation stopped the run.
	Aborted bool
	// AbortErr is the abort cause: a user abort or the context error.
	AbortErr error
	// NotRun lists batches the abort left untouched.
	NotRun []string
	// Targets maps every explicit target to its outcome.
	Targets map[string]Outcome
	// CleanupErr is set when removing build-only packages failed.
	CleanupErr error
}

// OK reports whether every batch installed.
func (r *Result) OK() bool {
	return len(r.Failed) == 0 && len(r.Pruned) == 0 && !r.Aborted
}

// Err summarizes the failures of the run, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Label, f.Err))
	}
	if len(r.Pruned) > 0 {
		errs = append(errs, fmt.Errorf("%d batch(es) skipped after a dependency failed", len(r.Pruned)))
	}
	if r.Aborted {
		if r.AbortErr != nil {
			errs = append(errs, r.AbortErr)
		} else {
			errs = append(errs, model.ErrUserAbort)
		}
	}
	return errors.Join(errs...)
}
