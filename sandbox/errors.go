// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "fmt"

// Exit codes for the tool's own failure modes. The target command's
// exit code is propagated verbatim, so these must stay clear of 0.
const (
	// ExecFailureCode is returned when the target command cannot be
	// executed at all (missing binary, not executable). This is a
	// caller-input problem, reported distinctly from setup faults.
	ExecFailureCode = 1

	// SetupFailureCode is returned when a namespace, mount, identity,
	// or chroot operation fails. A partially configured sandbox is
	// never handed to the target command.
	SetupFailureCode = 125
)

// StepError describes a failed setup operation: which stage it belongs
// to, the syscall or operation that failed, and the path it was applied
// to. Setup is a pipeline of fallible steps; the first StepError aborts
// the whole run.
type StepError struct {
	// Stage is the setup stage: "bootstrap", "init", or "supervisor".
	Stage string

	// Op is the operation that failed, e.g. "unshare", "mount",
	// "chroot", "wait4".
	Op string

	// Path is the filesystem path the operation was applied to, if any.
	Path string

	// Err is the underlying error.
	Err error
}

func (e *StepError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Stage, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ExitError represents a non-zero exit from the sandboxed command. It
// is not a fault: the target's exit code is the primary output of the
// tool and is propagated byte-for-byte.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// IsExitError checks if an error is an ExitError and returns the code.
func IsExitError(err error) (int, bool) {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr.Code, true
	}
	return 0, false
}
