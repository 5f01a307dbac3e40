// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestStepError(t *testing.T) {
	err := &StepError{Stage: "init", Op: "mount (rootfs-ro)", Path: "/sandbox", Err: unix.EPERM}
	want := "init: mount (rootfs-ro) /sandbox: operation not permitted"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, unix.EPERM) {
		t.Error("StepError does not unwrap to its cause")
	}

	noPath := &StepError{Stage: "bootstrap", Op: "clone", Err: unix.EINVAL}
	want = "bootstrap: clone: invalid argument"
	if noPath.Error() != want {
		t.Errorf("Error() = %q, want %q", noPath.Error(), want)
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 7}
	if err.Error() != "command exited with code 7" {
		t.Errorf("Error() = %q", err.Error())
	}

	code, ok := IsExitError(err)
	if !ok || code != 7 {
		t.Errorf("IsExitError = (%d, %v), want (7, true)", code, ok)
	}

	if _, ok := IsExitError(errors.New("other")); ok {
		t.Error("IsExitError matched a non-ExitError")
	}
	if _, ok := IsExitError(nil); ok {
		t.Error("IsExitError matched nil")
	}
}
