// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildcell/lib/buildspec"
)

// InitMain is the entry point of the re-executed init stage. It runs as
// PID 1 of the new PID namespace, assembles the filesystem view, runs
// the target command under the reaping supervisor, and exits with the
// command's code. It never returns.
//
// The stage refuses to run outside its intended context: the marker
// environment variable must be present and the process must be PID 1.
func InitMain(args []string, logger *slog.Logger) {
	if os.Getenv(initStageEnv) != "1" || os.Getpid() != 1 {
		fmt.Fprintln(os.Stderr, "error: \"init\" is an internal stage and not meant to be run directly")
		os.Exit(SetupFailureCode)
	}
	os.Unsetenv(initStageEnv)

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "error: init stage expects exactly one specification path")
		os.Exit(SetupFailureCode)
	}

	// The document was validated by the outer stage; a failure here
	// means it changed or vanished between the two reads.
	spec, err := buildspec.Load(args[0])
	if err != nil {
		logger.Error("init stage could not reload specification", "error", err)
		os.Exit(SetupFailureCode)
	}

	if err := Initialize(spec, logger); err != nil {
		logger.Error("sandbox setup failed", "error", err)
		os.Exit(SetupFailureCode)
	}

	code, err := RunAndReap(spec, logger)
	if err != nil {
		logger.Error("supervisor failed", "error", err)
		os.Exit(SetupFailureCode)
	}
	os.Exit(code)
}

// Initialize produces the chrooted, mount-isolated view of the rootfs.
// The process already sits in its own mount namespace (created at clone
// time with the user and PID namespaces); the mount plan's first step
// seals propagation so nothing here reaches the host or a sibling run.
// Ordered steps: apply the mount plan, chroot, chdir. The chroot alone
// does not change the working directory, and a working directory left
// outside the new root is an escape vector, so the chdir is mandatory.
func Initialize(spec *buildspec.Spec, logger *slog.Logger) error {
	resolvConf, err := ResolveResolvConf()
	if err != nil {
		return err
	}

	plan := BuildMountPlan(spec, resolvConf)
	logger.Debug("applying mount plan", "steps", len(plan))
	if err := applyMountPlan(plan); err != nil {
		return err
	}

	if err := unix.Chroot(spec.Rootfs); err != nil {
		return &StepError{Stage: "init", Op: "chroot", Path: spec.Rootfs, Err: err}
	}
	if err := unix.Chdir("/"); err != nil {
		return &StepError{Stage: "init", Op: "chdir", Path: "/", Err: err}
	}
	return nil
}
