// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildcell/lib/buildspec"
)

// initCommand is the internal argv[1] that selects the init stage when
// the binary re-executes itself into the new namespaces.
const initCommand = "init"

// initStageEnv marks the re-executed init stage's environment. InitMain
// refuses to run without it, so the stage cannot be invoked by hand.
const initStageEnv = "_BUILDCELL_INIT"

// InitCommandName returns the internal stage selector so the entrypoint
// can dispatch to [InitMain] before normal argument parsing.
func InitCommandName() string {
	return initCommand
}

// initAmbientCaps are raised into the init stage's ambient set so they
// survive its execve. Creating the user namespace grants the stage full
// capabilities in it, but capabilities survive fork, not exec: when the
// mapped identity is non-root, the execve of the re-exec clears the
// permitted and effective sets and the stage would arrive unable to
// mount or chroot. The ambient set is the one that carries across an
// execve at a non-zero uid; the runtime raises it inside the new user
// namespace, after the identity maps are written. The supervisor clears
// it again before the target command starts ([RunAndReap]), so the
// sandboxed command holds none of this.
var initAmbientCaps = []uintptr{
	unix.CAP_SYS_ADMIN,
	unix.CAP_SYS_CHROOT,
}

// bootstrapCommand builds the re-exec command that becomes PID 1 of the
// new PID namespace. The clone flags create the user, PID, and mount
// namespaces together: the PID namespace must exist before any
// descendant does, and the mount namespace has to be made at clone time
// because unshare(CLONE_NEWNS) from a running Go process fails with
// EINVAL (runtime threads share filesystem state). All mounts still
// happen only in the init stage, which first seals propagation so
// nothing leaks back to the host.
//
// The one-entry UID/GID mappings make the namespace-side identity the
// spec's target user, backed on the host by the outer process's
// effective identity. GidMappingsEnableSetgroups false is the setgroups
// "deny" write: the kernel rejects the GID map from an unprivileged
// creator without it, and the runtime orders it before the map writes.
//
// The child starts already holding the target identity, so no stage
// mutates its own UIDs; identity is threaded entirely through the clone
// attributes.
func bootstrapCommand(spec *buildspec.Spec, specPath string) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, &StepError{Stage: "bootstrap", Op: "resolve-executable", Err: err}
	}

	cmd := exec.Command(self, initCommand, specPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), initStageEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER | syscall.CLONE_NEWPID | syscall.CLONE_NEWNS,
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: int(spec.User.UID), HostID: os.Geteuid(), Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: int(spec.User.GID), HostID: os.Getegid(), Size: 1},
		},
		GidMappingsEnableSetgroups: false,
		AmbientCaps:                initAmbientCaps,
	}
	return cmd, nil
}

// Run executes the specification: it clones the init stage into new
// user and PID namespaces, blocks until the stage exits, and propagates
// its exit code. A zero target exit returns nil; a non-zero one returns
// an [ExitError] carrying the code; a failure to create the namespaces
// at all is a setup fault.
//
// specPath is the on-disk specification document, re-read by the init
// stage; spec is its already-validated parse in this process.
func Run(spec *buildspec.Spec, specPath string, logger *slog.Logger) error {
	cmd, err := bootstrapCommand(spec, specPath)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return &StepError{Stage: "bootstrap", Op: "clone", Err: err}
	}

	// The PID is host-visible; inside the namespace the stage is PID 1.
	logger.Info("sandbox init started",
		"pid", cmd.Process.Pid,
		"rootfs", spec.Rootfs,
		"uid", spec.User.UID,
		"gid", spec.User.GID,
	)

	// Second reaping hop: the symmetric blocking wait for the init
	// stage, whose own exit code is the target command's.
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				return &ExitError{Code: 128 + int(status.Signal())}
			}
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return &StepError{Stage: "bootstrap", Op: "wait", Err: err}
	}
	return nil
}
