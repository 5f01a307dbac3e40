// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildcell/lib/buildspec"
)

// Fixed PATH values for the sandboxed command. The inherited host PATH
// is discarded so host tooling locations never leak in; root gets the
// sbin directories, everyone else the user list.
const (
	rootPATH = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	userPATH = "/usr/local/bin:/usr/bin:/bin"
)

// PathFor returns the sandbox PATH for a target UID.
func PathFor(uid uint32) string {
	if uid == 0 {
		return rootPATH
	}
	return userPATH
}

// withPath returns environ with its PATH entry replaced by path,
// appending one if none exists. The input slice is not modified.
func withPath(environ []string, path string) []string {
	result := make([]string, 0, len(environ)+1)
	replaced := false
	for _, entry := range environ {
		if strings.HasPrefix(entry, "PATH=") {
			result = append(result, "PATH="+path)
			replaced = true
			continue
		}
		result = append(result, entry)
	}
	if !replaced {
		result = append(result, "PATH="+path)
	}
	return result
}

// lookupExecutable resolves name against an explicit colon-separated
// path list. Names containing a path separator are used verbatim. This
// deliberately does not consult the process's own PATH: the supervisor
// resolves against the sandbox PATH it is about to hand the command.
func lookupExecutable(name, pathList string) (string, error) {
	if strings.Contains(name, "/") {
		if err := isExecutable(name); err != nil {
			return "", err
		}
		return name, nil
	}
	for _, dir := range strings.Split(pathList, ":") {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if err := isExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: executable not found in %s", name, pathList)
}

func isExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", path)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("%s: permission denied", path)
	}
	return nil
}

// RunAndReap starts the target command and acts as the namespace's
// init until it exits, returning the exit code to propagate.
//
// As PID 1 of the PID namespace this process inherits every orphaned
// descendant of the command, and each one must be reaped or it stays a
// zombie for the life of the namespace. The loop therefore waits for
// any child, discards reaped processes that are not the tracked one,
// and finishes when the tracked child is collected.
//
// A tracked child that terminates on a signal maps to 128+signum, the
// shell convention, rather than waiting forever for an exit status
// that will never come. Any other status shape for the tracked child
// keeps the loop waiting (stopped children are not terminal).
//
// A failure to start the command at all is not an internal fault: the
// diagnostic goes to stderr and the code is [ExecFailureCode].
func RunAndReap(spec *buildspec.Spec, logger *slog.Logger) (int, error) {
	path := PathFor(spec.User.UID)
	env := withPath(os.Environ(), path)

	binary, err := lookupExecutable(spec.Process.Args[0], path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error when executing program: %v\n", err)
		return ExecFailureCode, nil
	}

	// The init stage carried mount and chroot capabilities across its
	// execve in the ambient set; the command must not inherit them.
	// Capability sets are per-thread, so the drop and the fork have to
	// happen on the same one.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := dropAmbientCapabilities(); err != nil {
		return 0, &StepError{Stage: "supervisor", Op: "drop-ambient", Err: err}
	}

	proc, err := os.StartProcess(binary, spec.Process.Args, &os.ProcAttr{
		Env:   env,
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error when executing program: %v\n", err)
		return ExecFailureCode, nil
	}
	tracked := proc.Pid

	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, &StepError{Stage: "supervisor", Op: "wait4", Err: err}
		}
		if pid != tracked {
			// An orphaned descendant reparented to us. Reaped, discarded.
			continue
		}

		code, terminal := exitCodeForStatus(status)
		if !terminal {
			continue
		}
		if status.Signaled() {
			logger.Warn("command terminated by signal", "signal", status.Signal())
		} else if code != 0 {
			logger.Warn("command exited non-zero", "code", code)
		}
		return code, nil
	}
}

// dropAmbientCapabilities clears the calling thread's ambient
// capability set. The permitted and effective sets are untouched; the
// point is what the next execve hands to the command, not what this
// process can still do.
func dropAmbientCapabilities() error {
	return unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_CLEAR_ALL, 0, 0, 0)
}

// exitCodeForStatus maps a wait status to a propagatable exit code.
// terminal is false for statuses (stopped, continued) that do not end
// the process.
func exitCodeForStatus(status unix.WaitStatus) (code int, terminal bool) {
	switch {
	case status.Exited():
		return status.ExitStatus(), true
	case status.Signaled():
		return 128 + int(status.Signal()), true
	default:
		return 0, false
	}
}
