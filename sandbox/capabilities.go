// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// Capabilities describes what sandbox features the host kernel allows.
type Capabilities struct {
	// UserNamespacesEnabled is true if unprivileged user namespaces
	// can be created.
	UserNamespacesEnabled bool

	// MaxUserNamespaces is the kernel's user namespace limit, or -1
	// when the sysctl is absent.
	MaxUserNamespaces int
}

// DetectCapabilities probes the host for sandbox support.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{
		UserNamespacesEnabled: true,
		MaxUserNamespaces:     -1,
	}

	// Debian-style kernels gate unprivileged user namespaces behind a
	// sysctl. The file not existing means no gate.
	if data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone"); err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			caps.UserNamespacesEnabled = false
		}
	}

	if data, err := os.ReadFile("/proc/sys/user/max_user_namespaces"); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			caps.MaxUserNamespaces = n
			if n == 0 {
				caps.UserNamespacesEnabled = false
			}
		}
	}

	// The sysctls can lie (container seccomp policies block the clone
	// regardless), so confirm by actually creating a user namespace.
	if caps.UserNamespacesEnabled {
		caps.UserNamespacesEnabled = probeUserNamespace()
	}

	return caps
}

// probeUserNamespace creates a throwaway user namespace around a no-op
// command to confirm that unprivileged CLONE_NEWUSER actually works.
func probeUserNamespace() bool {
	path, err := exec.LookPath("true")
	if err != nil {
		// Nothing safe to probe with; trust the sysctls.
		return true
	}
	cmd := exec.Command(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER,
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Geteuid(), Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getegid(), Size: 1},
		},
		GidMappingsEnableSetgroups: false,
	}
	return cmd.Run() == nil
}

// CanRunSandbox returns true if sandbox execution is possible.
func (c *Capabilities) CanRunSandbox() bool {
	return c.UserNamespacesEnabled
}

// SkipReason returns a human-readable reason why sandboxing isn't
// available, or empty string if it is.
func (c *Capabilities) SkipReason() string {
	if c.MaxUserNamespaces == 0 {
		return "user namespaces exhausted or disabled (user.max_user_namespaces=0)"
	}
	if !c.UserNamespacesEnabled {
		return "unprivileged user namespaces not available (check kernel.unprivileged_userns_clone and container seccomp policy)"
	}
	return ""
}
