// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildcell/lib/buildspec"
)

// deviceBinds is the fixed allow-list of host device nodes exposed
// inside the sandbox. Each is bind-mounted from /dev on the host onto
// the same name under the rootfs's /dev, preserving host device
// semantics without exposing the full host /dev.
var deviceBinds = []string{"tty", "null", "zero", "full", "random", "urandom"}

// freshMounts lists the filesystem instances created fresh and empty
// inside the rootfs. These are genuinely new instances, not bind
// mounts of the host's, so no host state leaks in and each run gets
// independent scratch space.
var freshMounts = []struct {
	FSType string
	Dest   string
}{
	{"devpts", "/dev/pts"},
	{"tmpfs", "/dev/shm"},
	{"tmpfs", "/run"},
	{"tmpfs", "/tmp"},
}

// MountStep is one mount operation in the sandbox's filesystem
// assembly. The plan is built as data so the ordered sequence can be
// inspected and tested without performing any mounts.
type MountStep struct {
	// Name identifies the step in diagnostics, e.g. "rootfs-ro" or
	// "device /dev/null".
	Name string

	// Source is the mount source; empty for fresh filesystem instances.
	Source string

	// Target is the mount point on the host side (under rootfs).
	Target string

	// FSType is the filesystem type for fresh mounts; empty for binds.
	FSType string

	// Flags are the mount(2) flags.
	Flags uintptr

	// Data is the mount(2) data string, usually empty.
	Data string
}

// String renders the step the way mount(8) would describe it.
func (s MountStep) String() string {
	if s.Flags&unix.MS_PRIVATE != 0 {
		return fmt.Sprintf("%s: mount --make-rprivate %s", s.Name, s.Target)
	}
	if s.FSType != "" {
		return fmt.Sprintf("%s: mount -t %s %s", s.Name, s.FSType, s.Target)
	}
	return fmt.Sprintf("%s: mount --bind %s %s", s.Name, s.Source, s.Target)
}

// ResolveResolvConf resolves the host's DNS configuration file through
// any symlinks (systemd-resolved and friends keep /etc/resolv.conf as
// a link into /run). The resolved file is what gets bind-mounted into
// the sandbox.
func ResolveResolvConf() (string, error) {
	resolved, err := filepath.EvalSymlinks("/etc/resolv.conf")
	if err != nil {
		return "", &StepError{Stage: "init", Op: "resolve", Path: "/etc/resolv.conf", Err: err}
	}
	return resolved, nil
}

// BuildMountPlan produces the ordered mount sequence for a
// specification. The order is load-bearing:
//
//  1. / remounted recursively private, so nothing that follows
//     propagates back to the host's mount table.
//  2. rootfs bind-mounted onto itself, then remounted read-only. A
//     plain bind mount ignores MS_RDONLY; only the follow-up remount
//     honors it.
//  3. The device allow-list, bound one node at a time into rootfs/dev.
//  4. The resolved host resolv.conf, so name resolution works without
//     copying the file.
//  5. Fresh devpts and tmpfs instances.
//  6. The caller's bind mounts in record order: a later entry may
//     target a path created by an earlier one.
//
// resolvConf is the symlink-resolved host path from
// [ResolveResolvConf]; threading it in keeps the plan a pure function
// of its inputs.
func BuildMountPlan(spec *buildspec.Spec, resolvConf string) []MountStep {
	var plan []MountStep

	plan = append(plan,
		MountStep{
			Name:   "seal-propagation",
			Source: "none",
			Target: "/",
			Flags:  unix.MS_REC | unix.MS_PRIVATE,
		},
		MountStep{
			Name:   "rootfs-bind",
			Source: spec.Rootfs,
			Target: spec.Rootfs,
			Flags:  unix.MS_BIND,
		},
		MountStep{
			Name:   "rootfs-ro",
			Source: spec.Rootfs,
			Target: spec.Rootfs,
			Flags:  unix.MS_REMOUNT | unix.MS_BIND | unix.MS_RDONLY,
		},
	)

	for _, dev := range deviceBinds {
		source := filepath.Join("/dev", dev)
		plan = append(plan, MountStep{
			Name:   "device " + source,
			Source: source,
			Target: buildspec.JoinInside(spec.Rootfs, filepath.Join("/dev", dev)),
			Flags:  unix.MS_BIND,
		})
	}

	plan = append(plan, MountStep{
		Name:   "resolv.conf",
		Source: resolvConf,
		Target: buildspec.JoinInside(spec.Rootfs, "/etc/resolv.conf"),
		Flags:  unix.MS_BIND,
	})

	for _, fm := range freshMounts {
		plan = append(plan, MountStep{
			Name:   fm.FSType + " " + fm.Dest,
			Target: buildspec.JoinInside(spec.Rootfs, fm.Dest),
			FSType: fm.FSType,
		})
	}

	for _, bm := range spec.BindMounts {
		plan = append(plan, MountStep{
			Name:   "bind " + bm.Destination,
			Source: bm.Source,
			Target: buildspec.JoinInside(spec.Rootfs, bm.Destination),
			Flags:  unix.MS_BIND | unix.MS_REC,
		})
	}

	return plan
}

// applyMountPlan performs each step in order. The first failure aborts:
// a partially assembled filesystem view is never handed to the target
// command, and the mount namespace is discarded on exit anyway.
func applyMountPlan(plan []MountStep) error {
	for _, step := range plan {
		if err := unix.Mount(step.Source, step.Target, step.FSType, step.Flags, step.Data); err != nil {
			return &StepError{Stage: "init", Op: "mount (" + step.Name + ")", Path: step.Target, Err: err}
		}
	}
	return nil
}
