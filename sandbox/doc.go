// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox constructs an isolated execution environment for a
// single build command and runs the command inside it.
//
// The isolation is namespace-based and fully unprivileged: a private
// user namespace maps the invoking user's effective UID/GID to the
// identity requested by the specification, a private PID namespace
// gives the sandbox its own init, and a private mount namespace holds a
// read-only view of the rootfs with a curated /dev, fresh tmpfs
// instances at /dev/shm, /run and /tmp, and the caller's bind mounts.
//
// Execution spans three process generations. The outer process ([Run])
// re-executes itself into the new user, PID, and mount namespaces with
// the identity mapping applied at clone time and the mount and chroot
// capabilities raised into the ambient set, which is what survives the
// re-exec when the mapped identity is non-root. The re-executed init
// stage ([InitMain]) becomes PID 1 of the PID namespace, applies the
// mount plan ([BuildMountPlan]) inside its private mount namespace,
// chroots into the rootfs, and hands off to the supervisor
// ([RunAndReap]), which clears the ambient set, starts the target
// command, and reaps every descendant until the tracked child exits.
// Each generation propagates the next one's exit code outward, so the
// tool's own exit code equals the target command's.
//
// Every setup step is fatal on failure and reported as a [StepError]
// naming the failing operation. There is no rollback: the kernel
// discards the mount namespace and everything in it when its last
// process exits. The sandbox is build hygiene, not hostile-workload
// containment; it does not defend against a malicious target escaping.
package sandbox
