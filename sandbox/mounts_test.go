// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildcell/lib/buildspec"
)

func planSpec() *buildspec.Spec {
	return &buildspec.Spec{
		Rootfs:  "/sandbox",
		User:    buildspec.Identity{UID: 1000, GID: 1000},
		Process: buildspec.ProcessSpec{Args: []string{"/bin/true"}},
		BindMounts: []buildspec.BindMount{
			{Source: "/host/data", Destination: "/data"},
			{Source: "/host/tools", Destination: "/data/tools"},
		},
	}
}

func TestBuildMountPlanOrder(t *testing.T) {
	plan := BuildMountPlan(planSpec(), "/run/resolv.conf")

	// seal + 2 rootfs + 6 devices + resolv.conf + 4 fresh + 2 user binds.
	if len(plan) != 16 {
		t.Fatalf("plan has %d steps, want 16", len(plan))
	}

	// Propagation is sealed before anything is mounted.
	seal := plan[0]
	if seal.Target != "/" || seal.Flags != unix.MS_REC|unix.MS_PRIVATE {
		t.Errorf("step 0 = %+v, want recursive private remount of /", seal)
	}

	// The read-only root is a two-step: bind, then remount. A single
	// bind mount ignores MS_RDONLY.
	first, second := plan[1], plan[2]
	if first.Source != "/sandbox" || first.Target != "/sandbox" || first.Flags != unix.MS_BIND {
		t.Errorf("step 1 = %+v, want rootfs self-bind", first)
	}
	if second.Flags != unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY {
		t.Errorf("step 2 flags = %#x, want remount|bind|rdonly", second.Flags)
	}
	if second.Target != "/sandbox" {
		t.Errorf("step 2 target = %q", second.Target)
	}

	// Devices follow, in allow-list order.
	wantDevices := []string{"tty", "null", "zero", "full", "random", "urandom"}
	for i, dev := range wantDevices {
		step := plan[3+i]
		if step.Source != "/dev/"+dev {
			t.Errorf("device step %d source = %q, want /dev/%s", i, step.Source, dev)
		}
		if step.Target != "/sandbox/dev/"+dev {
			t.Errorf("device step %d target = %q", i, step.Target)
		}
		if step.Flags != unix.MS_BIND {
			t.Errorf("device step %d flags = %#x, want bind", i, step.Flags)
		}
	}

	resolv := plan[9]
	if resolv.Source != "/run/resolv.conf" || resolv.Target != "/sandbox/etc/resolv.conf" {
		t.Errorf("resolv.conf step = %+v", resolv)
	}

	// Fresh instances: devpts, then tmpfs for shm, run, tmp. These
	// must be new filesystems, not binds of the host's.
	wantFresh := []struct{ fstype, target string }{
		{"devpts", "/sandbox/dev/pts"},
		{"tmpfs", "/sandbox/dev/shm"},
		{"tmpfs", "/sandbox/run"},
		{"tmpfs", "/sandbox/tmp"},
	}
	for i, want := range wantFresh {
		step := plan[10+i]
		if step.FSType != want.fstype || step.Target != want.target {
			t.Errorf("fresh step %d = %+v, want %+v", i, step, want)
		}
		if step.Source != "" {
			t.Errorf("fresh step %d has source %q, must be a new instance", i, step.Source)
		}
	}

	// User binds last, in record order, recursive.
	binds := plan[14:]
	if binds[0].Source != "/host/data" || binds[0].Target != "/sandbox/data" {
		t.Errorf("user bind 0 = %+v", binds[0])
	}
	if binds[1].Source != "/host/tools" || binds[1].Target != "/sandbox/data/tools" {
		t.Errorf("user bind 1 = %+v", binds[1])
	}
	for i, b := range binds {
		if b.Flags != unix.MS_BIND|unix.MS_REC {
			t.Errorf("user bind %d flags = %#x, want bind|rec", i, b.Flags)
		}
	}
}

func TestBuildMountPlanNoBinds(t *testing.T) {
	spec := planSpec()
	spec.BindMounts = nil
	plan := BuildMountPlan(spec, "/etc/resolv.conf")
	if len(plan) != 14 {
		t.Fatalf("plan has %d steps, want 14", len(plan))
	}
}

func TestMountStepString(t *testing.T) {
	bind := MountStep{Name: "bind /data", Source: "/host/data", Target: "/sandbox/data"}
	if got := bind.String(); !strings.Contains(got, "--bind /host/data /sandbox/data") {
		t.Errorf("String() = %q", got)
	}

	fresh := MountStep{Name: "tmpfs /tmp", Target: "/sandbox/tmp", FSType: "tmpfs"}
	if got := fresh.String(); !strings.Contains(got, "-t tmpfs /sandbox/tmp") {
		t.Errorf("String() = %q", got)
	}
}
