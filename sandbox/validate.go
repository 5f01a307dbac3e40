// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/buildcell/lib/buildspec"
)

// ValidationResult holds the result of one preflight check.
type ValidationResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool // True if this is a warning, not an error.
}

// Validator performs preflight checks for a specification without
// creating any namespace or performing any mount. It answers "would
// this run have a chance of succeeding" before the orchestrator
// commits to it.
type Validator struct {
	results []ValidationResult
	errors  int
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		results: make([]ValidationResult, 0),
	}
}

// Results returns all validation results.
func (v *Validator) Results() []ValidationResult {
	return v.results
}

// HasErrors returns true if any check failed.
func (v *Validator) HasErrors() bool {
	return v.errors > 0
}

func (v *Validator) pass(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: true, Message: message})
}

func (v *Validator) warn(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: true, Message: message, Warning: true})
}

func (v *Validator) fail(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: false, Message: message})
	v.errors++
}

// ValidateAll runs every preflight check for a specification.
func (v *Validator) ValidateAll(spec *buildspec.Spec) {
	v.ValidateUserNamespaces()
	v.ValidateSpec(spec)
	v.ValidateRootfs(spec)
	v.ValidateDevices(spec)
	v.ValidateResolvConf(spec)
	v.ValidateBindSources(spec)
}

// ValidateUserNamespaces checks that unprivileged user namespaces are
// available.
func (v *Validator) ValidateUserNamespaces() {
	caps := DetectCapabilities()
	if !caps.CanRunSandbox() {
		v.fail("userns", caps.SkipReason())
		return
	}
	v.pass("userns", "unprivileged user namespaces available")
}

// ValidateSpec checks the specification's own shape.
func (v *Validator) ValidateSpec(spec *buildspec.Spec) {
	if spec == nil {
		v.fail("spec", "specification is nil")
		return
	}
	if err := spec.Validate(); err != nil {
		v.fail("spec", err.Error())
		return
	}
	v.pass("spec", fmt.Sprintf("command %v as uid=%d gid=%d", spec.Process.Args, spec.User.UID, spec.User.GID))
}

// ValidateRootfs checks that the rootfs exists, is a directory, and is
// readable by the invoking user.
func (v *Validator) ValidateRootfs(spec *buildspec.Spec) {
	if spec == nil || spec.Rootfs == "" {
		return
	}
	info, err := os.Stat(spec.Rootfs)
	if err != nil {
		if os.IsNotExist(err) {
			v.fail("rootfs", fmt.Sprintf("does not exist: %s", spec.Rootfs))
		} else {
			v.fail("rootfs", fmt.Sprintf("cannot access: %v", err))
		}
		return
	}
	if !info.IsDir() {
		v.fail("rootfs", fmt.Sprintf("not a directory: %s", spec.Rootfs))
		return
	}
	if _, err := os.ReadDir(spec.Rootfs); err != nil {
		v.fail("rootfs", fmt.Sprintf("not readable: %v", err))
		return
	}
	v.pass("rootfs", fmt.Sprintf("exists: %s", spec.Rootfs))
}

// ValidateDevices checks that each allow-listed device node exists on
// the host and has a mount point inside the rootfs. A missing mount
// point is an error: the device bind would fail at setup time.
func (v *Validator) ValidateDevices(spec *buildspec.Spec) {
	if spec == nil || spec.Rootfs == "" {
		return
	}
	missing := 0
	for _, dev := range deviceBinds {
		source := filepath.Join("/dev", dev)
		if _, err := os.Stat(source); err != nil {
			v.fail("devices", fmt.Sprintf("host device missing: %s", source))
			missing++
			continue
		}
		target := buildspec.JoinInside(spec.Rootfs, filepath.Join("/dev", dev))
		if _, err := os.Stat(target); err != nil {
			v.fail("devices", fmt.Sprintf("rootfs has no mount point for %s (expected %s)", source, target))
			missing++
		}
	}
	if missing == 0 {
		v.pass("devices", fmt.Sprintf("all %d device nodes present", len(deviceBinds)))
	}
}

// ValidateResolvConf checks that the host's DNS configuration resolves
// and that the rootfs has a mount point for it.
func (v *Validator) ValidateResolvConf(spec *buildspec.Spec) {
	resolved, err := ResolveResolvConf()
	if err != nil {
		v.warn("resolv.conf", fmt.Sprintf("cannot resolve host /etc/resolv.conf: %v (name resolution will not work)", err))
		return
	}
	if spec != nil && spec.Rootfs != "" {
		target := buildspec.JoinInside(spec.Rootfs, "/etc/resolv.conf")
		if _, err := os.Stat(target); err != nil {
			v.fail("resolv.conf", fmt.Sprintf("rootfs has no mount point at %s", target))
			return
		}
	}
	v.pass("resolv.conf", fmt.Sprintf("host file: %s", resolved))
}

// ValidateBindSources checks that every bind mount source exists and
// every destination has a mount point inside the rootfs. Destinations
// are only warned about: an earlier bind in the list may create a
// later one's mount point.
func (v *Validator) ValidateBindSources(spec *buildspec.Spec) {
	if spec == nil {
		return
	}
	for i, bm := range spec.BindMounts {
		if _, err := os.Stat(bm.Source); err != nil {
			v.fail("bind", fmt.Sprintf("bindMounts[%d]: source not found: %s", i, bm.Source))
			continue
		}
		target := buildspec.JoinInside(spec.Rootfs, bm.Destination)
		if _, err := os.Stat(target); err != nil {
			v.warn("bind", fmt.Sprintf("bindMounts[%d]: no mount point at %s (ok if an earlier bind creates it)", i, target))
			continue
		}
		v.pass("bind", fmt.Sprintf("%s -> %s", bm.Source, bm.Destination))
	}
}

// PrintResults writes validation results to a writer.
func (v *Validator) PrintResults(w io.Writer) {
	for _, r := range v.results {
		var prefix string
		if r.Passed {
			if r.Warning {
				prefix = "⚠"
			} else {
				prefix = "✓"
			}
		} else {
			prefix = "✗"
		}
		fmt.Fprintf(w, "%s %s: %s\n", prefix, r.Name, r.Message)
	}

	fmt.Fprintln(w)
	if v.HasErrors() {
		fmt.Fprintf(w, "Validation failed with %d error(s)\n", v.errors)
	} else {
		fmt.Fprintln(w, "Ready to run sandbox")
	}
}
