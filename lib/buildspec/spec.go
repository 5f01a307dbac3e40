// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildspec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Spec describes a single sandbox run. It is constructed once from the
// orchestrator's specification document and never mutated afterwards.
type Spec struct {
	// Rootfs is the absolute path to the directory that becomes the
	// sandbox's /. It must exist and be readable by the invoking user.
	Rootfs string `json:"rootfs" yaml:"rootfs"`

	// User is the identity the command runs as inside the sandbox.
	User Identity `json:"user" yaml:"user"`

	// Process holds the command line to execute.
	Process ProcessSpec `json:"process" yaml:"process"`

	// BindMounts are extra bind mounts, applied in list order. A later
	// entry may target a path created by an earlier one.
	BindMounts []BindMount `json:"bindMounts" yaml:"bindMounts"`
}

// Identity is the numeric user and group the sandboxed command runs as.
type Identity struct {
	UID uint32 `json:"uid" yaml:"uid"`
	GID uint32 `json:"gid" yaml:"gid"`
}

// ProcessSpec holds the command line. Args[0] is the executable,
// resolved via the sandbox's PATH.
type ProcessSpec struct {
	Args []string `json:"args" yaml:"args"`
}

// BindMount attaches Source (a host path) at Destination, which is an
// absolute path interpreted under the rootfs, never the host root.
type BindMount struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
}

// Validate checks the spec for shape errors before any namespace or
// mount operation runs. All problems are reported together.
func (s *Spec) Validate() error {
	var errors []string

	if s.Rootfs == "" {
		errors = append(errors, "rootfs is required")
	} else if !filepath.IsAbs(s.Rootfs) {
		errors = append(errors, fmt.Sprintf("rootfs %q must be an absolute path", s.Rootfs))
	} else if info, err := os.Stat(s.Rootfs); err != nil {
		errors = append(errors, fmt.Sprintf("rootfs %q: %v", s.Rootfs, err))
	} else if !info.IsDir() {
		errors = append(errors, fmt.Sprintf("rootfs %q is not a directory", s.Rootfs))
	}

	if len(s.Process.Args) == 0 {
		errors = append(errors, "process.args must not be empty")
	} else if s.Process.Args[0] == "" {
		errors = append(errors, "process.args[0] must not be empty")
	}

	for i, bm := range s.BindMounts {
		if bm.Source == "" {
			errors = append(errors, fmt.Sprintf("bindMounts[%d]: source is required", i))
		} else if !filepath.IsAbs(bm.Source) {
			errors = append(errors, fmt.Sprintf("bindMounts[%d]: source %q must be an absolute path", i, bm.Source))
		}
		if bm.Destination == "" {
			errors = append(errors, fmt.Sprintf("bindMounts[%d]: destination is required", i))
		} else if !filepath.IsAbs(bm.Destination) {
			errors = append(errors, fmt.Sprintf("bindMounts[%d]: destination %q must be an absolute path under rootfs", i, bm.Destination))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("specification validation failed:\n  %s", strings.Join(errors, "\n  "))
	}
	return nil
}

// JoinInside resolves an absolute sandbox path to its location under
// rootfs on the host. "/dev/null" under rootfs "/sandbox" is
// "/sandbox/dev/null". Cleaning happens before the prefix strip, so
// ".." segments cannot walk above the rootfs.
func JoinInside(rootfs, path string) string {
	return filepath.Join(rootfs, strings.TrimPrefix(filepath.Clean("/"+path), "/"))
}
