// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// buildcell runs one build command inside an unprivileged namespace
// sandbox: a read-only rootfs with a curated /dev, fresh /run and /tmp,
// and the caller's bind mounts, under the identity the specification
// asks for.
//
// Usage:
//
//	buildcell [flags] <spec-file>
//
// The specification document is JSON (comments and trailing commas
// tolerated) or YAML by extension:
//
//	{
//	    "rootfs": "/var/lib/cells/rootfs",
//	    "user": {"uid": 1000, "gid": 1000},
//	    "process": {"args": ["make", "install"]},
//	    "bindMounts": [
//	        {"source": "/srv/src/pkg", "destination": "/work"},
//	    ],
//	}
//
// The tool's exit code is the command's exit code, verbatim. A command
// that cannot be executed yields 1; a sandbox setup fault yields 125.
package main
