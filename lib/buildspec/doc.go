// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildspec defines the sandbox specification document and its
// parsing and validation.
//
// A specification describes one sandbox run: the root filesystem to
// present as /, the identity the command runs as, extra bind mounts,
// and the command line itself. It is produced by the build orchestrator
// and consumed read-only by the sandbox package; after [Load] returns,
// nothing mutates the [Spec].
//
// Documents are authored as JSON extended with // line comments,
// /* block comments */, and trailing commas, or as YAML when the file
// has a .yaml or .yml extension. Both forms decode to the same [Spec].
package buildspec
