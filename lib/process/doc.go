// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These functions
// centralize the raw stderr reporting that happens before the
// structured logger exists or after an unrecoverable error in main().
package process
