// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what build of fapd, fapctl or fapsim is
// running.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected with
// -ldflags -X. When GitCommit is not injected, [Current] falls back to
// the vcs.revision, vcs.modified and vcs.time settings the go command
// records in the binary. Test binaries carry neither, so they report
// "unknown".
package version
