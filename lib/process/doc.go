// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the FAP binaries:
// fatal error reporting to stderr before the structured logger exists,
// and the process exit that follows it.
package process
