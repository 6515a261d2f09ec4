// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the access point daemon's configuration file.
//
// Configuration comes from a single file named by either the
// FAP_CONFIG environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no discovery and no per-field environment
// override. Without a file, [Default] is the complete configuration.
//
// Files are YAML. Files ending in .json or .jsonc are JSON with
// optional comments and trailing commas, which are stripped before
// parsing. Durations are written as Go duration strings ("10s",
// "500ms").
//
// ${VAR} and ${VAR:-default} patterns are expanded in path fields
// after loading.
//
// [Watch] reports every successful reload of the file, so a running
// daemon can pick up changes such as a new log level.
//
// This package depends on no other packages of this module.
package config
