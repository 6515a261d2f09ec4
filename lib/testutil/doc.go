// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for FAP packages.
//
// [RequireReceive] and [RequireClosed] wrap the timeout safety valve
// (select with a wall-clock fallback) so that tests never call
// time.After themselves. They are the only place in the test suite
// where real wall-clock timeouts appear: everything the server times
// itself runs on an injected clock.
//
// [SocketDir] creates a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes and so cannot live under a
// deeply nested t.TempDir().
//
// [Logger] returns a slog.Logger that writes through t.Log, so server
// logs appear next to the failing test and nowhere else.
//
// All helpers call t.Fatalf on failure.
package testutil
