// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import "errors"

var (
	// ErrAlreadyRunning is returned by Initialize on a running server.
	ErrAlreadyRunning = errors.New("fapserver: server already running")

	// ErrNotRunning is returned by queries and commands on a server
	// that has not been initialized or has been terminated.
	ErrNotRunning = errors.New("fapserver: server not running")

	// ErrInvalidCoordinates is returned by MoveTo for a target with a
	// NaN or infinite axis.
	ErrInvalidCoordinates = errors.New("fapserver: coordinates are not finite")

	// ErrRegistryClosed is returned by Registry.Admit after Close.
	ErrRegistryClosed = errors.New("fapserver: registry closed")

	// ErrNoFreeSlot is returned by Registry.Admit when every slot is in
	// use.
	ErrNoFreeSlot = errors.New("fapserver: no free session slot")

	// ErrShutdownTimeout marks a Terminate step that did not finish
	// within ShutdownTimeout.
	ErrShutdownTimeout = errors.New("fapserver: shutdown step timed out")
)
