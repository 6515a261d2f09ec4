// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package autopilot is the boundary between the FAP management server
// and the flight controller that moves the access point.
//
// The server only needs four things from a flight controller: a
// periodic heartbeat, the current local NED position, a way to command
// a new NED target, and the GPS global origin that anchors the local
// frame. [FlightController] captures exactly that surface, with
// [FlightController.Initialize] and [FlightController.Terminate]
// bracketing its lifetime.
//
// [Emulator] is an in-memory FlightController. It holds the origin and
// the current position, applies position targets immediately, and logs
// every heartbeat. It refuses calls before Initialize and a second
// Initialize without an intervening Terminate, so lifecycle mistakes in
// callers surface as errors in tests rather than as silent state.
package autopilot
