// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fapserver is the FAP management protocol server: it accepts
// TCP connections from mobile clients, runs one protocol session per
// connection, tracks which clients are associated with the access point
// and where they are, and keeps the flight controller's heartbeat going.
//
// # Components
//
// [Registry] owns a fixed number of session slots (MaxAssociatedUsers
// plus MaxRejectedUsers) and the count of associated users. Every
// change to the count goes through one mutex; the count never exceeds
// MaxAssociatedUsers and never drops below zero. A violation is a
// synchronization bug and panics.
//
// A session moves through four states:
//
//	AwaitingAssociation --association accepted--> Associated
//	AwaitingAssociation, Associated --desassociation, timeout,
//	    out of range, peer close, shutdown--> Terminating --joined--> Closed
//
// While associated, a liveness monitor goroutine watches the time of the
// last accepted GPS update (or of the association itself) and ends the
// session when UpdateTimeout passes without one. Independently, each
// receive on the socket carries a ReceiveTimeout deadline; one expiry
// ends the session. Both paths, and every other reason a session ends,
// converge on a single idempotent teardown that shuts the socket down
// in both directions. The slot returns to the registry only after the
// message loop and the monitor have both exited; at that point the
// position record is cleared and, if the session still held an
// association, the count is released exactly once.
//
// The accept loop gives each connection a free slot. When none is free
// the connection is closed without a handshake.
//
// The heartbeat emitter calls the flight controller every
// HeartbeatInterval, sleeping only for what remains of the interval
// after the call. A failed heartbeat stops the emitter; [Server.Terminate]
// reports the failure.
//
// # Lifecycle
//
// [Server.Initialize] resets all shared state, brings up the flight
// controller, reads the GPS global origin, binds the listening socket,
// and starts the accept loop and heartbeat emitter. Any failure undoes
// the steps already taken.
//
// [Server.Terminate] closes the registry (new connections are refused),
// tears down every session, waits for all of them, closes the
// listening socket and waits for the accept loop, stops the heartbeat,
// and finally terminates the flight controller. Each wait is bounded by
// ShutdownTimeout; a step that overruns is reported in the joined error
// and the remaining steps still run. Terminate on a server that is not
// running returns nil, and a terminated server can be initialized
// again.
//
// # Time
//
// The liveness monitor, the heartbeat emitter, the shutdown waits and
// the GPS ack timestamps all read the [clock.Clock] passed with
// [WithClock]. Socket read deadlines are kernel-enforced and use wall
// time.
package fapserver
