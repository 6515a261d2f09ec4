// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control is the operator surface of a running access point:
// a CBOR request-response protocol on a Unix socket.
//
// Each connection carries exactly one request and one response. The
// request is a CBOR map with an "action" field naming the handler and
// any action-specific fields beside it. The response is a [Response]
// envelope:
//
//	{ok: true, data: <cbor>}
//	{ok: false, error: "message"}
//
// [SocketServer] dispatches requests to [ActionFunc] handlers.
// [Register] installs the standard access point actions:
//
//	status    server id, address, user counts, origin, heartbeat state
//	position  current NED position of the vehicle
//	users     last known position of every associated user
//	move      set a NED position target (fields x, y, z)
//
// [Client] is the matching caller, used by fapctl.
package control
