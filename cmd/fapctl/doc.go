// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Fapctl is the operator CLI of a running fapd. It talks to the
// daemon's control socket.
//
//	fapctl status
//	fapctl position
//	fapctl users
//	fapctl move <x> <y> <z>
//	fapctl version
//
// The socket is --socket, else control.socket_path from the file named
// by $FAP_CONFIG, else /run/fap/control.sock. --json prints the
// response data as JSON; --raw prints it in CBOR diagnostic notation.
package main
