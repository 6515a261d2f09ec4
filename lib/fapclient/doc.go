// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fapclient is the mobile-client side of the FAP management
// protocol.
//
// A [Client] holds one TCP connection. [Client.Associate] joins the
// access point's user set and reports [ErrRejected] when it is full;
// the connection stays open so the caller can retry.
// [Client.SendPosition] reports a GPS fix and returns the server's
// acknowledgement time. [Client.Desassociate] leaves; the server closes
// the connection afterwards.
//
// Every call is bounded by the context and by Options.Timeout,
// whichever ends first.
package fapclient
