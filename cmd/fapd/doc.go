// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Fapd is the flying access point daemon. It runs the access point
// protocol server on TCP, drives the flight controller (an in-memory
// emulator), and serves the operator control socket used by fapctl.
//
// Configuration is read from --config or $FAP_CONFIG; without either,
// the built-in defaults apply. A few flags override single fields:
//
//	fapd --config /etc/fap/fap.yaml
//	fapd --listen 127.0.0.1:40123 --control-socket /tmp/fap.sock --log-level debug
//
// When a configuration file is in use it is watched. A changed
// logging.level takes effect immediately; other changes are logged and
// apply on the next start.
//
// SIGINT and SIGTERM stop the daemon: the server closes every session,
// stops the heartbeat, and terminates the flight controller.
package main
