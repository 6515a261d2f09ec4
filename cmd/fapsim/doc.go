// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Fapsim simulates mobile users of an access point. Each simulated
// user connects, associates, and reports a random GPS fix inside the
// test area every update period. A rejected user retries on the next
// period.
//
//	fapsim --address 127.0.0.1:40123 --clients 12 --period 10s
//	fapsim --clients 3 --updates 5
//
// With --updates, each user desassociates after that many accepted
// updates and the simulator exits once all users are done. Otherwise
// it runs until interrupted.
package main
