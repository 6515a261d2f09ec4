// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"net"
)

// halfCloser is implemented by *net.TCPConn and *net.UnixConn.
type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// Shutdown shuts conn down in both directions and closes it. Shutting
// down first wakes any goroutine blocked in Read on the same socket even
// on platforms where Close alone would not. Errors from the shutdown
// step are ignored; the returned error is from Close.
func Shutdown(conn net.Conn) error {
	if sockets, ok := conn.(halfCloser); ok {
		_ = sockets.CloseRead()
		_ = sockets.CloseWrite()
	}
	return conn.Close()
}
