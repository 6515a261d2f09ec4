// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP opens a TCP listener on address. On Unix the net package
// already sets SO_REUSEADDR, so a restarted server rebinds while
// connections from the previous instance sit in TIME_WAIT. SO_REUSEPORT
// is not set, so a second live listener on the same port fails.
func ListenTCP(ctx context.Context, address string) (net.Listener, error) {
	var config net.ListenConfig
	listener, err := config.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return listener, nil
}
