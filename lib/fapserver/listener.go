// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// acceptLoop hands each inbound connection to a new session.
type acceptLoop struct {
	listener    net.Listener
	registry    *Registry
	environment *sessionEnvironment
	logger      *slog.Logger

	// shuttingDown is set by Terminate before anything is closed.
	shuttingDown *atomic.Bool
	// sessions counts running session goroutines.
	sessions *sync.WaitGroup

	done chan struct{}
}

// serve accepts until the listener is closed.
func (a *acceptLoop) serve(ctx context.Context) {
	defer close(a.done)
	a.logger.Info("accepting connections", "address", a.listener.Addr().String())

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if a.shuttingDown.Load() || errors.Is(err, net.ErrClosed) {
				a.logger.Debug("accept loop stopped")
				return
			}
			a.logger.Error("accept failed", "error", err)
			continue
		}

		if a.shuttingDown.Load() {
			conn.Close()
			continue
		}

		session, err := a.registry.Admit(func(slot int) *Session {
			a.sessions.Add(1)
			return newSession(slot, conn, a.environment)
		})
		if err != nil {
			a.logger.Info("refusing connection",
				"remote", conn.RemoteAddr().String(),
				"reason", err.Error(),
				"capacity", a.registry.Capacity(),
			)
			conn.Close()
			continue
		}

		go func() {
			defer a.sessions.Done()
			session.run(ctx)
		}()
	}
}
