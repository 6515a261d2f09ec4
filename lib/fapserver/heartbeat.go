// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/fap/lib/autopilot"
	"github.com/bureau-foundation/fap/lib/clock"
)

// heartbeatEmitter calls the flight controller's Heartbeat once per
// interval while alive.
type heartbeatEmitter struct {
	controller autopilot.FlightController
	interval   time.Duration
	clock      clock.Clock
	logger     *slog.Logger

	alive    atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// err is written before done is closed.
	err error
}

func startHeartbeat(ctx context.Context, controller autopilot.FlightController, interval time.Duration, clk clock.Clock, logger *slog.Logger) *heartbeatEmitter {
	emitter := &heartbeatEmitter{
		controller: controller,
		interval:   interval,
		clock:      clk,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	emitter.alive.Store(true)
	go emitter.run(ctx)
	return emitter
}

func (h *heartbeatEmitter) run(ctx context.Context) {
	defer close(h.done)

	for h.alive.Load() {
		start := h.clock.Now()
		if err := h.controller.Heartbeat(ctx); err != nil {
			h.alive.Store(false)
			if ctx.Err() != nil {
				return
			}
			h.err = fmt.Errorf("heartbeat failed: %w", err)
			h.logger.Error("heartbeat failed, emitter stopped", "error", err)
			return
		}

		remaining := h.interval - h.clock.Now().Sub(start)
		if remaining <= 0 {
			select {
			case <-h.stop:
				return
			default:
				continue
			}
		}

		timer := h.clock.NewTimer(remaining)
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Alive reports whether the emitter is still running.
func (h *heartbeatEmitter) Alive() bool {
	return h.alive.Load()
}

// signalStop clears alive and wakes the emitter. It does not wait.
func (h *heartbeatEmitter) signalStop() {
	h.alive.Store(false)
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed when the emitter goroutine has exited.
func (h *heartbeatEmitter) Done() <-chan struct{} {
	return h.done
}

// Err waits for the emitter to exit and returns the failure that
// stopped it, if any.
func (h *heartbeatEmitter) Err() error {
	<-h.done
	return h.err
}
