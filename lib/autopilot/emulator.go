// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package autopilot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/fap/lib/clock"
	"github.com/bureau-foundation/fap/lib/geo"
)

// DefaultOrigin is the global origin used when EmulatorConfig leaves it
// unset.
var DefaultOrigin = geo.RawCoordinates{Latitude: 41.1779656, Longitude: -8.5971899, Altitude: 0}

// EmulatorConfig configures an Emulator.
type EmulatorConfig struct {
	// Origin anchors the NED frame. Zero means DefaultOrigin.
	Origin geo.RawCoordinates

	// Clock stamps positions and heartbeats. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives lifecycle and heartbeat records. Nil discards.
	Logger *slog.Logger
}

// Emulator is an in-memory FlightController. Position targets take
// effect immediately.
type Emulator struct {
	origin geo.RawCoordinates
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	position    geo.NedCoordinates
	heartbeats  uint64
}

var _ FlightController = (*Emulator)(nil)

// NewEmulator returns an uninitialized Emulator.
func NewEmulator(config EmulatorConfig) *Emulator {
	origin := config.Origin
	if origin == (geo.RawCoordinates{}) {
		origin = DefaultOrigin
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Emulator{origin: origin, clock: clk, logger: logger}
}

// Initialize places the vehicle at the origin.
func (e *Emulator) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}
	now := e.clock.Now()
	e.origin.Timestamp = now
	e.position = geo.NedCoordinates{Timestamp: now}
	e.heartbeats = 0
	e.initialized = true

	e.logger.Info("flight controller emulator initialized", "origin", e.origin.String())
	return nil
}

// Terminate resets the vehicle to the origin and marks the emulator
// uninitialized.
func (e *Emulator) Terminate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	e.position = geo.NedCoordinates{}
	e.initialized = false

	e.logger.Info("flight controller emulator terminated", "heartbeats", e.heartbeats)
	return nil
}

func (e *Emulator) Heartbeat(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	e.heartbeats++
	e.logger.Debug("heartbeat received", "at", geo.FormatTimestamp(e.clock.Now()))
	return nil
}

func (e *Emulator) LocalPositionNED(ctx context.Context) (geo.NedCoordinates, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return geo.NedCoordinates{}, ErrNotInitialized
	}
	return e.position, nil
}

func (e *Emulator) SetPositionTargetNED(ctx context.Context, target geo.NedCoordinates) error {
	if !target.IsFinite() {
		return fmt.Errorf("autopilot: position target %s is not finite", target)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	e.position = geo.NedCoordinates{X: target.X, Y: target.Y, Z: target.Z, Timestamp: e.clock.Now()}
	e.logger.Info("position target set", "target", e.position.String())
	return nil
}

func (e *Emulator) GPSGlobalOrigin(ctx context.Context) (geo.RawCoordinates, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return geo.RawCoordinates{}, ErrNotInitialized
	}
	return e.origin, nil
}

// Heartbeats returns how many heartbeats the emulator has received
// since Initialize.
func (e *Emulator) Heartbeats() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heartbeats
}
