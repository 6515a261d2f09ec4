// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package autopilot

import (
	"context"
	"errors"

	"github.com/bureau-foundation/fap/lib/geo"
)

var (
	// ErrNotInitialized is returned by every call made before
	// Initialize or after Terminate.
	ErrNotInitialized = errors.New("autopilot: flight controller not initialized")

	// ErrAlreadyInitialized is returned by Initialize on a controller
	// that is already running.
	ErrAlreadyInitialized = errors.New("autopilot: flight controller already initialized")
)

// FlightController is the narrow interface the server drives. All
// methods are safe for concurrent use.
type FlightController interface {
	// Initialize brings the controller up. Calling it twice without
	// Terminate returns ErrAlreadyInitialized.
	Initialize(ctx context.Context) error

	// Terminate shuts the controller down and resets its state.
	Terminate() error

	// Heartbeat signals that the ground side is alive.
	Heartbeat(ctx context.Context) error

	// LocalPositionNED returns the vehicle position relative to the
	// global origin.
	LocalPositionNED(ctx context.Context) (geo.NedCoordinates, error)

	// SetPositionTargetNED commands the vehicle towards target.
	SetPositionTargetNED(ctx context.Context, target geo.NedCoordinates) error

	// GPSGlobalOrigin returns the RAW coordinates of the NED origin.
	GPSGlobalOrigin(ctx context.Context) (geo.RawCoordinates, error)
}
