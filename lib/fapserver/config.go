// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import (
	"errors"
	"fmt"
	"math"
	"net"
	"time"
)

// Config holds the server's operating limits.
type Config struct {
	// ServerID is sent as userId in every reply.
	ServerID int

	// Address is the TCP listen address, host:port. Port 0 picks a
	// free port; see Server.Addr.
	Address string

	// MaxAssociatedUsers caps the number of associated clients.
	MaxAssociatedUsers int

	// MaxRejectedUsers is the number of extra slots for connections
	// that have not associated, so a client can be told it was
	// rejected while the association set is full.
	MaxRejectedUsers int

	// UpdatePeriod is how often clients are expected to send a GPS
	// update.
	UpdatePeriod time.Duration

	// UpdateTimeout ends an associated session that has gone this
	// long without an accepted GPS update. Zero means twice
	// UpdatePeriod.
	UpdateTimeout time.Duration

	// ReceiveTimeout bounds each socket receive. Zero means one and a
	// half times UpdateTimeout.
	ReceiveTimeout time.Duration

	// MaxDistance is the furthest, in metres, a client may be from the
	// access point.
	MaxDistance float64

	// HeartbeatInterval paces flight controller heartbeats.
	HeartbeatInterval time.Duration

	// ShutdownTimeout bounds each wait in Terminate.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the standard operating limits.
func DefaultConfig() Config {
	return Config{
		ServerID:           254,
		Address:            "0.0.0.0:40123",
		MaxAssociatedUsers: 10,
		MaxRejectedUsers:   1,
		UpdatePeriod:       10 * time.Second,
		MaxDistance:        300,
		HeartbeatInterval:  500 * time.Millisecond,
		ShutdownTimeout:    5 * time.Second,
	}
}

// EffectiveUpdateTimeout returns UpdateTimeout, or its derived default.
func (c Config) EffectiveUpdateTimeout() time.Duration {
	if c.UpdateTimeout > 0 {
		return c.UpdateTimeout
	}
	return 2 * c.UpdatePeriod
}

// EffectiveReceiveTimeout returns ReceiveTimeout, or its derived
// default.
func (c Config) EffectiveReceiveTimeout() time.Duration {
	if c.ReceiveTimeout > 0 {
		return c.ReceiveTimeout
	}
	return c.EffectiveUpdateTimeout() * 3 / 2
}

// Validate reports every problem with c.
func (c Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		errs = append(errs, fmt.Errorf("address %q: %w", c.Address, err))
	}
	if c.MaxAssociatedUsers < 1 {
		errs = append(errs, fmt.Errorf("max associated users must be at least 1, got %d", c.MaxAssociatedUsers))
	}
	if c.MaxRejectedUsers < 0 {
		errs = append(errs, fmt.Errorf("max rejected users must not be negative, got %d", c.MaxRejectedUsers))
	}
	if c.UpdatePeriod <= 0 && c.UpdateTimeout <= 0 {
		errs = append(errs, errors.New("update period or update timeout must be positive"))
	}
	if c.UpdateTimeout < 0 || c.ReceiveTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if !(c.MaxDistance > 0) || math.IsInf(c.MaxDistance, 0) {
		errs = append(errs, fmt.Errorf("max distance must be a positive number of metres, got %v", c.MaxDistance))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat interval must be positive, got %v", c.HeartbeatInterval))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %v", c.ShutdownTimeout))
	}

	return errors.Join(errs...)
}
