// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/fap/lib/autopilot"
	"github.com/bureau-foundation/fap/lib/clock"
	"github.com/bureau-foundation/fap/lib/geo"
	"github.com/bureau-foundation/fap/lib/netutil"
)

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock for liveness, heartbeat pacing, shutdown
// waits and ack timestamps. The default is clock.Real().
func WithClock(clk clock.Clock) Option {
	return func(s *Server) { s.clock = clk }
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// Server is the management-plane facade: the only surface an operator
// or control loop uses.
type Server struct {
	config     Config
	controller autopilot.FlightController
	clock      clock.Clock
	logger     *slog.Logger

	// lifecycle serializes Initialize and Terminate.
	lifecycle sync.Mutex

	mu      sync.Mutex
	running *instance
}

// instance is the state of one Initialize..Terminate cycle.
type instance struct {
	cancel       context.CancelFunc
	registry     *Registry
	listener     net.Listener
	accept       *acceptLoop
	sessions     sync.WaitGroup
	heartbeat    *heartbeatEmitter
	shuttingDown atomic.Bool
	origin       geo.RawCoordinates
	startedAt    time.Time
}

// New returns a server that is not yet running.
func New(config Config, controller autopilot.FlightController, options ...Option) *Server {
	server := &Server{
		config:     config,
		controller: controller,
		clock:      clock.Real(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(server)
	}
	return server
}

// Initialize starts the server. On error nothing is left running.
func (s *Server) Initialize(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.current() != nil {
		return ErrAlreadyRunning
	}
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	if err := s.controller.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing flight controller: %w", err)
	}

	origin, err := s.controller.GPSGlobalOrigin(ctx)
	if err != nil {
		return errors.Join(fmt.Errorf("reading GPS global origin: %w", err), s.terminateController())
	}

	listener, err := netutil.ListenTCP(ctx, s.config.Address)
	if err != nil {
		return errors.Join(err, s.terminateController())
	}

	runContext, cancel := context.WithCancel(context.Background())
	running := &instance{
		cancel:    cancel,
		registry:  NewRegistry(s.config.MaxAssociatedUsers, s.config.MaxRejectedUsers),
		listener:  listener,
		origin:    origin,
		startedAt: s.clock.Now(),
	}
	running.accept = &acceptLoop{
		listener: listener,
		registry: running.registry,
		environment: &sessionEnvironment{
			config:     s.config,
			registry:   running.registry,
			controller: s.controller,
			origin:     origin,
			clock:      s.clock,
			logger:     s.logger,
		},
		logger:       s.logger,
		shuttingDown: &running.shuttingDown,
		sessions:     &running.sessions,
		done:         make(chan struct{}),
	}

	go running.accept.serve(runContext)
	running.heartbeat = startHeartbeat(runContext, s.controller, s.config.HeartbeatInterval, s.clock, s.logger)

	s.mu.Lock()
	s.running = running
	s.mu.Unlock()

	s.logger.Info("FAP management server initialized",
		"server_id", s.config.ServerID,
		"address", listener.Addr().String(),
		"origin", origin.String(),
		"max_associated", s.config.MaxAssociatedUsers,
	)
	return nil
}

// Terminate stops the server and waits for every goroutine it started.
// It returns nil if the server was not running.
func (s *Server) Terminate() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	running := s.current()
	if running == nil {
		return nil
	}

	var errs []error
	running.shuttingDown.Store(true)
	running.cancel()

	sessions := running.registry.Close()
	for _, session := range sessions {
		session.terminate("server shutting down")
	}
	if !s.await(running.sessions.Wait) {
		errs = append(errs, fmt.Errorf("%w: waiting for %d sessions", ErrShutdownTimeout, running.registry.Sessions()))
	}

	if err := running.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("closing listener: %w", err))
	}
	if !s.awaitChannel(running.accept.done) {
		errs = append(errs, fmt.Errorf("%w: waiting for accept loop", ErrShutdownTimeout))
	}

	running.heartbeat.signalStop()
	if !s.awaitChannel(running.heartbeat.Done()) {
		errs = append(errs, fmt.Errorf("%w: waiting for heartbeat emitter", ErrShutdownTimeout))
	} else if err := running.heartbeat.Err(); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	s.running = nil
	s.mu.Unlock()

	if err := s.terminateController(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("FAP management server terminated", "sessions_closed", len(sessions))
	return errors.Join(errs...)
}

func (s *Server) terminateController() error {
	if err := s.controller.Terminate(); err != nil {
		return fmt.Errorf("terminating flight controller: %w", err)
	}
	return nil
}

// await runs wait and reports whether it returned within
// ShutdownTimeout.
func (s *Server) await(wait func()) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	return s.awaitChannel(done)
}

func (s *Server) awaitChannel(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
	}

	timer := s.clock.NewTimer(s.config.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Server) current() *instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// MoveTo commands the access point to a new NED position.
func (s *Server) MoveTo(ctx context.Context, target geo.NedCoordinates) error {
	if !target.IsFinite() {
		return ErrInvalidCoordinates
	}
	if s.current() == nil {
		return ErrNotRunning
	}
	if err := s.controller.SetPositionTargetNED(ctx, target); err != nil {
		return fmt.Errorf("moving to %s: %w", target, err)
	}
	s.logger.Info("moving access point", "target", target.String())
	return nil
}

// Position returns the access point's NED position.
func (s *Server) Position(ctx context.Context) (geo.NedCoordinates, error) {
	if s.current() == nil {
		return geo.NedCoordinates{}, ErrNotRunning
	}
	position, err := s.controller.LocalPositionNED(ctx)
	if err != nil {
		return geo.NedCoordinates{}, fmt.Errorf("reading access point position: %w", err)
	}
	return position, nil
}

// UserPositions returns the NED position of every associated client
// that has sent at least one accepted GPS update, in slot order.
func (s *Server) UserPositions() ([]geo.NedCoordinates, error) {
	records, err := s.Users()
	if err != nil {
		return nil, err
	}
	positions := make([]geo.NedCoordinates, len(records))
	for index, record := range records {
		positions[index] = record.Position
	}
	return positions, nil
}

// Users returns the full position records behind UserPositions.
func (s *Server) Users() ([]PositionRecord, error) {
	running := s.current()
	if running == nil {
		return nil, ErrNotRunning
	}
	return running.registry.Positions(), nil
}

// Status is a point-in-time summary of a running server.
type Status struct {
	ServerID       int
	Address        string
	ActiveUsers    int
	Sessions       int
	Capacity       int
	Origin         geo.RawCoordinates
	StartedAt      time.Time
	HeartbeatAlive bool
}

// Status returns a summary of the running server.
func (s *Server) Status() (Status, error) {
	running := s.current()
	if running == nil {
		return Status{}, ErrNotRunning
	}
	return Status{
		ServerID:       s.config.ServerID,
		Address:        running.listener.Addr().String(),
		ActiveUsers:    running.registry.ActiveUsers(),
		Sessions:       running.registry.Sessions(),
		Capacity:       running.registry.Capacity(),
		Origin:         running.origin,
		StartedAt:      running.startedAt,
		HeartbeatAlive: running.heartbeat.Alive(),
	}, nil
}

// Addr returns the listening address, or nil if the server is not
// running.
func (s *Server) Addr() net.Addr {
	running := s.current()
	if running == nil {
		return nil
	}
	return running.listener.Addr()
}

// ActiveUsers returns the associated-user count, or zero if the server
// is not running.
func (s *Server) ActiveUsers() int {
	running := s.current()
	if running == nil {
		return 0
	}
	return running.registry.ActiveUsers()
}
