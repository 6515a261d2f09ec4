// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/fap/lib/autopilot"
	"github.com/bureau-foundation/fap/lib/clock"
	"github.com/bureau-foundation/fap/lib/geo"
	"github.com/bureau-foundation/fap/lib/netutil"
	"github.com/bureau-foundation/fap/lib/protocol"
)

// SessionState is the protocol state of one connection.
type SessionState int

const (
	AwaitingAssociation SessionState = iota
	Associated
	Terminating
	Closed
)

func (s SessionState) String() string {
	switch s {
	case AwaitingAssociation:
		return "awaiting-association"
	case Associated:
		return "associated"
	case Terminating:
		return "terminating"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// sessionEnvironment is what a session shares with the rest of the
// server instance.
type sessionEnvironment struct {
	config     Config
	registry   *Registry
	controller autopilot.FlightController
	origin     geo.RawCoordinates
	clock      clock.Clock
	logger     *slog.Logger
}

// Session is the protocol state machine for one client connection.
type Session struct {
	slot        int
	connection  string
	conn        net.Conn
	reader      *protocol.Reader
	writer      *protocol.Writer
	environment *sessionEnvironment
	// logger is never reassigned: terminate reads it from any
	// goroutine.
	logger *slog.Logger

	mu    sync.Mutex
	state SessionState
	// userID is the id from the accepted association request;
	// identified is set alongside it.
	userID     int
	identified bool
	// associated is true while the session holds one unit of the
	// registry's associated-user count.
	associated bool
	// lastUpdate is the liveness base: the association time, then the
	// receive time of each accepted GPS update.
	lastUpdate time.Time

	teardown sync.Once
	// stopping is closed when teardown begins.
	stopping chan struct{}
	// exited is closed once the slot has been freed.
	exited  chan struct{}
	monitor sync.WaitGroup
}

func newSession(slot int, conn net.Conn, environment *sessionEnvironment) *Session {
	connection := uuid.NewString()
	return &Session{
		slot:        slot,
		connection:  connection,
		conn:        conn,
		reader:      protocol.NewReader(conn),
		writer:      protocol.NewWriter(conn),
		environment: environment,
		logger: environment.logger.With(
			"session", slot,
			"connection", connection,
			"remote", conn.RemoteAddr().String(),
		),
		stopping: make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Slot returns the registry slot the session occupies.
func (s *Session) Slot() int { return s.slot }

// State returns the current protocol state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Exited is closed once the session has released its slot.
func (s *Session) Exited() <-chan struct{} { return s.exited }

// run is the message loop. It returns after the session's slot has
// been freed.
func (s *Session) run(ctx context.Context) {
	defer s.finish()

	s.logger.Debug("session started")
	receiveTimeout := s.environment.config.EffectiveReceiveTimeout()

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(receiveTimeout)); err != nil {
			s.terminate("setting read deadline failed", "error", err)
			return
		}

		message, err := s.reader.Read()
		if err != nil {
			if protocol.IsProtocolError(err) {
				s.logger.Warn("ignoring invalid message", "error", err)
				continue
			}
			s.terminateOnReadError(err)
			return
		}

		if !s.handle(ctx, message) {
			return
		}
	}
}

func (s *Session) terminateOnReadError(err error) {
	select {
	case <-s.stopping:
		// Teardown already started elsewhere and closed the socket
		// under us; it logged the reason.
		return
	default:
	}

	switch {
	case errors.Is(err, protocol.ErrMessageTooLarge):
		s.terminate("message over size limit", "limit", protocol.MaxMessageSize)
	case netutil.IsTimeout(err):
		s.terminate("receive timeout")
	case netutil.IsExpectedCloseError(err):
		s.terminate("peer closed connection")
	default:
		s.terminate("unreadable input", "error", err)
	}
}

// handle processes one message and reports whether the loop should
// continue.
func (s *Session) handle(ctx context.Context, message protocol.Message) bool {
	switch message.Type {
	case protocol.AssociationRequest:
		return s.handleAssociation(message)
	case protocol.DesassociationRequest:
		return s.handleDesassociation(message)
	case protocol.GpsCoordinatesUpdate:
		return s.handleGpsUpdate(ctx, message)
	default:
		s.logger.Warn("ignoring server-side message type from client", "msg_type", message.Type.String())
		return true
	}
}

func (s *Session) handleAssociation(message protocol.Message) bool {
	s.mu.Lock()
	alreadyAssociated := s.state == Associated
	s.mu.Unlock()

	if alreadyAssociated {
		s.logger.Info("repeated association request", "user_id", message.UserID)
		return s.reply(protocol.AssociationAccepted)
	}

	if !s.environment.registry.TryAssociate() {
		s.logger.Info("association rejected, user limit reached",
			"user_id", message.UserID,
			"max_associated", s.environment.config.MaxAssociatedUsers,
		)
		return s.reply(protocol.AssociationRejected)
	}

	s.mu.Lock()
	if s.state != AwaitingAssociation {
		// Torn down while the count was being taken.
		s.mu.Unlock()
		s.environment.registry.Release(true)
		return false
	}
	s.state = Associated
	s.userID = message.UserID
	s.identified = true
	s.associated = true
	s.lastUpdate = s.environment.clock.Now()
	s.mu.Unlock()

	s.logger.Info("user associated",
		"user_id", message.UserID,
		"active_users", s.environment.registry.ActiveUsers(),
	)

	s.monitor.Add(1)
	go s.monitorLiveness()

	return s.reply(protocol.AssociationAccepted)
}

// handleDesassociation releases the association before acknowledging,
// so a peer that has read the ack observes the decremented count.
func (s *Session) handleDesassociation(message protocol.Message) bool {
	s.mu.Lock()
	wasAssociated := s.associated
	s.associated = false
	s.mu.Unlock()
	s.environment.registry.Release(wasAssociated)

	if wasAssociated {
		s.logger.Info("user desassociated",
			"user_id", message.UserID,
			"active_users", s.environment.registry.ActiveUsers(),
		)
	}
	s.reply(protocol.DesassociationAck)
	s.terminate("desassociation requested")
	return false
}

func (s *Session) handleGpsUpdate(ctx context.Context, message protocol.Message) bool {
	if s.State() != Associated {
		s.logger.Warn("ignoring GPS update from unassociated client", "user_id", message.UserID)
		return true
	}

	fix := message.Position
	if !fix.IsValid() {
		s.logger.Warn("ignoring GPS update with out-of-range coordinates", "fix", fix.String())
		return true
	}

	userPosition := geo.ToNed(fix, s.environment.origin)
	fapPosition, err := s.environment.controller.LocalPositionNED(ctx)
	if err != nil {
		s.terminate("reading access point position failed", "error", err)
		return false
	}

	distance := geo.Distance(fapPosition, userPosition)
	if distance > s.environment.config.MaxDistance {
		s.terminate("user out of range",
			"distance_m", distance,
			"max_distance_m", s.environment.config.MaxDistance,
			"user_position", userPosition.String(),
			"fap_position", fapPosition.String(),
		)
		return false
	}

	now := s.environment.clock.Now()
	s.mu.Lock()
	s.lastUpdate = now
	userID := s.userID
	s.mu.Unlock()

	s.environment.registry.StorePosition(s.slot, PositionRecord{
		UserID:     userID,
		Position:   userPosition,
		LastUpdate: now,
	})
	s.logger.Debug("GPS update accepted", "position", userPosition.String(), "distance_m", distance)

	return s.send(protocol.NewGpsAck(s.environment.config.ServerID, now))
}

// monitorLiveness ends the session when UpdateTimeout passes without
// an accepted GPS update.
func (s *Session) monitorLiveness() {
	defer s.monitor.Done()
	timeout := s.environment.config.EffectiveUpdateTimeout()

	for {
		s.mu.Lock()
		deadline := s.lastUpdate.Add(timeout)
		s.mu.Unlock()

		wait := deadline.Sub(s.environment.clock.Now())
		if wait <= 0 {
			s.terminate("no GPS update within timeout", "timeout", timeout)
			return
		}

		timer := s.environment.clock.NewTimer(wait)
		select {
		case <-s.stopping:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Session) reply(msgType protocol.MsgType) bool {
	return s.send(protocol.NewReply(s.environment.config.ServerID, msgType))
}

// send writes message and tears the session down if the write fails.
func (s *Session) send(message protocol.Message) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.environment.config.EffectiveReceiveTimeout())); err != nil {
		s.terminate("setting write deadline failed", "error", err)
		return false
	}
	if err := s.writer.Write(message); err != nil {
		s.terminate("sending reply failed", "msg_type", message.Type.String(), "error", err)
		return false
	}
	return true
}

// terminate moves the session to Terminating and shuts the socket down,
// which unblocks the message loop. Only the first call has any effect.
// It is safe to call from any goroutine.
func (s *Session) terminate(reason string, attributes ...any) {
	s.teardown.Do(func() {
		s.mu.Lock()
		if s.state < Terminating {
			s.state = Terminating
		}
		if s.identified {
			attributes = append(attributes, "user_id", s.userID)
		}
		s.mu.Unlock()

		s.logger.Info("session terminating", append([]any{"reason", reason}, attributes...)...)
		close(s.stopping)
		if err := netutil.Shutdown(s.conn); err != nil && !netutil.IsExpectedCloseError(err) {
			s.logger.Debug("closing connection", "error", err)
		}
	})
}

// finish runs on the message loop goroutine after the loop has exited.
// It waits for the monitor, then clears the session's traces from the
// registry and frees the slot.
func (s *Session) finish() {
	s.terminate("session ended")
	s.monitor.Wait()

	registry := s.environment.registry
	registry.ClearPosition(s.slot)

	s.mu.Lock()
	wasAssociated := s.associated
	userID := s.userID
	s.associated = false
	s.userID = 0
	s.identified = false
	s.state = Closed
	s.mu.Unlock()

	registry.Release(wasAssociated)
	if wasAssociated {
		s.logger.Info("associated user dropped", "user_id", userID, "active_users", registry.ActiveUsers())
	}
	registry.Free(s.slot)
	s.logger.Debug("session closed")
	close(s.exited)
}
