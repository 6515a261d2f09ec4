// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/fap/lib/geo"
	"github.com/bureau-foundation/fap/lib/protocol"
)

var (
	// ErrRejected is returned by Associate when the access point has
	// no room for another user.
	ErrRejected = errors.New("fapclient: association rejected")

	// ErrUnexpectedReply is returned when the server answers with a
	// message type the request does not allow.
	ErrUnexpectedReply = errors.New("fapclient: unexpected reply")
)

// DefaultTimeout bounds each request when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Options configures a Client.
type Options struct {
	// UserID identifies this client to the server.
	UserID int

	// Timeout bounds each request-reply exchange.
	Timeout time.Duration

	// Logger receives debug records of each exchange. Nil discards.
	Logger *slog.Logger
}

// Client is one protocol connection. Methods must not be called
// concurrently.
type Client struct {
	conn    net.Conn
	reader  *protocol.Reader
	writer  *protocol.Writer
	userID  int
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	serverID int
}

// Dial connects to the server at address.
func Dial(ctx context.Context, address string, options Options) (*Client, error) {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}

	return &Client{
		conn:    conn,
		reader:  protocol.NewReader(conn),
		writer:  protocol.NewWriter(conn),
		userID:  options.UserID,
		timeout: timeout,
		logger:  logger.With("user_id", options.UserID),
	}, nil
}

// UserID returns the id this client sends.
func (c *Client) UserID() int { return c.userID }

// ServerID returns the id the server put in its last reply, or zero
// before any reply.
func (c *Client) ServerID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverID
}

// Associate asks to join the access point's user set.
func (c *Client) Associate(ctx context.Context) error {
	reply, err := c.exchange(ctx, protocol.NewAssociationRequest(c.userID))
	if err != nil {
		return err
	}
	switch reply.Type {
	case protocol.AssociationAccepted:
		return nil
	case protocol.AssociationRejected:
		return ErrRejected
	default:
		return fmt.Errorf("%w: %s to association request", ErrUnexpectedReply, reply.Type)
	}
}

// SendPosition reports fix and returns the server's acknowledgement
// time. A zero fix.Timestamp is replaced by the current time. The
// server closes the connection instead of acknowledging a fix that is
// too far from the access point, which surfaces here as a read error.
func (c *Client) SendPosition(ctx context.Context, fix geo.RawCoordinates) (time.Time, error) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}
	reply, err := c.exchange(ctx, protocol.NewGpsUpdate(c.userID, fix))
	if err != nil {
		return time.Time{}, err
	}
	if reply.Type != protocol.GpsCoordinatesAck {
		return time.Time{}, fmt.Errorf("%w: %s to GPS update", ErrUnexpectedReply, reply.Type)
	}
	return reply.ServerTime, nil
}

// Desassociate leaves the user set. The server closes the connection
// after acknowledging; call Close afterwards.
func (c *Client) Desassociate(ctx context.Context) error {
	reply, err := c.exchange(ctx, protocol.NewDesassociationRequest(c.userID))
	if err != nil {
		return err
	}
	if reply.Type != protocol.DesassociationAck {
		return fmt.Errorf("%w: %s to desassociation request", ErrUnexpectedReply, reply.Type)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// exchange sends request and reads one reply, skipping replies the
// reader rejects as invalid.
func (c *Client) exchange(ctx context.Context, request protocol.Message) (protocol.Message, error) {
	deadline := time.Now().Add(c.timeout)
	if contextDeadline, ok := ctx.Deadline(); ok && contextDeadline.Before(deadline) {
		deadline = contextDeadline
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return protocol.Message{}, fmt.Errorf("setting deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.writer.Write(request); err != nil {
		return protocol.Message{}, c.contextError(ctx, err)
	}
	c.logger.Debug("request sent", "msg_type", request.Type.String())

	for {
		reply, err := c.reader.Read()
		if err != nil {
			if protocol.IsProtocolError(err) {
				c.logger.Warn("ignoring invalid reply", "error", err)
				continue
			}
			return protocol.Message{}, c.contextError(ctx, fmt.Errorf("reading reply to %s: %w", request.Type, err))
		}

		c.mu.Lock()
		c.serverID = reply.UserID
		c.mu.Unlock()
		c.logger.Debug("reply received", "msg_type", reply.Type.String(), "server_id", reply.UserID)
		return reply, nil
	}
}

// contextError prefers the context's error when it caused err.
func (c *Client) contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}
