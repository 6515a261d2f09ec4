// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/fap/lib/codec"
	"github.com/bureau-foundation/fap/lib/fapserver"
	"github.com/bureau-foundation/fap/lib/geo"
)

// Action names.
const (
	ActionStatus   = "status"
	ActionPosition = "position"
	ActionUsers    = "users"
	ActionMove     = "move"
)

// AccessPoint is the part of *fapserver.Server the control actions
// use.
type AccessPoint interface {
	Status() (fapserver.Status, error)
	Users() ([]fapserver.PositionRecord, error)
	Position(ctx context.Context) (geo.NedCoordinates, error)
	MoveTo(ctx context.Context, target geo.NedCoordinates) error
}

var _ AccessPoint = (*fapserver.Server)(nil)

// StatusResponse is the data of the status action.
type StatusResponse struct {
	ServerID       int                `json:"server_id"`
	Address        string             `json:"address"`
	ActiveUsers    int                `json:"active_users"`
	Sessions       int                `json:"sessions"`
	Capacity       int                `json:"capacity"`
	Origin         geo.RawCoordinates `json:"origin"`
	StartedAt      time.Time          `json:"started_at"`
	HeartbeatAlive bool               `json:"heartbeat_alive"`
}

// User is one entry of the users action.
type User struct {
	Slot       int                `json:"slot"`
	UserID     int                `json:"user_id"`
	Position   geo.NedCoordinates `json:"position"`
	LastUpdate time.Time          `json:"last_update"`
}

// UsersResponse is the data of the users action.
type UsersResponse struct {
	Users []User `json:"users"`
}

// MoveRequest carries the fields of the move action.
type MoveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Register installs the access point actions on server.
func Register(server *SocketServer, accessPoint AccessPoint) {
	server.Handle(ActionStatus, func(ctx context.Context, raw []byte) (any, error) {
		status, err := accessPoint.Status()
		if err != nil {
			return nil, err
		}
		return StatusResponse{
			ServerID:       status.ServerID,
			Address:        status.Address,
			ActiveUsers:    status.ActiveUsers,
			Sessions:       status.Sessions,
			Capacity:       status.Capacity,
			Origin:         status.Origin,
			StartedAt:      status.StartedAt,
			HeartbeatAlive: status.HeartbeatAlive,
		}, nil
	})

	server.Handle(ActionPosition, func(ctx context.Context, raw []byte) (any, error) {
		return accessPoint.Position(ctx)
	})

	server.Handle(ActionUsers, func(ctx context.Context, raw []byte) (any, error) {
		records, err := accessPoint.Users()
		if err != nil {
			return nil, err
		}
		response := UsersResponse{Users: make([]User, 0, len(records))}
		for _, record := range records {
			response.Users = append(response.Users, User{
				Slot:       record.Slot,
				UserID:     record.UserID,
				Position:   record.Position,
				LastUpdate: record.LastUpdate,
			})
		}
		return response, nil
	})

	server.Handle(ActionMove, func(ctx context.Context, raw []byte) (any, error) {
		var request MoveRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid move request: %w", err)
		}
		target := geo.NedCoordinates{X: request.X, Y: request.Y, Z: request.Z}
		if err := accessPoint.MoveTo(ctx, target); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Status calls the status action.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var response StatusResponse
	err := c.Call(ctx, ActionStatus, nil, &response)
	return response, err
}

// Position calls the position action.
func (c *Client) Position(ctx context.Context) (geo.NedCoordinates, error) {
	var position geo.NedCoordinates
	err := c.Call(ctx, ActionPosition, nil, &position)
	return position, err
}

// Users calls the users action.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var response UsersResponse
	err := c.Call(ctx, ActionUsers, nil, &response)
	return response.Users, err
}

// Move calls the move action.
func (c *Client) Move(ctx context.Context, target geo.NedCoordinates) error {
	return c.Call(ctx, ActionMove, map[string]any{"x": target.X, "y": target.Y, "z": target.Z}, nil)
}
