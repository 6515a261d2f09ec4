// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/fap/lib/geo"
)

// MsgType discriminates protocol messages.
type MsgType int

const (
	AssociationRequest    MsgType = 1
	AssociationAccepted   MsgType = 2
	AssociationRejected   MsgType = 3
	DesassociationRequest MsgType = 4
	DesassociationAck     MsgType = 5
	GpsCoordinatesUpdate  MsgType = 6
	GpsCoordinatesAck     MsgType = 7
)

func (t MsgType) String() string {
	switch t {
	case AssociationRequest:
		return "association-request"
	case AssociationAccepted:
		return "association-accepted"
	case AssociationRejected:
		return "association-rejected"
	case DesassociationRequest:
		return "desassociation-request"
	case DesassociationAck:
		return "desassociation-ack"
	case GpsCoordinatesUpdate:
		return "gps-coordinates-update"
	case GpsCoordinatesAck:
		return "gps-coordinates-ack"
	default:
		return fmt.Sprintf("msgtype(%d)", int(t))
	}
}

// IsKnown reports whether t is one of the seven defined types.
func (t MsgType) IsKnown() bool {
	return t >= AssociationRequest && t <= GpsCoordinatesAck
}

// Message is one decoded protocol message.
type Message struct {
	// UserID is the client's id on client messages and the server's
	// id on server replies.
	UserID int

	Type MsgType

	// Position is the client fix. Set only on GpsCoordinatesUpdate.
	Position geo.RawCoordinates

	// ServerTime is set only on GpsCoordinatesAck.
	ServerTime time.Time
}

// NewAssociationRequest asks to join the FAP's active user set.
func NewAssociationRequest(userID int) Message {
	return Message{UserID: userID, Type: AssociationRequest}
}

// NewDesassociationRequest asks to leave the active user set.
func NewDesassociationRequest(userID int) Message {
	return Message{UserID: userID, Type: DesassociationRequest}
}

// NewGpsUpdate reports the client's position. fix.Timestamp is sent
// with second precision.
func NewGpsUpdate(userID int, fix geo.RawCoordinates) Message {
	return Message{UserID: userID, Type: GpsCoordinatesUpdate, Position: fix}
}

// NewReply builds a server reply that carries nothing but the server
// id and the type.
func NewReply(serverID int, msgType MsgType) Message {
	return Message{UserID: serverID, Type: msgType}
}

// NewGpsAck acknowledges a GPS update with the server's current time.
func NewGpsAck(serverID int, now time.Time) Message {
	return Message{UserID: serverID, Type: GpsCoordinatesAck, ServerTime: now}
}
