// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"github.com/bureau-foundation/fap/lib/geo"
)

// wireMessage is the JSON form of Message. Pointer fields distinguish
// absent from zero on decode.
type wireMessage struct {
	UserID         *int             `json:"userId"`
	MsgType        *int             `json:"msgType"`
	GpsCoordinates *wireCoordinates `json:"gpsCoordinates,omitempty"`
	GpsTimestamp   *string          `json:"gpsTimestamp,omitempty"`
}

type wireCoordinates struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
	Altitude  *float64 `json:"alt"`
	Timestamp *string  `json:"timestamp"`
}

func toWire(message Message) wireMessage {
	userID := message.UserID
	msgType := int(message.Type)
	wire := wireMessage{UserID: &userID, MsgType: &msgType}

	switch message.Type {
	case GpsCoordinatesUpdate:
		fix := message.Position
		timestamp := geo.FormatTimestamp(fix.Timestamp)
		wire.GpsCoordinates = &wireCoordinates{
			Latitude:  &fix.Latitude,
			Longitude: &fix.Longitude,
			Altitude:  &fix.Altitude,
			Timestamp: &timestamp,
		}
	case GpsCoordinatesAck:
		timestamp := geo.FormatTimestamp(message.ServerTime)
		wire.GpsTimestamp = &timestamp
	}
	return wire
}

func fromWire(wire wireMessage) (Message, error) {
	if wire.MsgType == nil {
		return Message{}, &ProtocolError{Err: ErrMissingField, Field: "msgType"}
	}
	msgType := MsgType(*wire.MsgType)
	if !msgType.IsKnown() {
		return Message{}, &ProtocolError{Type: msgType, Err: ErrUnknownMsgType}
	}
	if wire.UserID == nil {
		return Message{}, &ProtocolError{Type: msgType, Err: ErrMissingField, Field: "userId"}
	}

	message := Message{UserID: *wire.UserID, Type: msgType}

	switch msgType {
	case GpsCoordinatesUpdate:
		position, err := fromWireCoordinates(msgType, wire.GpsCoordinates)
		if err != nil {
			return Message{}, err
		}
		message.Position = position

	case GpsCoordinatesAck:
		if wire.GpsTimestamp == nil {
			return Message{}, &ProtocolError{Type: msgType, Err: ErrMissingField, Field: "gpsTimestamp"}
		}
		serverTime, err := geo.ParseTimestamp(*wire.GpsTimestamp)
		if err != nil {
			return Message{}, &ProtocolError{Type: msgType, Err: ErrInvalidField, Field: "gpsTimestamp", cause: err}
		}
		message.ServerTime = serverTime
	}

	return message, nil
}

func fromWireCoordinates(msgType MsgType, coordinates *wireCoordinates) (geo.RawCoordinates, error) {
	if coordinates == nil {
		return geo.RawCoordinates{}, &ProtocolError{Type: msgType, Err: ErrMissingField, Field: "gpsCoordinates"}
	}

	required := []struct {
		name  string
		value *float64
	}{
		{"gpsCoordinates.lat", coordinates.Latitude},
		{"gpsCoordinates.lon", coordinates.Longitude},
		{"gpsCoordinates.alt", coordinates.Altitude},
	}
	for _, field := range required {
		if field.value == nil {
			return geo.RawCoordinates{}, &ProtocolError{Type: msgType, Err: ErrMissingField, Field: field.name}
		}
	}
	if coordinates.Timestamp == nil {
		return geo.RawCoordinates{}, &ProtocolError{Type: msgType, Err: ErrMissingField, Field: "gpsCoordinates.timestamp"}
	}

	timestamp, err := geo.ParseTimestamp(*coordinates.Timestamp)
	if err != nil {
		return geo.RawCoordinates{}, &ProtocolError{Type: msgType, Err: ErrInvalidField, Field: "gpsCoordinates.timestamp", cause: err}
	}

	return geo.RawCoordinates{
		Latitude:  *coordinates.Latitude,
		Longitude: *coordinates.Longitude,
		Altitude:  *coordinates.Altitude,
		Timestamp: timestamp,
	}, nil
}
