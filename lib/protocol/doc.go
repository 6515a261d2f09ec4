// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the FAP management protocol wire format.
//
// Every message is a single JSON object. Objects are not length
// prefixed and need not be newline terminated: a [Reader] decodes them
// back to back from the stream, so a peer that pretty-prints across
// several lines and a peer that sends compact objects with no separator
// are both understood. A [Writer] emits compact objects followed by a
// newline.
//
// The schema:
//
//	{
//	  "userId": 7,
//	  "msgType": 6,
//	  "gpsCoordinates": {"lat": 41.178, "lon": -8.597, "alt": 10, "timestamp": "2026-10-14T08:00:00Z"},
//	  "gpsTimestamp": "2026-10-14T08:00:01Z"
//	}
//
// userId and msgType are always present. gpsCoordinates appears only in
// [GpsCoordinatesUpdate] and gpsTimestamp only in [GpsCoordinatesAck].
// Timestamps use [geo.TimestampLayout].
//
// # Errors
//
// Read distinguishes two failure classes. Input that is not JSON, and
// every transport error, leaves the stream unusable; Read returns those
// unchanged and the caller should drop the connection. Well-formed JSON
// that does not describe a valid message (unknown msgType, missing
// field, bad timestamp) is returned as a [*ProtocolError]: the object
// has been consumed and the next Read continues with the following
// one. Use [IsProtocolError] to tell them apart.
package protocol
