// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package geo holds the two coordinate representations the FAP
// management plane works with and the conversions between them.
//
// [RawCoordinates] are geodetic GPS fixes (latitude and longitude in
// degrees, altitude in metres) as reported by mobile clients and by
// the flight controller's global origin. [NedCoordinates] are local
// tangent-plane positions in metres relative to that origin: X points
// north, Y points east, Z points down.
//
// [ToNed] projects a RAW fix onto the tangent plane at an origin using
// the WGS-84 ellipsoid radius at the origin's latitude. The projection
// is accurate for the few-hundred-metre cells a flying access point
// serves; it is not a general geodesic solver.
//
// Timestamps on the wire use the ISO 8601 layout [TimestampLayout]
// with second resolution, always in UTC. [FormatTimestamp] and
// [ParseTimestamp] are the only code that should touch that layout.
//
// This package depends on no other packages in this module.
package geo
