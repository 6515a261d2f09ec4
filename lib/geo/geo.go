// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"fmt"
	"math"
	"time"
)

// WGS-84 semi-axes, in metres.
const (
	earthSemiMajorAxis = 6378137.0
	earthSemiMinorAxis = 6356752.314245
)

// RawCoordinates is a geodetic GPS position.
type RawCoordinates struct {
	// Latitude in degrees, positive north.
	Latitude float64 `json:"lat"`

	// Longitude in degrees, positive east.
	Longitude float64 `json:"lon"`

	// Altitude in metres above the reference surface.
	Altitude float64 `json:"alt"`

	// Timestamp is when the fix was taken. Zero if unknown.
	Timestamp time.Time `json:"timestamp"`
}

// NedCoordinates is a position on the local tangent plane, in metres
// relative to an origin.
type NedCoordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// Timestamp is carried over from the RAW fix this position was
	// derived from, or set by whoever produced the position.
	Timestamp time.Time `json:"timestamp"`
}

// String formats the position for log output.
func (n NedCoordinates) String() string {
	return fmt.Sprintf("(x=%.2f, y=%.2f, z=%.2f)", n.X, n.Y, n.Z)
}

// IsFinite reports whether every axis is a finite number.
func (n NedCoordinates) IsFinite() bool {
	return isFinite(n.X) && isFinite(n.Y) && isFinite(n.Z)
}

// String formats the fix for log output.
func (r RawCoordinates) String() string {
	return fmt.Sprintf("(lat=%.7f, lon=%.7f, alt=%.2f)", r.Latitude, r.Longitude, r.Altitude)
}

// IsValid reports whether the fix has finite values and latitude and
// longitude inside their geodetic ranges.
func (r RawCoordinates) IsValid() bool {
	if !isFinite(r.Latitude) || !isFinite(r.Longitude) || !isFinite(r.Altitude) {
		return false
	}
	return r.Latitude >= -90 && r.Latitude <= 90 && r.Longitude >= -180 && r.Longitude <= 180
}

// EarthRadiusAtLatitude returns the geocentric radius of the WGS-84
// ellipsoid at the given latitude (in radians).
func EarthRadiusAtLatitude(latitudeRadians float64) float64 {
	a := earthSemiMajorAxis
	b := earthSemiMinorAxis
	cos := math.Cos(latitudeRadians)
	sin := math.Sin(latitudeRadians)

	numerator := math.Pow(a*a*cos, 2) + math.Pow(b*b*sin, 2)
	denominator := math.Pow(a*cos, 2) + math.Pow(b*sin, 2)
	return math.Sqrt(numerator / denominator)
}

// ToNed projects fix onto the tangent plane at origin. The returned
// position keeps the fix's timestamp.
func ToNed(fix, origin RawCoordinates) NedCoordinates {
	originLatitude := radians(origin.Latitude)
	radius := EarthRadiusAtLatitude(originLatitude)

	deltaLatitude := radians(fix.Latitude - origin.Latitude)
	deltaLongitude := radians(normalizeLongitudeDelta(fix.Longitude - origin.Longitude))

	return NedCoordinates{
		X:         deltaLatitude * radius,
		Y:         deltaLongitude * radius * math.Cos(originLatitude),
		Z:         -(fix.Altitude - origin.Altitude),
		Timestamp: fix.Timestamp,
	}
}

// Distance returns the straight-line distance in metres between two
// positions on the same tangent plane.
func Distance(a, b NedCoordinates) float64 {
	return math.Sqrt(math.Pow(a.X-b.X, 2) + math.Pow(a.Y-b.Y, 2) + math.Pow(a.Z-b.Z, 2))
}

// normalizeLongitudeDelta folds a longitude difference into
// [-180, 180) so fixes across the antimeridian stay close.
func normalizeLongitudeDelta(degrees float64) float64 {
	folded := math.Mod(degrees+180, 360)
	if folded < 0 {
		folded += 360
	}
	return folded - 180
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
