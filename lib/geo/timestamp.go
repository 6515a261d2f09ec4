// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"fmt"
	"time"
)

// TimestampLayout is the ISO 8601 form used on the wire
// (%Y-%m-%dT%H:%M:%SZ).
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t in UTC using [TimestampLayout]. Sub-second
// precision is truncated.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a [TimestampLayout] string. The result is in
// UTC.
func ParseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return parsed, nil
}
