// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

// Package roadsnap aligns a short trail of raw GPS fixes to the road
// network. Snapping is strictly best-effort: every failure path, from a
// missing access token to an upstream mismatch, degrades to the raw fix.
// Successful snaps are cached by the quantized current position so a
// subject idling at one spot never re-queries the matcher.
package roadsnap

import (
	"fmt"
	"math"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Result carries the point to display. Snapped reports whether it is
// road-aligned; when false the point is the raw fix unchanged.
type Result struct {
	Point   Point
	Snapped bool
}

// Key quantizes a point for the snap cache, truncating toward zero at 5
// decimal places (about a 1m cell). Truncation rather than rounding keeps
// a fix that jitters across a rounding boundary in one cell.
func Key(p Point) string {
	return fmt.Sprintf("%.5f,%.5f", trunc5(p.Lat), trunc5(p.Lon))
}

func trunc5(v float64) float64 {
	return math.Trunc(v*1e5) / 1e5
}
