// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

// Package movement converts raw GPS speed and accuracy readings into a
// debounced stationary/walking/vehicle status. It is pure local computation:
// no I/O, no error paths, no clock dependence.
package movement

import "math"

// Status is the movement classification of a tracked subject.
type Status int

const (
	StatusStationary Status = iota
	StatusWalking
	StatusVehicle
)

// String returns the wire/log name of the status.
func (s Status) String() string {
	switch s {
	case StatusWalking:
		return "walking"
	case StatusVehicle:
		return "vehicle"
	default:
		return "stationary"
	}
}

// Label returns the display label shown to guardians in the app.
func (s Status) Label() string {
	switch s {
	case StatusWalking:
		return "Caminhando"
	case StatusVehicle:
		return "Em veículo"
	default:
		return "Parado"
	}
}

const (
	// mpsToKmh converts sensor speed (m/s) to km/h.
	mpsToKmh = 3.6

	// maxPlausibleKmh is the spike cutoff: readings above it are sensor
	// glitches and are discarded entirely, not capped.
	maxPlausibleKmh = 200.0

	// walkingMinKmh and vehicleMinKmh bound the classification bands:
	// 0 and (0,1) are stationary, [1,15] walking, >15 vehicle.
	walkingMinKmh = 1.0
	vehicleMinKmh = 15.0

	// noiseSpeedKmh and noiseAccuracyMeters define the low-confidence gate:
	// a smoothed speed at or below noiseSpeedKmh with unknown or worse-than
	// noiseAccuracyMeters accuracy is forced to zero.
	noiseSpeedKmh       = 2.0
	noiseAccuracyMeters = 30.0

	// sampleWindow is the smoothing ring buffer capacity.
	sampleWindow = 3

	// confirmStreak is the hysteresis threshold: a new status must be
	// observed this many consecutive times before it is confirmed.
	confirmStreak = 2
)

// Reading is the externally visible result of one classification.
type Reading struct {
	Status   Status
	Label    string
	SpeedKmh float64
}

// NormalizeSpeed converts an optional sensor speed in m/s to km/h rounded to
// one decimal. Nil and non-positive readings normalize to zero. Readings
// above the plausibility cutoff are treated as spikes and discarded to zero.
func NormalizeSpeed(speed *float64) float64 {
	if speed == nil || *speed <= 0 {
		return 0
	}

	kmh := *speed * mpsToKmh
	if kmh > maxPlausibleKmh {
		return 0
	}
	return round1(kmh)
}

// Classify maps a filtered km/h value to a status.
func Classify(kmh float64) Status {
	switch {
	case kmh > vehicleMinKmh:
		return StatusVehicle
	case kmh >= walkingMinKmh:
		return StatusWalking
	default:
		return StatusStationary
	}
}

// ClassifyOnce is the stateless variant used for first render, before any
// sample history exists: normalization plus single-sample classification,
// with no smoothing and no hysteresis.
func ClassifyOnce(speed *float64) Reading {
	kmh := NormalizeSpeed(speed)
	status := Classify(kmh)
	return Reading{Status: status, Label: status.Label(), SpeedKmh: kmh}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
