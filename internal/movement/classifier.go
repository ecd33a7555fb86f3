// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package movement

// state is the hysteresis state machine. confirmed only changes after
// confirmStreak consecutive observations agree on a candidate different from
// the current confirmed status; observing the confirmed status itself resets
// the candidate to it with a zero streak, so a stale candidate cannot linger.
type state struct {
	confirmed Status
	candidate Status
	streak    int
}

// observe is the pure transition function (state, observation) -> state.
// The second return value reports whether confirmed changed.
func (st state) observe(s Status) (state, bool) {
	if s == st.confirmed {
		st.candidate = s
		st.streak = 0
		return st, false
	}

	if s == st.candidate {
		st.streak++
		if st.streak >= confirmStreak {
			return state{confirmed: s, candidate: s, streak: 0}, true
		}
		return st, false
	}

	st.candidate = s
	st.streak = 1
	return st, false
}

// Classifier smooths and debounces the speed readings of a single tracked
// subject. One Classifier must exist per subject.
//
// Precondition: a Classifier is NOT safe for concurrent use. The host's fix
// ingestion delivers each subject's fixes on a single logical thread; callers
// mixing goroutines must serialize Update externally.
type Classifier struct {
	samples [sampleWindow]float64
	next    int
	filled  int
	st      state
}

// NewClassifier creates a classifier starting in the stationary state with
// an empty sample buffer.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Update feeds one fix's speed (m/s) and accuracy (meters) through
// normalization, smoothing, the noise gate and the hysteresis machine, and
// returns the debounced reading. It never fails; implausible input is
// normalized away. Both arguments are optional.
func (c *Classifier) Update(speed, accuracy *float64) Reading {
	c.push(NormalizeSpeed(speed))

	filtered := round1(c.mean())

	// Low-confidence, low-speed readings must not leak movement: with poor
	// or unknown accuracy a crawl-speed mean is indistinguishable from GPS
	// drift while parked.
	if filtered <= noiseSpeedKmh && (accuracy == nil || *accuracy > noiseAccuracyMeters) {
		filtered = 0
	}

	c.st, _ = c.st.observe(Classify(filtered))

	confirmed := c.st.confirmed
	return Reading{Status: confirmed, Label: confirmed.Label(), SpeedKmh: filtered}
}

// Status returns the currently confirmed status without feeding a sample.
func (c *Classifier) Status() Status {
	return c.st.confirmed
}

// push appends a normalized sample, evicting the oldest once the ring is full.
func (c *Classifier) push(kmh float64) {
	c.samples[c.next] = kmh
	c.next = (c.next + 1) % sampleWindow
	if c.filled < sampleWindow {
		c.filled++
	}
}

// mean averages the samples currently in the ring; zero when empty.
func (c *Classifier) mean() float64 {
	if c.filled == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < c.filled; i++ {
		sum += c.samples[i]
	}
	return sum / float64(c.filled)
}
