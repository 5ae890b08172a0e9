// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulsed

// Idle returns a segment driving nothing. ok is false when the segment would
// be empty, i.e. it has neither length nor increment. A segment that only
// carries an increment gets LengthEpsilon.
func Idle(length, increment float64) (seg Segment, ok bool) {
	if length <= 0 {
		if increment == 0 {
			return Segment{}, false
		}
		length = LengthEpsilon
	}
	return Segment{Length: length, Increment: increment}, true
}

// Laser returns a readout window with the laser and counter gate open.
func Laser(length float64) Segment {
	return Segment{Length: length, Markers: MarkerLaser | MarkerGate}
}

// Delay returns an idle segment of the given length.
func Delay(length float64) Segment {
	return Segment{Length: length}
}

// Trigger returns a sync trigger of the given length.
func Trigger(length float64) Segment {
	return Segment{Length: length, Markers: MarkerTrigger}
}

// Readout returns the laser window, the laser delay and the wait time that
// end every shot. Zero-length parts are left out.
func (s *Session) Readout() []Segment {
	t := s.gen.opts.Readout
	out := []Segment{Laser(t.LaserLength)}
	if t.LaserDelay > 0 {
		out = append(out, Delay(t.LaserDelay))
	}
	if t.WaitTime > 0 {
		out = append(out, Delay(t.WaitTime))
	}
	return out
}
