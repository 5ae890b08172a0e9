// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulsed

import (
	"math"
	"sort"
)

// ChannelRequest asks for a rectangular-window pulse on one channel starting
// at t = 0 and lasting Length seconds.
type ChannelRequest struct {
	Channel   int
	Length    float64
	Increment float64
	Amplitude float64
	Frequency float64
	Phase     float64 // NaN marks the channel idle for this step
	Envelope  Envelope
}

// Partition merges simultaneous channel requests of different lengths into
// an ordered list of non-overlapping segments. Concatenating the segments
// reproduces, for every channel, its pulse from 0 to its requested length
// followed by silence. A longer channel must not have a smaller sweep
// increment than a shorter one, so the order holds at every step.
func Partition(reqs []ChannelRequest) ([]Segment, error) {
	const op = "Partition"

	lengths := make([]float64, len(reqs))
	for i, r := range reqs {
		l := r.Length
		switch {
		case math.IsNaN(l) || math.IsInf(l, 0):
			return nil, newError(KindShape, op, "invalid pulse length").
				with("channel", r.Channel).with("length", l)
		case l < -RoundingEpsilon:
			return nil, newError(KindShape, op, "negative pulse length").
				with("channel", r.Channel).with("length", l)
		case l < 0:
			l = 0
		}
		lengths[i] = l
	}

	sorted := make([]int, len(reqs))
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		i, j := sorted[a], sorted[b]
		if lengths[i] != lengths[j] {
			return lengths[i] < lengths[j]
		}
		return reqs[i].Increment < reqs[j].Increment
	})
	for k := 1; k < len(sorted); k++ {
		prev, cur := reqs[sorted[k-1]], reqs[sorted[k]]
		if cur.Increment < prev.Increment {
			return nil, newError(KindShape, op, "sweep increments reorder the channels").
				with("channel", cur.Channel).with("increment", cur.Increment).
				with("shorter_channel", prev.Channel).with("shorter_increment", prev.Increment)
		}
	}
	rank := make([]int, len(reqs))
	for k, i := range sorted {
		rank[i] = k
	}

	segs := make([]Segment, 0, len(reqs))
	var prev, prevInc float64
	for k, i := range sorted {
		length := lengths[i] - prev
		inc := reqs[i].Increment - prevInc
		if length <= 0 {
			if inc == 0 {
				continue
			}
			length = LengthEpsilon
		}

		seg := Segment{Length: length, Increment: inc}
		for c, r := range reqs {
			if rank[c] < k || r.Amplitude == 0 || math.IsNaN(r.Phase) {
				continue
			}
			seg.Drives = append(seg.Drives, Drive{
				Channel:     r.Channel,
				Envelope:    r.Envelope,
				Amplitude:   r.Amplitude,
				Frequency:   r.Frequency,
				Phase:       r.Phase,
				Offset:      prev,
				PulseLength: lengths[c],
			})
		}
		segs = append(segs, seg)

		prev = lengths[i]
		prevInc = reqs[i].Increment
	}

	return segs, nil
}
