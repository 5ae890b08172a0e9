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

	"github.com/google/uuid"
)

// BlockRun plays a block Count times, advancing the sweep step on every play.
type BlockRun struct {
	Block *Block
	Count int
}

// MeasurementInfo describes how the readouts of an ensemble are analysed.
type MeasurementInfo struct {
	// ControlledVariable holds the swept value of every data point.
	ControlledVariable []float64
	Units              [2]string
	Labels             [2]string
	// Alternating is set when every data point is read out twice, the second
	// time with the final projection inverted.
	Alternating     bool
	ReadoutCount    int
	IgnoredReadouts []int
	// CountingLength is the longest laser window plus the delay that follows
	// it. Computed when left zero.
	CountingLength float64
}

// Ensemble is an ordered list of block runs making one complete measurement.
type Ensemble struct {
	ID   string
	Name string
	Runs []BlockRun
	Info MeasurementInfo
}

// NewEnsemble checks that info agrees with the readouts of runs and returns
// the ensemble.
func NewEnsemble(name string, runs []BlockRun, info MeasurementInfo) (*Ensemble, error) {
	const op = "NewEnsemble"

	if len(runs) == 0 {
		return nil, newError(KindShape, op, "ensemble has no blocks").with("name", name)
	}

	var readouts int
	for i, r := range runs {
		if r.Block == nil || r.Count < 1 {
			return nil, newError(KindShape, op, "invalid block run").
				with("name", name).with("run", i).with("count", r.Count)
		}
		if err := checkDurations(name, i, r); err != nil {
			return nil, err
		}
		readouts += r.Block.Readouts() * r.Count
	}
	if readouts != info.ReadoutCount {
		return nil, newError(KindShape, op, "readout count does not match laser windows").
			with("name", name).with("readout_count", info.ReadoutCount).with("laser_windows", readouts)
	}
	for _, idx := range info.IgnoredReadouts {
		if idx < 0 || idx >= info.ReadoutCount {
			return nil, newError(KindShape, op, "ignored readout out of range").
				with("name", name).with("index", idx).with("readout_count", info.ReadoutCount)
		}
	}
	if info.CountingLength == 0 {
		info.CountingLength = countingLength(runs)
	}

	return &Ensemble{
		ID:   uuid.New().String(),
		Name: name,
		Runs: runs,
		Info: info,
	}, nil
}

// Duration returns the time taken to play every run once.
func (e *Ensemble) Duration() float64 {
	var total float64
	for _, r := range e.Runs {
		for step := 0; step < r.Count; step++ {
			total += r.Block.Length(step)
		}
	}
	return total
}

// checkDurations rejects segments whose length turns negative during the
// sweep. Lengths are linear in the step, so both ends are checked.
func checkDurations(name string, run int, r BlockRun) error {
	for i, s := range r.Block.Segments {
		for _, step := range []int{0, r.Count - 1} {
			l := s.Length + float64(step)*s.Increment
			if l < -RoundingEpsilon {
				return newError(KindTiming, "NewEnsemble", "negative segment length during the sweep").
					with("name", name).with("block", r.Block.Name).with("run", run).
					with("segment", i).with("step", step).with("length", l)
			}
		}
	}
	return nil
}

func countingLength(runs []BlockRun) float64 {
	var longest float64
	for _, r := range runs {
		last := r.Count - 1
		segs := r.Block.Segments
		for i, s := range segs {
			if !s.Markers.Has(MarkerLaser) {
				continue
			}
			l := s.Length + float64(last)*s.Increment
			if i+1 < len(segs) && segs[i+1].IsIdle() && segs[i+1].Markers == 0 {
				next := segs[i+1]
				l += next.Length + float64(last)*next.Increment
			}
			longest = math.Max(longest, l)
		}
	}
	return longest
}
