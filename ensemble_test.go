// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulsed_test

import (
	"testing"

	"github.com/OpenPSG/pulsed"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadout(t *testing.T) {
	opts := pulsed.Options{Readout: pulsed.ReadoutTiming{LaserLength: 3e-6, LaserDelay: 500e-9, WaitTime: 1e-6}}
	s, _ := newSession(t, twoNV, opts, nil)

	segs := s.Readout()
	require.Len(t, segs, 3)
	assert.True(t, segs[0].Markers.Has(pulsed.MarkerLaser|pulsed.MarkerGate))
	assert.Equal(t, 3e-6, segs[0].Length)
	assert.Equal(t, 500e-9, segs[1].Length)
	assert.Equal(t, 1e-6, segs[2].Length)

	opts.Readout.WaitTime = 0
	s, _ = newSession(t, twoNV, opts, nil)
	assert.Len(t, s.Readout(), 2)
}

func TestIdle(t *testing.T) {
	_, ok := pulsed.Idle(0, 0)
	assert.False(t, ok)

	seg, ok := pulsed.Idle(0, 1e-9)
	require.True(t, ok)
	assert.Equal(t, pulsed.LengthEpsilon, seg.Length)
	assert.Equal(t, 1e-9, seg.Increment)

	seg, ok = pulsed.Idle(-1e-16, -1e-9)
	require.True(t, ok)
	assert.Equal(t, pulsed.LengthEpsilon, seg.Length)

	seg, ok = pulsed.Idle(10e-9, 0)
	require.True(t, ok)
	assert.True(t, seg.IsIdle())
}

func TestNewEnsemble(t *testing.T) {
	block := pulsed.NewBlock("rabi").Append(
		pulsed.Segment{Length: 10e-9, Increment: 10e-9, Drives: []pulsed.Drive{{Channel: 0, Amplitude: 0.1}}},
		pulsed.Laser(3e-6),
		pulsed.Delay(500e-9),
		pulsed.Delay(1e-6),
	)
	runs := []pulsed.BlockRun{{Block: block, Count: 3}}

	e, err := pulsed.NewEnsemble("rabi", runs, pulsed.MeasurementInfo{
		ControlledVariable: []float64{10e-9, 20e-9, 30e-9},
		ReadoutCount:       3,
		IgnoredReadouts:    []int{2},
	})
	require.NoError(t, err)

	_, err = uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.5e-6, e.Info.CountingLength, 1e-18)
	assert.InDelta(t, 3*(4.5e-6+10e-9)+30e-9, e.Duration(), 1e-15)

	other, err := pulsed.NewEnsemble("rabi", runs, e.Info)
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, other.ID)

	t.Run("Readout mismatch", func(t *testing.T) {
		_, err := pulsed.NewEnsemble("rabi", runs, pulsed.MeasurementInfo{ReadoutCount: 4})
		perr := requireKind(t, err, pulsed.ErrShape)
		assert.Equal(t, 3, param(t, perr, "laser_windows"))
	})

	t.Run("Ignored readout out of range", func(t *testing.T) {
		_, err := pulsed.NewEnsemble("rabi", runs, pulsed.MeasurementInfo{ReadoutCount: 3, IgnoredReadouts: []int{3}})
		requireKind(t, err, pulsed.ErrShape)
	})

	t.Run("Negative length during sweep", func(t *testing.T) {
		shrinking := pulsed.NewBlock("shrink").Append(
			pulsed.Segment{Length: 10e-9, Increment: -5e-9},
			pulsed.Laser(3e-6),
		)

		_, err := pulsed.NewEnsemble("shrink", []pulsed.BlockRun{{Block: shrinking, Count: 3}}, pulsed.MeasurementInfo{ReadoutCount: 3})
		require.NoError(t, err)

		_, err = pulsed.NewEnsemble("shrink", []pulsed.BlockRun{{Block: shrinking, Count: 4}}, pulsed.MeasurementInfo{ReadoutCount: 4})
		perr := requireKind(t, err, pulsed.ErrTiming)
		assert.Equal(t, "shrink", param(t, perr, "block"))
		assert.Equal(t, 0, param(t, perr, "segment"))
		assert.Equal(t, 3, param(t, perr, "step"))
		assert.InDelta(t, -5e-9, param(t, perr, "length").(float64), 1e-18)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := pulsed.NewEnsemble("rabi", nil, pulsed.MeasurementInfo{})
		requireKind(t, err, pulsed.ErrShape)

		_, err = pulsed.NewEnsemble("rabi", []pulsed.BlockRun{{Block: block}}, pulsed.MeasurementInfo{})
		requireKind(t, err, pulsed.ErrShape)
	})
}

func TestErrorFormatting(t *testing.T) {
	_, err := pulsed.BuildParams(nil, []float64{1, 2, 3}, 2, nil)
	require.EqualError(t, err, "shape error in BuildParams: vector length not divisible by target count (len=3, n_targets=2)")
}
