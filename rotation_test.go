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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateIdle(t *testing.T) {
	s, _ := newSession(t, twoNV, pulsed.Options{}, nil)

	r := pulsed.Rotation{
		Phase:     pulsed.Scalar(0),
		Fraction:  pulsed.Scalar(1),
		Amplitude: []float64{0, 0},
		Frequency: []float64{1e9, 1.2e9},
		Period:    []float64{100e-9, 120e-9},
		Idle:      pulsed.IdleConvert,
	}

	segs, err := s.Rotate(r)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.True(t, segs[0].IsIdle())
	assert.InDelta(t, 60e-9, segs[0].Length, 1e-18)

	// The longest idle channel sets the length, whatever the sign.
	r.Fraction = pulsed.PerChannel(-1, 0.5)
	segs, err = s.Rotate(r)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.InDelta(t, 60e-9, segs[0].Length, 1e-18)

	// A swept rotation of zero length still carries its increment.
	r.Fraction = pulsed.Scalar(0)
	r.Increment = 1e-9
	segs, err = s.Rotate(r)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, pulsed.LengthEpsilon, segs[0].Length)
	assert.Equal(t, 1e-9, segs[0].Increment)

	r.Idle = pulsed.IdleDrop
	segs, err = s.Rotate(r)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestRotateNegativeFraction(t *testing.T) {
	s, _ := newSession(t, twoNV, pulsed.Options{}, nil)

	r, err := s.Pi(-0.5, 10, 0)
	require.NoError(t, err)

	segs, err := s.Rotate(r)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.InDelta(t, 25e-9, segs[0].Length, 1e-18)

	d, ok := segs[0].Drive(0)
	require.True(t, ok)
	assert.Equal(t, 190.0, d.Phase)
}

func TestRotateShapeErrors(t *testing.T) {
	s, _ := newSession(t, twoNV, pulsed.Options{}, nil)

	base := pulsed.Rotation{
		Phase:     pulsed.Scalar(0),
		Fraction:  pulsed.Scalar(1),
		Amplitude: []float64{0.1, 0.1},
		Frequency: []float64{1e9, 1.2e9},
		Period:    []float64{100e-9, 120e-9},
	}

	t.Run("Vector lengths", func(t *testing.T) {
		r := base
		r.Frequency = []float64{1e9}
		_, err := s.Rotate(r)
		perr := requireKind(t, err, pulsed.ErrShape)
		assert.Equal(t, 1, param(t, perr, "frequency"))
	})

	t.Run("Per-channel fraction", func(t *testing.T) {
		r := base
		r.Fraction = pulsed.PerChannel(1, 1, 1)
		_, err := s.Rotate(r)
		requireKind(t, err, pulsed.ErrShape)

		r.Fraction = pulsed.PerChannel(1, 0.5)
		segs, err := s.Rotate(r)
		require.NoError(t, err)
		assert.InDelta(t, 50e-9, pulsed.TotalLength(segs, 0), 1e-18)
	})

	t.Run("Target out of range", func(t *testing.T) {
		r := base
		r.Targets = []int{2}
		_, err := s.Rotate(r)
		requireKind(t, err, pulsed.ErrShape)
	})
}

func TestRotateUnsupported(t *testing.T) {
	s, _ := newSession(t, twoNV, pulsed.Options{}, nil)

	r, err := s.Pi(1, 0, 0)
	require.NoError(t, err)

	for _, c := range []pulsed.Composite{pulsed.BB1, pulsed.BB1Cross, pulsed.MWDecoupling, pulsed.MWDecouplingCross} {
		r.Composite = c
		r.Envelope = pulsed.Envelope{Kind: pulsed.Optimal}

		_, err := s.Rotate(r)
		perr := requireKind(t, err, pulsed.ErrUnsupported)
		assert.Equal(t, c.String(), param(t, perr, "composite"))
		assert.Equal(t, "optimal", param(t, perr, "envelope"))
	}

	r.Composite = pulsed.Composite(42)
	r.Envelope = pulsed.Envelope{}
	_, err = s.Rotate(r)
	requireKind(t, err, pulsed.ErrUnsupported)

	r.Composite = pulsed.BB1
	r.Increment = 1e-9
	_, err = s.Rotate(r)
	requireKind(t, err, pulsed.ErrUnsupported)
}

func TestRotateShapedEnvelope(t *testing.T) {
	s, _ := newSession(t, twoNV, pulsed.Options{}, nil)

	r, err := s.Pi(0.5, 0, 0, 1)
	require.NoError(t, err)
	r.Envelope = pulsed.Envelope{Kind: pulsed.SinN, Order: 2}

	segs, err := s.Rotate(r)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	// The longer channel spans both segments as one continuous pulse.
	first, ok := segs[0].Drive(1)
	require.True(t, ok)
	second, ok := segs[1].Drive(1)
	require.True(t, ok)
	assert.Equal(t, 0.0, first.Offset)
	assert.InDelta(t, 25e-9, second.Offset, 1e-18)
	assert.InDelta(t, 30e-9, second.PulseLength, 1e-18)
	assert.Equal(t, pulsed.SinN, second.Envelope.Kind)
}

func TestRotateBB1(t *testing.T) {
	for _, targets := range [][]int{{0}, {0, 1}} {
		s, rec := newSession(t, twoNV, pulsed.Options{}, nil)

		r, err := s.Pi(1, 0, targets...)
		require.NoError(t, err)
		r.Composite = pulsed.BB1

		segs, err := s.Rotate(r)
		require.NoError(t, err)

		calls := rec.rotations(2)
		require.Len(t, calls, 7)

		twoPi := make([]float64, len(targets))
		for i := range twoPi {
			twoPi[i] = 2
		}
		assert.Equal(t, pulsed.PerChannel(twoPi...).String(), calls[2]["fraction"].String())

		// θ/2 + π + 2π + π + θ/2 on the longest channel.
		longest := 100e-9
		if len(targets) == 2 {
			longest = 120e-9
		}
		assert.InDelta(t, 5*longest/2, pulsed.TotalLength(segs, 0), 1e-15)
	}
}

func TestRotateBB1CrossDecoupling(t *testing.T) {
	opts := pulsed.Options{Decoupling: pulsed.DecouplingOptions{Targets: []int{1}}}
	s, rec := newSession(t, twoNV, opts, nil)

	r, err := s.Pi(1, 0, 0)
	require.NoError(t, err)
	r.Composite = pulsed.BB1Cross

	segs, err := s.Rotate(r)
	require.NoError(t, err)
	require.Len(t, rec.rotations(2), 7)

	// Two π pulses on the second target are interleaved.
	var decoupling int
	for _, seg := range segs {
		if _, ok := seg.Drive(1); ok {
			decoupling++
			_, gate := seg.Drive(0)
			assert.False(t, gate)
		}
	}
	assert.Equal(t, 2, decoupling)
	assert.InDelta(t, 5*50e-9+2*60e-9, pulsed.TotalLength(segs, 0), 1e-15)

	s, _ = newSession(t, twoNV, pulsed.Options{}, nil)
	r, err = s.Pi(1, 0, 0)
	require.NoError(t, err)
	r.Composite = pulsed.BB1Cross
	_, err = s.Rotate(r)
	requireKind(t, err, pulsed.ErrUnsupported)
}

func TestRotateDecoupled(t *testing.T) {
	opts := pulsed.Options{
		Decoupling: pulsed.DecouplingOptions{Family: "se", Order: 1, Tau: 1e-6, Targets: []int{1}},
	}

	t.Run("Cross", func(t *testing.T) {
		s, _ := newSession(t, twoNV, opts, nil)

		r, err := s.Pi(1, 30, 0)
		require.NoError(t, err)
		r.Composite = pulsed.MWDecouplingCross

		segs, err := s.Rotate(r)
		require.NoError(t, err)
		require.Len(t, segs, 5)

		// gap, π on both targets (two partition segments), gap, gate slice
		assert.True(t, segs[0].IsIdle())
		assert.InDelta(t, 470e-9, segs[0].Length, 1e-15)
		assert.Len(t, segs[1].Drives, 2)
		assert.Len(t, segs[2].Drives, 1)
		assert.True(t, segs[3].IsIdle())

		d, ok := segs[4].Drive(0)
		require.True(t, ok)
		assert.Len(t, segs[4].Drives, 1)
		assert.Equal(t, -30.0, d.Phase)
	})

	t.Run("Spectators only", func(t *testing.T) {
		o := opts
		o.Decoupling.Family = "xy4"
		s, _ := newSession(t, twoNV, o, nil)

		r, err := s.Pi(1, 0, 0)
		require.NoError(t, err)
		r.Composite = pulsed.MWDecoupling

		segs, err := s.Rotate(r)
		require.NoError(t, err)

		var slices, pis int
		for _, seg := range segs {
			if d, ok := seg.Drive(0); ok {
				slices++
				assert.InDelta(t, 50e-9/4, d.PulseLength, 1e-18)
			}
			if _, ok := seg.Drive(1); ok {
				pis++
			}
		}
		assert.Equal(t, 4, slices)
		assert.Equal(t, 4, pis)
	})

	t.Run("Overlapping targets", func(t *testing.T) {
		s, _ := newSession(t, twoNV, opts, nil)

		r, err := s.Pi(1, 0, 1)
		require.NoError(t, err)
		r.Composite = pulsed.MWDecoupling

		_, err = s.Rotate(r)
		requireKind(t, err, pulsed.ErrUnsupported)
	})

	t.Run("Unknown family", func(t *testing.T) {
		o := opts
		o.Decoupling.Family = "udd"
		s, _ := newSession(t, twoNV, o, nil)

		r, err := s.Pi(1, 0, 0)
		require.NoError(t, err)
		r.Composite = pulsed.MWDecoupling

		_, err = s.Rotate(r)
		perr := requireKind(t, err, pulsed.ErrUnsupported)
		assert.Equal(t, "udd", param(t, perr, "family"))
	})
}

func TestRotateOptimal(t *testing.T) {
	asset := &pulsed.Asset{
		Targets:   []int{0},
		Fractions: []float64{1},
		IFile:     "nv=0_pi=1_amplitude.dat",
		QFile:     "nv=0_pi=1_phase.dat",
		Duration:  80e-9,
	}
	reg := pulsed.NewRegistry(asset)

	opts := pulsed.Options{TargetOrder: []int{1, 0}, OCScale: 0.5}
	s, _ := newSession(t, twoNV, opts, reg)

	r, err := s.Pi(1, 90, 0)
	require.NoError(t, err)
	r.Envelope = pulsed.Envelope{Kind: pulsed.Optimal}

	segs, err := s.Rotate(r)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 80e-9, segs[0].Length)

	// Target 0 sits on the second channel after reordering.
	d, ok := segs[0].Drive(1)
	require.True(t, ok)
	assert.Same(t, asset, d.Asset)
	assert.Equal(t, 0.5, d.Amplitude)
	assert.Equal(t, 1e9, d.Frequency)
	assert.Equal(t, 90.0, d.Phase)

	r.Fraction = pulsed.Scalar(0.5)
	_, err = s.Rotate(r)
	requireKind(t, err, pulsed.ErrAsset)

	r.Fraction = pulsed.Scalar(1)
	r.Increment = 1e-9
	_, err = s.Rotate(r)
	requireKind(t, err, pulsed.ErrUnsupported)
}
