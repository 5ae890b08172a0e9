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

func TestBuildParams(t *testing.T) {
	primary := 5.0

	t.Run("Natural order", func(t *testing.T) {
		v, err := pulsed.BuildParams(&primary, []float64{1, 2, 3}, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 1, 2, 3}, v)
	})

	t.Run("Permuted", func(t *testing.T) {
		v, err := pulsed.BuildParams(&primary, []float64{1, 2, 3}, 2, []int{1, 0})
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 3, 5, 1}, v)
	})

	t.Run("No primary", func(t *testing.T) {
		v, err := pulsed.BuildParams(nil, []float64{1, 2, 3}, 3, []int{2, 0, 1})
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 1, 2}, v)
	})

	t.Run("Not divisible", func(t *testing.T) {
		_, err := pulsed.BuildParams(&primary, []float64{1, 2, 3, 4}, 2, nil)
		perr := requireKind(t, err, pulsed.ErrShape)
		assert.Equal(t, 5, param(t, perr, "len"))
	})

	t.Run("Not a permutation", func(t *testing.T) {
		_, err := pulsed.BuildParams(&primary, []float64{1, 2, 3}, 2, []int{0, 0})
		requireKind(t, err, pulsed.ErrShape)

		_, err = pulsed.BuildParams(&primary, []float64{1, 2, 3}, 2, []int{0})
		requireKind(t, err, pulsed.ErrShape)
	})

	t.Run("No targets", func(t *testing.T) {
		_, err := pulsed.BuildParams(&primary, nil, 0, nil)
		requireKind(t, err, pulsed.ErrShape)
	})
}

func TestIsolateParams(t *testing.T) {
	primary := 5.0

	v, err := pulsed.BuildParams(&primary, []float64{1, 2, 3}, 2, nil)
	require.NoError(t, err)

	iso, err := pulsed.IsolateParams(v, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1, 0, 0}, iso)
	assert.Equal(t, []float64{5, 1, 2, 3}, v, "input must not be modified")

	iso, err = pulsed.IsolateParams(v, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2, 3}, iso)

	_, err = pulsed.IsolateParams(v, 2, 2)
	perr := requireKind(t, err, pulsed.ErrShape)
	assert.Equal(t, 2, param(t, perr, "target"))

	// Five values cannot be split between two targets, so neither the build
	// nor an isolate of such a vector succeeds.
	_, err = pulsed.BuildParams(&primary, []float64{1, 2, 3, 4}, 2, nil)
	requireKind(t, err, pulsed.ErrShape)
	_, err = pulsed.IsolateParams([]float64{5, 1, 2, 3, 4}, 2, 0)
	requireKind(t, err, pulsed.ErrShape)
}

func TestMergeParams(t *testing.T) {
	a, err := pulsed.IsolateParams([]float64{1, 2, 3, 4, 5, 6}, 3, 0)
	require.NoError(t, err)
	b, err := pulsed.IsolateParams([]float64{1, 2, 3, 4, 5, 6}, 3, 2)
	require.NoError(t, err)

	v, err := pulsed.MergeParams(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0, 0, 5, 6}, v)

	_, err = pulsed.MergeParams(a, []float64{1})
	requireKind(t, err, pulsed.ErrShape)
}

func TestInvertOrder(t *testing.T) {
	assert.Equal(t, []int{1, 2, 0}, pulsed.InvertOrder([]int{2, 0, 1}))
}

func TestSessionVectors(t *testing.T) {
	cal := staticCalibration{
		{
			Transition: pulsed.Transition{Frequency: 2.8e9, Amplitude: 0.2, RabiPeriod: 80e-9},
			Secondary:  []pulsed.Transition{{Frequency: 2.95e9, Amplitude: 0.3, RabiPeriod: 90e-9}},
		},
		{
			Transition: pulsed.Transition{Frequency: 2.7e9, Amplitude: 0.4, RabiPeriod: 70e-9},
			Secondary:  []pulsed.Transition{{Frequency: 3.05e9, Amplitude: 0.5, RabiPeriod: 60e-9}},
		},
	}

	s, _ := newSession(t, cal, pulsed.Options{TargetOrder: []int{1, 0}}, nil)
	assert.Equal(t, 4, s.NumChannels())
	assert.Equal(t, 2, s.Channel(0, 0))
	assert.Equal(t, 1, s.Channel(1, 1))

	all, err := s.Vectors()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.5, 0.2, 0.3}, all.Amplitude)
	assert.Equal(t, []float64{2.7e9, 3.05e9, 2.8e9, 2.95e9}, all.Frequency)

	p, err := s.Vectors(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.2, 0.3}, p.Amplitude)
	assert.Equal(t, all.Period, p.Period)

	p, err = s.Vectors(0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, all.Amplitude, p.Amplitude)

	_, err = s.Vectors(2)
	requireKind(t, err, pulsed.ErrShape)

	r, err := s.Pi(1, 90, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0, 0, 0}, r.Amplitude)
}

func TestBeginMismatchedTransitions(t *testing.T) {
	cal := staticCalibration{
		{Transition: pulsed.Transition{Frequency: 1e9, Amplitude: 0.1, RabiPeriod: 100e-9}},
		{
			Transition: pulsed.Transition{Frequency: 1e9, Amplitude: 0.1, RabiPeriod: 100e-9},
			Secondary:  []pulsed.Transition{{Frequency: 1e9, Amplitude: 0.1, RabiPeriod: 100e-9}},
		},
	}

	gen, err := pulsed.NewGenerator(pulsed.GeneratorConfig{Calibration: cal})
	require.NoError(t, err)

	_, err = gen.Begin()
	requireKind(t, err, pulsed.ErrShape)
}
