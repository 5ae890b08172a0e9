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
	"slices"
)

// bb1Pulse realises a rotation θ at phase φ as the Wimperis BB1 composite
//
//	θ/2 @ φ, π @ φ+φ1, 2π @ φ+3φ1, D, π @ φ+φ1, D, θ/2 @ φ
//
// with φ1 = acos(-θ/4) (θ in units of π). D is a decoupling π pulse on the
// second target for the cross-decoupled variant and is dropped otherwise.
type bb1Pulse struct {
	cross bool
}

func (p bb1Pulse) synthesize(s *Session, g *gate) ([]Segment, error) {
	if g.Increment != 0 {
		return nil, newError(KindUnsupported, "Rotate", "composite pulses cannot be swept").
			with("composite", g.Composite.String()).with("increment", g.Increment)
	}

	phi1 := mapSlice(g.fraction, func(_ int, f float64) float64 {
		return math.Acos(-f/4) * 180 / math.Pi
	})
	half := mapSlice(g.fraction, func(_ int, f float64) float64 { return f / 2 })
	pi := mapSlice(g.fraction, func(int, float64) float64 { return 1 })
	twoPi := mapSlice(g.fraction, func(int, float64) float64 { return 2 })
	shifted := func(k float64) []float64 {
		return mapSlice(g.phase, func(i int, ph float64) float64 { return ph + k*phi1[i] })
	}

	decouple, err := p.decoupling(s, g)
	if err != nil {
		return nil, err
	}

	calls := []Rotation{
		g.sub(half, g.phase),
		g.sub(pi, shifted(1)),
		g.sub(twoPi, shifted(3)),
		decouple,
		g.sub(pi, shifted(1)),
		decouple,
		g.sub(half, g.phase),
	}

	var out []Segment
	for _, r := range calls {
		segs, err := s.Rotate(r)
		if err != nil {
			return nil, err
		}
		out = append(out, segs...)
	}
	return out, nil
}

// decoupling returns the π pulse interleaved between the correction pulses.
// Without cross decoupling it drives nothing and is dropped.
func (p bb1Pulse) decoupling(s *Session, g *gate) (Rotation, error) {
	if !p.cross {
		return Rotation{
			Phase:     Scalar(0),
			Fraction:  Scalar(1),
			Amplitude: make([]float64, len(g.Amplitude)),
			Frequency: g.Frequency,
			Period:    g.Period,
			Idle:      IdleDrop,
			Envelope:  g.Envelope,
			Composite: Bare,
		}, nil
	}

	targets := s.gen.opts.Decoupling.Targets
	if len(targets) == 0 {
		return Rotation{}, newError(KindUnsupported, "Rotate", "cross decoupling needs decoupling targets").
			with("composite", g.Composite.String())
	}
	r, err := s.Pi(1, 0, targets...)
	if err != nil {
		return Rotation{}, err
	}
	r.Envelope = g.Envelope
	r.Idle = IdleDrop
	return r, nil
}

// decoupledPulse slices the rotation into N = order·len(suborder) equal parts
// played between the π pulses of the configured decoupling family.
//
// mw_decoupling applies the π pulses to the decoupling targets only. The
// cross variant also applies them to the gate targets and reflects each
// slice's phase through every preceding π pulse (φ → 2α - φ) so the slices
// still compose to the requested rotation.
type decoupledPulse struct {
	cross bool
}

func (p decoupledPulse) synthesize(s *Session, g *gate) ([]Segment, error) {
	const op = "Rotate"

	if g.Increment != 0 {
		return nil, newError(KindUnsupported, op, "composite pulses cannot be swept").
			with("composite", g.Composite.String()).with("increment", g.Increment)
	}

	opts := s.gen.opts.Decoupling
	desc, err := s.gen.dd.Lookup(opts.Family)
	if err != nil {
		return nil, err
	}
	n := desc.Pulses(opts.Order)
	if n == 0 {
		return nil, newError(KindShape, op, "decoupling family has no pulses").
			with("family", desc.Name).with("order", opts.Order)
	}

	spectators := opts.Targets
	for _, t := range spectators {
		if slices.Contains(g.Targets, t) && !p.cross {
			return nil, newError(KindUnsupported, op, "decoupling targets overlap gate targets").
				with("composite", g.Composite.String()).with("targets", g.Targets).with("decoupling", spectators)
		}
	}
	if len(spectators) == 0 && !p.cross {
		return nil, newError(KindUnsupported, op, "mw decoupling needs decoupling targets").
			with("composite", g.Composite.String())
	}
	if len(g.Amplitude) != s.NumChannels() {
		return nil, newError(KindShape, op, "decoupled rotation needs session-sized vectors").
			with("channels", len(g.Amplitude)).with("want", s.NumChannels())
	}

	decouple, err := s.primary(spectators...)
	if err != nil {
		return nil, err
	}
	if len(spectators) == 0 {
		clear(decouple.Amplitude)
	}
	legTargets := slices.Clone(spectators)
	if p.cross {
		for _, c := range g.active {
			decouple.Amplitude[c] = g.Amplitude[c]
			decouple.Frequency[c] = g.Frequency[c]
			decouple.Period[c] = g.Period[c]
		}
		legTargets = append(legTargets, g.Targets...)
	}

	slice := mapSlice(g.fraction, func(_ int, f float64) float64 { return f / float64(n) })

	return s.Expand(Expansion{
		Descriptor: desc,
		Order:      opts.Order,
		Tau:        opts.Tau,
		A: Leg{
			Targets:  legTargets,
			Fraction: Scalar(1),
			Phase:    Scalar(0),
			Cycle:    true,
			Params:   decouple,
			Envelope: g.Envelope,
		},
		B: &Leg{
			Targets:  g.Targets,
			Fraction: PerChannel(slice...),
			Phase:    PerChannel(g.phase...),
			Reflect:  p.cross,
			Params:   Params{Amplitude: g.Amplitude, Frequency: g.Frequency, Period: g.Period},
			Envelope: g.Envelope,
		},
	})
}
