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
	"fmt"
	"math"
)

// Position is where a free-evolution gap sits in a decoupling sequence.
type Position int

const (
	PositionFirst  Position = iota // Before the first π pulse
	PositionMiddle                 // Between two π pulses
	PositionLast                   // After the final π pulse
)

func (p Position) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionMiddle:
		return "middle"
	case PositionLast:
		return "last"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Leg is the pulse played on one target set at every step of an expansion.
type Leg struct {
	Targets  []int
	Fraction Value
	Phase    Value
	// Cycle adds the step's descriptor phase and amplitude scale.
	Cycle bool
	// Reflect mirrors the phase through every π pulse of leg A played so far,
	// keeping rotations on targets that A also flips coherent.
	Reflect  bool
	Params   Params
	Idle     IdlePolicy
	Envelope Envelope
}

// Expansion describes a decoupling sequence. Each of the Order·len(suborder)
// steps plays: gap, A, gap, B. Pulse centres sit on a grid of Tau/2 with A
// pulses Tau apart.
type Expansion struct {
	Descriptor   Descriptor
	Order        int
	Tau          float64
	TauIncrement float64
	A            Leg
	B            *Leg
	// FloatingLast leaves the final B pulse to the caller and ends the
	// sequence where that pulse must start for its centre to sit on the grid.
	FloatingLast bool
}

type gap struct {
	step int
	pos  Position
	cut  float64 // Subtracted from Tau/2
}

type expansionPlan struct {
	n      int
	a, b   [][]Segment
	wA, wB []float64
	before []gap
	after  []gap
}

// Expand turns a decoupling descriptor into segments.
func (s *Session) Expand(x Expansion) ([]Segment, error) {
	const op = "Expand"

	p, err := s.plan(x)
	if err != nil {
		return nil, err
	}

	half := x.Tau / 2
	var out []Segment
	emit := func(g gap) error {
		length := half - g.cut
		if length < -RoundingEpsilon {
			wb := 0.0
			if p.wB != nil {
				wb = p.wB[g.step]
			}
			return newError(KindTiming, op, "negative free evolution, increase tau or shorten the pulses").
				with("tau", x.Tau).with("order", x.Order).with("step", g.step).
				with("position", g.pos.String()).with("width_a", p.wA[g.step]).
				with("width_b", wb).with("gap", length)
		}
		if seg, ok := Idle(math.Max(length, 0), x.TauIncrement/2); ok {
			out = append(out, seg)
		}
		return nil
	}

	for k := 0; k < p.n; k++ {
		if err := emit(p.before[k]); err != nil {
			return nil, err
		}
		out = append(out, p.a[k]...)
		if err := emit(p.after[k]); err != nil {
			return nil, err
		}
		if x.B != nil && !(x.FloatingLast && k == p.n-1) {
			out = append(out, p.b[k]...)
		}
	}

	s.logger.Debug("[DD] expanded",
		"family", x.Descriptor.Name, "order", x.Order, "tau", x.Tau,
		"pulses", p.n, "segments", len(out), "floating_last", x.FloatingLast)
	return out, nil
}

// MinTau returns the smallest tau for which every gap of x is non-negative.
func (s *Session) MinTau(x Expansion) (float64, error) {
	p, err := s.plan(x)
	if err != nil {
		return 0, err
	}
	var cut float64
	for k := 0; k < p.n; k++ {
		cut = math.Max(cut, math.Max(p.before[k].cut, p.after[k].cut))
	}
	return 2 * cut, nil
}

func (s *Session) plan(x Expansion) (*expansionPlan, error) {
	const op = "Expand"

	if len(x.Descriptor.Suborder) == 0 || x.Order <= 0 {
		return nil, newError(KindShape, op, "empty decoupling sequence").
			with("family", x.Descriptor.Name).with("order", x.Order)
	}
	if math.IsNaN(x.Tau) || math.IsInf(x.Tau, 0) {
		return nil, newError(KindShape, op, "invalid tau").with("tau", x.Tau)
	}
	if x.FloatingLast {
		if x.B == nil {
			return nil, newError(KindUnsupported, op, "floating last pulse needs a second target")
		}
		f := x.B.Fraction.MaxAbs()
		if !x.B.Fraction.IsScalar() || (f != 0 && f != 1) {
			return nil, newError(KindUnsupported, op, "floating last pulse is only defined for rotation fractions 0 and 1").
				with("fraction", x.B.Fraction.String())
		}
	}
	if x.B != nil && x.B.Reflect && !x.A.Phase.IsScalar() {
		return nil, newError(KindShape, op, "reflected phases need a scalar phase on leg A").
			with("phase", x.A.Phase.String())
	}

	p := &expansionPlan{n: x.Descriptor.Pulses(x.Order)}
	p.a = make([][]Segment, p.n)
	p.wA = make([]float64, p.n)
	if x.B != nil {
		p.b = make([][]Segment, p.n)
		p.wB = make([]float64, p.n)
	}

	var axes []float64
	for k := 0; k < p.n; k++ {
		st := x.Descriptor.step(k)

		segs, err := s.Rotate(x.A.rotation(st, nil))
		if err != nil {
			return nil, err
		}
		p.a[k], p.wA[k] = segs, TotalLength(segs, 0)

		alpha := x.A.Phase.Max()
		if x.A.Cycle {
			alpha += st.Phase
		}
		axes = append(axes, alpha)

		if x.B == nil {
			continue
		}
		var reflect []float64
		if x.B.Reflect {
			reflect = axes
		}
		if segs, err = s.Rotate(x.B.rotation(st, reflect)); err != nil {
			return nil, err
		}
		p.b[k], p.wB[k] = segs, TotalLength(segs, 0)
	}

	p.before = make([]gap, p.n)
	p.after = make([]gap, p.n)
	for k := 0; k < p.n; k++ {
		last := k == p.n-1

		before := gap{step: k, pos: PositionMiddle, cut: p.wA[k] / 2}
		if k == 0 {
			before.pos = PositionFirst
		} else if x.B != nil {
			before.cut += p.wB[k-1] / 2
		}

		after := gap{step: k, pos: PositionMiddle, cut: p.wA[k] / 2}
		if last {
			after.pos = PositionLast
		}
		if x.B != nil && (!last || x.FloatingLast) {
			after.cut += p.wB[k] / 2
		}

		p.before[k], p.after[k] = before, after
	}
	return p, nil
}

// rotation returns the leg's request for one step. Axes are the phases of
// the π pulses the phase is reflected through, in playing order.
func (l Leg) rotation(st Step, axes []float64) Rotation {
	phase := l.Phase
	amp := l.Params.Amplitude
	if l.Cycle {
		phase = phase.Map(func(ph float64) float64 { return ph + st.Phase })
		if st.AmplitudeScale != 1 {
			amp = make([]float64, len(l.Params.Amplitude))
			for i, a := range l.Params.Amplitude {
				amp[i] = a * st.AmplitudeScale
			}
		}
	}
	if len(axes) > 0 {
		phase = phase.Map(func(ph float64) float64 {
			for _, alpha := range axes {
				ph = 2*alpha - ph
			}
			return ph
		})
	}
	return Rotation{
		Phase:     phase,
		Targets:   l.Targets,
		Fraction:  l.Fraction,
		Amplitude: amp,
		Frequency: l.Params.Frequency,
		Period:    l.Params.Period,
		Idle:      l.Idle,
		Envelope:  l.Envelope,
		Composite: Bare,
	}
}
