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
	"slices"
)

// IdlePolicy decides what a rotation without any driven channel produces.
type IdlePolicy int

const (
	// IdleConvert emits an idle segment lasting as long as the rotation would
	// have on the channel with the longest period.
	IdleConvert IdlePolicy = iota
	// IdleDrop emits nothing.
	IdleDrop
)

// Composite selects how a rotation is realised.
type Composite int

const (
	Bare Composite = iota
	BB1
	BB1Cross
	MWDecoupling
	MWDecouplingCross
)

func (c Composite) String() string {
	switch c {
	case Bare:
		return "bare"
	case BB1:
		return "bb1"
	case BB1Cross:
		return "bb1_with_cross_decoupling"
	case MWDecoupling:
		return "mw_decoupling"
	case MWDecouplingCross:
		return "mw_decoupling_cross"
	default:
		return fmt.Sprintf("composite(%d)", int(c))
	}
}

// ParseComposite parses the name returned by Composite.String.
func ParseComposite(s string) (Composite, error) {
	for c := Bare; c <= MWDecouplingCross; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return Bare, fmt.Errorf("unknown composite %q", s)
}

// Rotation is a request to rotate targets by Fraction·π about the axis at
// Phase degrees. Amplitude, Frequency and Period are parallel per-channel
// vectors; channels with zero amplitude are idle.
type Rotation struct {
	Phase     Value
	Targets   []int
	Fraction  Value
	Amplitude []float64
	Frequency []float64
	Period    []float64
	// Increment is added to every driven channel's length per sweep step.
	Increment float64
	// Parallel names targets driven simultaneously by an optimal-control
	// pulse calibrated for them.
	Parallel  []int
	Idle      IdlePolicy
	Envelope  Envelope
	Composite Composite
}

// gate is a validated rotation with per-active-channel values.
type gate struct {
	Rotation
	active   []int
	fraction []float64
	phase    []float64
}

// synthesizer realises one (composite, envelope) strategy.
type synthesizer interface {
	synthesize(s *Session, g *gate) ([]Segment, error)
}

// Rotate turns a rotation request into waveform segments.
func (s *Session) Rotate(r Rotation) ([]Segment, error) {
	const op = "Rotate"

	s.depth++
	defer func() { s.depth-- }()

	if err := s.checkShape(op, r); err != nil {
		return nil, err
	}

	strategy, err := s.strategy(r.Composite, r.Envelope)
	if err != nil {
		return nil, err
	}

	g := &gate{Rotation: r}
	for c, a := range r.Amplitude {
		if a != 0 {
			g.active = append(g.active, c)
		}
	}

	s.logger.Debug("[ROT] rotation",
		"depth", s.depth,
		"composite", r.Composite.String(),
		"envelope", r.Envelope.String(),
		"targets", r.Targets,
		"fraction", r.Fraction.String(),
		"phase", r.Phase.String(),
		"active", len(g.active))

	if r.Envelope.Kind != Optimal {
		if len(g.active) == 0 {
			return s.idle(r), nil
		}
		if g.fraction, err = r.Fraction.Broadcast(len(g.active)); err != nil {
			return nil, newError(KindShape, op, "rotation fraction does not match driven channels: %v", err).
				with("fraction", r.Fraction.String()).with("active", len(g.active))
		}
		if g.phase, err = r.Phase.Broadcast(len(g.active)); err != nil {
			return nil, newError(KindShape, op, "phase does not match driven channels: %v", err).
				with("phase", r.Phase.String()).with("active", len(g.active))
		}
		for i, f := range g.fraction {
			if f < 0 {
				g.fraction[i] = -f
				g.phase[i] += 180
			}
		}
	}

	return strategy.synthesize(s, g)
}

func (s *Session) checkShape(op string, r Rotation) error {
	if len(r.Amplitude) != len(r.Frequency) || len(r.Amplitude) != len(r.Period) {
		return newError(KindShape, op, "parameter vectors differ in length").
			with("amplitude", len(r.Amplitude)).
			with("frequency", len(r.Frequency)).
			with("period", len(r.Period))
	}
	for _, t := range append(append([]int(nil), r.Targets...), r.Parallel...) {
		if t < 0 || t >= s.nTargets {
			return newError(KindShape, op, "target index out of range").
				with("target", t).with("n_targets", s.nTargets)
		}
	}
	return nil
}

// strategy selects the realisation of a (composite, envelope) pair. Every
// pair without a defined meaning is an error.
func (s *Session) strategy(c Composite, e Envelope) (synthesizer, error) {
	unsupported := func() (synthesizer, error) {
		return nil, newError(KindUnsupported, "Rotate", "unsupported composite/envelope combination").
			with("composite", c.String()).with("envelope", e.String())
	}

	switch e.Kind {
	case Rectangle, Parabola, SinN, Optimal:
	default:
		return unsupported()
	}

	switch c {
	case Bare:
		if e.Kind == Optimal {
			return optimalPulse{}, nil
		}
		return barePulse{}, nil
	case BB1, BB1Cross:
		if e.Kind == Optimal {
			return unsupported()
		}
		return bb1Pulse{cross: c == BB1Cross}, nil
	case MWDecoupling, MWDecouplingCross:
		if e.Kind == Optimal {
			return unsupported()
		}
		return decoupledPulse{cross: c == MWDecouplingCross}, nil
	default:
		return unsupported()
	}
}

// idle handles rotations without any driven channel.
func (s *Session) idle(r Rotation) []Segment {
	if r.Idle == IdleDrop {
		return nil
	}
	var period float64
	for _, p := range r.Period {
		period = math.Max(period, p)
	}
	seg, ok := Idle(r.Fraction.MaxAbs()*period/2, r.Increment)
	if !ok {
		return nil
	}
	return []Segment{seg}
}

// barePulse plays the rotation directly, partitioning channels of different
// lengths.
type barePulse struct{}

func (barePulse) synthesize(_ *Session, g *gate) ([]Segment, error) {
	reqs := make([]ChannelRequest, len(g.active))
	for i, c := range g.active {
		reqs[i] = ChannelRequest{
			Channel:   c,
			Length:    g.fraction[i] * g.Period[c] / 2,
			Increment: g.Increment,
			Amplitude: g.Amplitude[c],
			Frequency: g.Frequency[c],
			Phase:     g.phase[i],
			Envelope:  g.Envelope,
		}
	}
	return Partition(reqs)
}

// optimalPulse substitutes a pre-computed shaped waveform.
type optimalPulse struct{}

func (optimalPulse) synthesize(s *Session, g *gate) ([]Segment, error) {
	const op = "Rotate"

	if len(g.Targets) == 0 {
		return nil, newError(KindShape, op, "optimal-control rotation needs targets")
	}
	if g.Increment != 0 {
		return nil, newError(KindUnsupported, op, "optimal-control pulses cannot be swept").
			with("increment", g.Increment)
	}
	fractions, err := g.Fraction.Broadcast(len(g.Targets))
	if err != nil {
		return nil, newError(KindShape, op, "rotation fraction does not match targets: %v", err).
			with("targets", g.Targets).with("fraction", g.Fraction.String())
	}
	phases, err := g.Phase.Broadcast(len(g.Targets))
	if err != nil {
		return nil, newError(KindShape, op, "phase does not match targets: %v", err).
			with("targets", g.Targets).with("phase", g.Phase.String())
	}
	for i, f := range fractions {
		if f < 0 {
			fractions[i] = -f
			phases[i] += 180
		}
	}

	asset, err := s.gen.reg.Resolve(g.Targets, fractions, g.Parallel)
	if err != nil {
		return nil, err
	}

	seg := Segment{Length: asset.Duration}
	for i, t := range asset.Targets {
		c := s.Channel(t, 0)
		if c >= len(g.Frequency) {
			return nil, newError(KindShape, op, "target channel outside parameter vectors").
				with("target", t).with("channel", c).with("channels", len(g.Frequency))
		}
		seg.Drives = append(seg.Drives, Drive{
			Channel:     c,
			Envelope:    g.Envelope,
			Amplitude:   s.gen.opts.OCScale,
			Frequency:   g.Frequency[c],
			Phase:       phases[i],
			PulseLength: asset.Duration,
			Asset:       asset,
		})
	}
	slices.SortFunc(seg.Drives, func(a, b Drive) int { return a.Channel - b.Channel })
	return []Segment{seg}, nil
}

// sub builds a bare sub-rotation of g with per-active-channel values.
func (g *gate) sub(fraction, phase []float64) Rotation {
	return Rotation{
		Phase:     PerChannel(phase...),
		Targets:   g.Targets,
		Fraction:  PerChannel(fraction...),
		Amplitude: g.Amplitude,
		Frequency: g.Frequency,
		Period:    g.Period,
		Idle:      g.Idle,
		Envelope:  g.Envelope,
		Composite: Bare,
	}
}

func mapSlice(xs []float64, f func(i int, x float64) float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = f(i, x)
	}
	return out
}
