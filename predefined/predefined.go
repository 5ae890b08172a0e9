// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package predefined generates common NV-center measurements from the
// engine's primitives.
package predefined

import (
	"fmt"
	"sort"

	"github.com/OpenPSG/pulsed"
)

// Params are the sweep settings shared by every method.
type Params struct {
	Name string
	// Targets defaults to the first target. Two-target methods use the first
	// entry as sensor and the second as partner.
	Targets []int
	Start   float64 // First swept value in seconds
	Step    float64
	Points  int
	// Alternating adds a reference shot with the final projection inverted.
	Alternating bool
	// Composite realises the π/2 and π pulses outside decoupling sequences.
	Composite pulsed.Composite
	// Family and Order select the decoupling sequence. Defaults come from the
	// generator options.
	Family string
	Order  int
}

// Method generates one ensemble.
type Method func(g *pulsed.Generator, p Params) (*pulsed.Ensemble, error)

var methods = map[string]Method{
	"rabi":      Rabi,
	"ramsey":    Ramsey,
	"hahn_echo": HahnEcho,
	"dd_tau":    DDTau,
	"deer":      DEER,
}

// Lookup returns the named method.
func Lookup(name string) (Method, error) {
	m, ok := methods[name]
	if !ok {
		return nil, fmt.Errorf("unknown method %q, known methods: %v", name, Names())
	}
	return m, nil
}

// Names returns the sorted method names.
func Names() []string {
	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p Params) withDefaults(name string, targets int, opts pulsed.Options) (Params, error) {
	if p.Name == "" {
		p.Name = name
	}
	if len(p.Targets) == 0 {
		for i := 0; i < targets; i++ {
			p.Targets = append(p.Targets, i)
		}
	}
	if len(p.Targets) < targets {
		return p, fmt.Errorf("%s needs %d targets, got %v", name, targets, p.Targets)
	}
	if p.Points < 1 {
		return p, fmt.Errorf("%s needs at least one point, got %d", name, p.Points)
	}
	if p.Family == "" {
		p.Family = opts.Decoupling.Family
	}
	if p.Order <= 0 {
		p.Order = opts.Decoupling.Order
	}
	return p, nil
}

// sweep returns the controlled variable of p.
func (p Params) sweep() []float64 {
	out := make([]float64, p.Points)
	for i := range out {
		out[i] = p.Start + float64(i)*p.Step
	}
	return out
}

func (p Params) readouts() int {
	if p.Alternating {
		return 2 * p.Points
	}
	return p.Points
}

// blockBuilder appends to a block until the first error.
type blockBuilder struct {
	s     *pulsed.Session
	block *pulsed.Block
	err   error
}

func newBlockBuilder(s *pulsed.Session, name string) *blockBuilder {
	return &blockBuilder{s: s, block: pulsed.NewBlock(name)}
}

func (b *blockBuilder) add(segs ...pulsed.Segment) {
	if b.err == nil {
		b.block.Append(segs...)
	}
}

func (b *blockBuilder) addErr(segs []pulsed.Segment, err error) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = err
		return
	}
	b.block.Append(segs...)
}

// rotate appends a rotation of the primary transition of targets.
func (b *blockBuilder) rotate(c pulsed.Composite, fraction, phase float64, targets ...int) {
	if b.err != nil {
		return
	}
	r, err := b.s.Pi(fraction, phase, targets...)
	if err != nil {
		b.err = err
		return
	}
	r.Composite = c
	b.addErr(b.s.Rotate(r))
}

func (b *blockBuilder) readout() {
	b.add(b.s.Readout()...)
}

func (b *blockBuilder) ensemble(p Params, units, labels [2]string) (*pulsed.Ensemble, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error generating %s: %w", p.Name, b.err)
	}
	return pulsed.NewEnsemble(p.Name, []pulsed.BlockRun{{Block: b.block, Count: p.Points}}, pulsed.MeasurementInfo{
		ControlledVariable: p.sweep(),
		Units:              units,
		Labels:             labels,
		Alternating:        p.Alternating,
		ReadoutCount:       p.readouts(),
	})
}

// piLeg returns decoupling π pulses on the primary transition of targets.
func piLeg(s *pulsed.Session, targets ...int) (pulsed.Leg, error) {
	r, err := s.Pi(1, 0, targets...)
	if err != nil {
		return pulsed.Leg{}, err
	}
	return pulsed.Leg{
		Targets:  r.Targets,
		Fraction: r.Fraction,
		Phase:    r.Phase,
		Cycle:    true,
		Params:   pulsed.Params{Amplitude: r.Amplitude, Frequency: r.Frequency, Period: r.Period},
		Idle:     pulsed.IdleDrop,
		Envelope: r.Envelope,
	}, nil
}
