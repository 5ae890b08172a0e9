// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package predefined

import (
	"github.com/OpenPSG/pulsed"
)

var (
	tauUnits  = [2]string{"s", ""}
	tauLabels = [2]string{"Tau", "Signal"}
)

// Rabi sweeps the length of a microwave pulse on the targets.
func Rabi(g *pulsed.Generator, p Params) (*pulsed.Ensemble, error) {
	p, err := p.withDefaults("rabi", 1, g.Options())
	if err != nil {
		return nil, err
	}
	p.Alternating = false

	s, err := g.Begin()
	if err != nil {
		return nil, err
	}

	r, err := s.Pi(1, 0, p.Targets...)
	if err != nil {
		return nil, err
	}
	var reqs []pulsed.ChannelRequest
	for c, a := range r.Amplitude {
		if a == 0 {
			continue
		}
		reqs = append(reqs, pulsed.ChannelRequest{
			Channel:   c,
			Length:    p.Start,
			Increment: p.Step,
			Amplitude: a,
			Frequency: r.Frequency[c],
			Envelope:  r.Envelope,
		})
	}

	b := newBlockBuilder(s, p.Name)
	b.addErr(pulsed.Partition(reqs))
	b.readout()
	return b.ensemble(p, tauUnits, [2]string{"Tau<sub>pulse</sub>", "Signal"})
}

// Ramsey sweeps the free evolution between two π/2 pulses.
func Ramsey(g *pulsed.Generator, p Params) (*pulsed.Ensemble, error) {
	p, err := p.withDefaults("ramsey", 1, g.Options())
	if err != nil {
		return nil, err
	}
	if err := checkDelay(p); err != nil {
		return nil, err
	}

	s, err := g.Begin()
	if err != nil {
		return nil, err
	}

	b := newBlockBuilder(s, p.Name)
	shot := func(final float64) {
		b.rotate(p.Composite, 0.5, 0, p.Targets...)
		if seg, ok := pulsed.Idle(p.Start, p.Step); ok {
			b.add(seg)
		}
		b.rotate(p.Composite, 0.5, final, p.Targets...)
		b.readout()
	}
	shot(0)
	if p.Alternating {
		shot(180)
	}
	return b.ensemble(p, tauUnits, tauLabels)
}

// HahnEcho refocuses the free evolution with a π pulse in its middle. Tau is
// the spacing between the π/2 and π pulse centres.
func HahnEcho(g *pulsed.Generator, p Params) (*pulsed.Ensemble, error) {
	p, err := p.withDefaults("hahn_echo", 1, g.Options())
	if err != nil {
		return nil, err
	}

	s, err := g.Begin()
	if err != nil {
		return nil, err
	}
	echo, err := g.DDTable().Lookup("se")
	if err != nil {
		return nil, err
	}
	pi, err := piLeg(s, p.Targets...)
	if err != nil {
		return nil, err
	}

	x := pulsed.Expansion{
		Descriptor:   echo,
		Order:        1,
		Tau:          2 * p.Start,
		TauIncrement: 2 * p.Step,
		A:            pi,
	}
	if err := checkSweep(s, x, p.Name, p.Points); err != nil {
		return nil, err
	}

	b := newBlockBuilder(s, p.Name)
	shot := func(final float64) {
		b.rotate(p.Composite, 0.5, 0, p.Targets...)
		b.addErr(s.Expand(x))
		b.rotate(p.Composite, 0.5, final, p.Targets...)
		b.readout()
	}
	shot(0)
	if p.Alternating {
		shot(180)
	}
	return b.ensemble(p, tauUnits, tauLabels)
}
