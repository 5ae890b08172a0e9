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

// DDTau sweeps the pulse spacing of a dynamical-decoupling sequence between
// two π/2 pulses.
func DDTau(g *pulsed.Generator, p Params) (*pulsed.Ensemble, error) {
	p, err := p.withDefaults("dd_tau", 1, g.Options())
	if err != nil {
		return nil, err
	}

	s, err := g.Begin()
	if err != nil {
		return nil, err
	}
	desc, err := g.DDTable().Lookup(p.Family)
	if err != nil {
		return nil, err
	}
	pi, err := piLeg(s, p.Targets...)
	if err != nil {
		return nil, err
	}

	x := pulsed.Expansion{
		Descriptor:   desc,
		Order:        p.Order,
		Tau:          p.Start,
		TauIncrement: p.Step,
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
	return b.ensemble(p, tauUnits, [2]string{"Tau<sub>pulse spacing</sub>", "Signal"})
}

// DEER runs a decoupling sequence on the sensor with π pulses on the partner
// played half a spacing after each sensor pulse. The partner's final π pulse
// is placed so its centre falls on the sequence clock.
func DEER(g *pulsed.Generator, p Params) (*pulsed.Ensemble, error) {
	p, err := p.withDefaults("deer", 2, g.Options())
	if err != nil {
		return nil, err
	}
	sensor, partner := p.Targets[0], p.Targets[1]

	s, err := g.Begin()
	if err != nil {
		return nil, err
	}
	desc, err := g.DDTable().Lookup(p.Family)
	if err != nil {
		return nil, err
	}
	a, err := piLeg(s, sensor)
	if err != nil {
		return nil, err
	}
	bLeg, err := piLeg(s, partner)
	if err != nil {
		return nil, err
	}

	x := pulsed.Expansion{
		Descriptor:   desc,
		Order:        p.Order,
		Tau:          p.Start,
		TauIncrement: p.Step,
		A:            a,
		B:            &bLeg,
		FloatingLast: true,
	}
	if err := checkSweep(s, x, p.Name, p.Points); err != nil {
		return nil, err
	}
	last := desc.Suborder[(desc.Pulses(p.Order)-1)%len(desc.Suborder)]

	b := newBlockBuilder(s, p.Name)
	shot := func(final float64) {
		b.rotate(p.Composite, 0.5, 0, sensor)
		b.addErr(s.Expand(x))
		b.rotate(pulsed.Bare, 1, last.Phase, partner)
		b.rotate(p.Composite, 0.5, final, sensor)
		b.readout()
	}
	shot(0)
	if p.Alternating {
		shot(180)
	}
	return b.ensemble(p, tauUnits, [2]string{"Tau<sub>pulse spacing</sub>", "Signal"})
}

// checkSweep rejects sweeps whose last point is shorter than the pulses allow.
// The first point is checked by Expand itself.
func checkSweep(s *pulsed.Session, x pulsed.Expansion, name string, points int) error {
	if x.TauIncrement >= 0 {
		return nil
	}
	minTau, err := s.MinTau(x)
	if err != nil {
		return err
	}
	if end := x.Tau + float64(points-1)*x.TauIncrement; end < minTau-pulsed.RoundingEpsilon {
		return &pulsed.Error{
			Kind:    pulsed.KindTiming,
			Op:      name,
			Message: "sweep ends below the minimum pulse spacing",
			Params: []pulsed.Param{
				{Name: "tau", Value: end},
				{Name: "min_tau", Value: minTau},
				{Name: "order", Value: x.Order},
			},
		}
	}
	return nil
}

// checkDelay rejects free evolutions that are negative at either end of the
// sweep.
func checkDelay(p Params) error {
	for _, tau := range []float64{p.Start, p.Start + float64(p.Points-1)*p.Step} {
		if tau < -pulsed.RoundingEpsilon {
			return &pulsed.Error{
				Kind:    pulsed.KindTiming,
				Op:      p.Name,
				Message: "negative free evolution",
				Params: []pulsed.Param{
					{Name: "tau", Value: tau},
					{Name: "start", Value: p.Start},
					{Name: "step", Value: p.Step},
					{Name: "points", Value: p.Points},
				},
			}
		}
	}
	return nil
}
