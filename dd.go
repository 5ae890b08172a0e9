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
	"sort"
)

// Step is one sub-pulse of a decoupling family.
type Step struct {
	Phase          float64 `yaml:"phase"` // Degrees
	AmplitudeScale float64 `yaml:"amplitude_scale"`
}

// Descriptor is a dynamical-decoupling or composite family: the suborder is
// repeated Order times.
type Descriptor struct {
	Name     string `yaml:"name"`
	Suborder []Step `yaml:"suborder"`
	Order    int    `yaml:"order"`
}

// Pulses returns the number of π pulses for the given order.
func (d Descriptor) Pulses(order int) int {
	return order * len(d.Suborder)
}

// step returns the sub-pulse played at global index i.
func (d Descriptor) step(i int) Step {
	s := d.Suborder[i%len(d.Suborder)]
	if s.AmplitudeScale == 0 {
		s.AmplitudeScale = 1
	}
	return s
}

// DDTable maps family names to descriptors.
type DDTable map[string]Descriptor

// Lookup returns the named family.
func (t DDTable) Lookup(name string) (Descriptor, error) {
	d, ok := t[name]
	if !ok {
		return Descriptor{}, newError(KindUnsupported, "Lookup", "unknown decoupling family").
			with("family", name).with("known", t.Names())
	}
	return d, nil
}

// Names returns the sorted family names.
func (t DDTable) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of t extended (or overridden) by extra.
func (t DDTable) With(extra ...Descriptor) (DDTable, error) {
	out := make(DDTable, len(t)+len(extra))
	for k, v := range t {
		out[k] = v
	}
	for _, d := range extra {
		if d.Name == "" || len(d.Suborder) == 0 {
			return nil, fmt.Errorf("decoupling family %q has no name or no steps", d.Name)
		}
		if d.Order <= 0 {
			d.Order = 1
		}
		out[d.Name] = d
	}
	return out, nil
}

func phases(ps ...float64) []Step {
	steps := make([]Step, len(ps))
	for i, p := range ps {
		steps[i] = Step{Phase: p, AmplitudeScale: 1}
	}
	return steps
}

func knill() []Step {
	var ps []float64
	for _, base := range []float64{0, 90, 0, 90} {
		for _, p := range []float64{30, 0, 90, 0, 30} {
			ps = append(ps, base+p)
		}
	}
	return phases(ps...)
}

// DefaultDDTable returns the built-in decoupling families.
func DefaultDDTable() DDTable {
	xy8 := []float64{0, 90, 0, 90, 90, 0, 90, 0}
	xy16 := append(append([]float64{}, xy8...), 180, 270, 180, 270, 270, 180, 270, 180)
	return DDTable{
		"se":   {Name: "se", Suborder: phases(0), Order: 1},
		"se_y": {Name: "se_y", Suborder: phases(90), Order: 1},
		"cpmg": {Name: "cpmg", Suborder: phases(90, 90), Order: 1},
		"xy4":  {Name: "xy4", Suborder: phases(0, 90, 0, 90), Order: 1},
		"xy8":  {Name: "xy8", Suborder: phases(xy8...), Order: 1},
		"xy16": {Name: "xy16", Suborder: phases(xy16...), Order: 1},
		"yy8":  {Name: "yy8", Suborder: phases(90, 270, 90, 270, 270, 90, 270, 90), Order: 1},
		"kdd":  {Name: "kdd", Suborder: knill(), Order: 1},
	}
}
