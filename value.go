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

// Value is either a single scalar applied to every non-idle channel or one
// value per non-idle channel.
type Value struct {
	scalar     float64
	perChannel []float64
	isList     bool
}

// Scalar returns a Value that broadcasts v to every channel.
func Scalar(v float64) Value {
	return Value{scalar: v}
}

// PerChannel returns a Value with one entry per non-idle channel.
func PerChannel(vs ...float64) Value {
	cp := make([]float64, len(vs))
	copy(cp, vs)
	return Value{perChannel: cp, isList: true}
}

// IsScalar reports whether v broadcasts.
func (v Value) IsScalar() bool { return !v.isList }

// Len is the number of entries of a per-channel value, or 1 for scalars.
func (v Value) Len() int {
	if v.isList {
		return len(v.perChannel)
	}
	return 1
}

// Broadcast expands v to n entries.
func (v Value) Broadcast(n int) ([]float64, error) {
	out := make([]float64, n)
	if !v.isList {
		for i := range out {
			out[i] = v.scalar
		}
		return out, nil
	}
	if len(v.perChannel) != n {
		return nil, fmt.Errorf("%d per-channel values for %d channels", len(v.perChannel), n)
	}
	copy(out, v.perChannel)
	return out, nil
}

// Map applies f to every entry.
func (v Value) Map(f func(float64) float64) Value {
	if !v.isList {
		return Scalar(f(v.scalar))
	}
	out := make([]float64, len(v.perChannel))
	for i, x := range v.perChannel {
		out[i] = f(x)
	}
	return Value{perChannel: out, isList: true}
}

// Max returns the largest entry.
func (v Value) Max() float64 {
	if !v.isList {
		return v.scalar
	}
	var m float64
	for i, x := range v.perChannel {
		if i == 0 || x > m {
			m = x
		}
	}
	return m
}

// MaxAbs returns the largest magnitude.
func (v Value) MaxAbs() float64 {
	if !v.isList {
		return math.Abs(v.scalar)
	}
	var m float64
	for _, x := range v.perChannel {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func (v Value) String() string {
	if !v.isList {
		return fmt.Sprintf("%g", v.scalar)
	}
	return fmt.Sprintf("%v", v.perChannel)
}
