// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package render samples generated blocks into baseband traces for
// inspection and exports them as EDF files.
package render

import (
	"fmt"
	"math"

	"github.com/OpenPSG/pulsed"
)

// MaxSamples bounds the length of a single trace.
const MaxSamples = 1 << 26

// Channel is the baseband waveform of one output channel.
type Channel struct {
	Index int
	I     []float64
	Q     []float64
}

// Trace is a block sampled at a fixed rate.
type Trace struct {
	Name       string
	Step       int
	SampleRate float64 // Hz
	Channels   []Channel
	Markers    []pulsed.Marker
}

// Len returns the number of samples.
func (tr *Trace) Len() int { return len(tr.Markers) }

// Duration returns the sampled duration in seconds.
func (tr *Trace) Duration() float64 { return float64(tr.Len()) / tr.SampleRate }

// Sample renders block b at the given sweep step. Each sample takes the value
// at the centre of its interval, so segments shorter than one sample period
// may not show up.
func Sample(b *pulsed.Block, step, channels int, rate float64) (*Trace, error) {
	if b == nil {
		return nil, fmt.Errorf("nil block")
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("invalid sample rate %g", rate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if step < 0 {
		return nil, fmt.Errorf("invalid sweep step %d", step)
	}

	length := b.Length(step)
	n := int(math.Round(length * rate))
	if n > MaxSamples {
		return nil, fmt.Errorf("trace too long: %d samples, max is %d", n, MaxSamples)
	}

	tr := &Trace{
		Name:       b.Name,
		Step:       step,
		SampleRate: rate,
		Channels:   make([]Channel, channels),
		Markers:    make([]pulsed.Marker, n),
	}
	for c := range tr.Channels {
		tr.Channels[c] = Channel{Index: c, I: make([]float64, n), Q: make([]float64, n)}
	}

	var start float64
	k := 0
	for si, seg := range b.Segments {
		l := seg.Length + float64(step)*seg.Increment
		end := start + l
		for _, d := range seg.Drives {
			if d.Channel < 0 || d.Channel >= channels {
				return nil, fmt.Errorf("segment %d drives channel %d, only %d channels", si, d.Channel, channels)
			}
		}

		for ; k < n; k++ {
			t := (float64(k) + 0.5) / rate
			if t >= end {
				break
			}
			tr.Markers[k] = seg.Markers
			for _, d := range seg.Drives {
				amp, phase := drive(d, t-start, l, step, seg.Increment)
				tr.Channels[d.Channel].I[k] += amp * math.Cos(phase)
				tr.Channels[d.Channel].Q[k] += amp * math.Sin(phase)
			}
		}
		start = end
	}

	return tr, nil
}

// drive returns the envelope amplitude and phase in radians of d at local time
// t into a segment of length l.
func drive(d pulsed.Drive, t, l float64, step int, increment float64) (amp, phase float64) {
	phase = d.Phase * math.Pi / 180

	if d.Asset != nil {
		at := d.Offset + t
		amp = d.Amplitude * d.Asset.I.At(at)
		phase += d.Asset.Q.At(at) * math.Pi / 180
		return amp, phase
	}

	pulse := d.PulseLength + float64(step)*increment
	if pulse <= 0 {
		pulse = l
	}
	x := 0.0
	if pulse > 0 {
		x = math.Min((d.Offset+t)/pulse, 1)
	}
	return d.Amplitude * d.Envelope.Shape(x), phase
}
