// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package pulsed composes quantum-control operations on NV centers into flat,
// ordered lists of fixed-duration multi-channel waveform segments.
package pulsed

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// LengthEpsilon is the length given to a zero-length segment that still
	// carries a sweep increment.
	LengthEpsilon = 1e-15
	// RoundingEpsilon is the largest negative duration (in seconds) treated as
	// arithmetic rounding and clamped to zero.
	RoundingEpsilon = 1e-13
)

// EnvelopeKind is the shape of a channel's amplitude over one pulse.
type EnvelopeKind int

const (
	Rectangle EnvelopeKind = iota
	Parabola
	SinN
	Optimal
)

func (k EnvelopeKind) String() string {
	switch k {
	case Rectangle:
		return "rectangle"
	case Parabola:
		return "parabola"
	case SinN:
		return "sin^n"
	case Optimal:
		return "optimal"
	default:
		return fmt.Sprintf("envelope(%d)", int(k))
	}
}

// Envelope describes a pulse shape. Order is the exponent of SinN envelopes.
type Envelope struct {
	Kind  EnvelopeKind
	Order int
}

func (e Envelope) String() string {
	if e.Kind == SinN {
		return fmt.Sprintf("sin^%d", e.Order)
	}
	return e.Kind.String()
}

// ParseEnvelope parses "rectangle", "parabola", "optimal" or "sin^n".
func ParseEnvelope(s string) (Envelope, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "rectangle":
		return Envelope{Kind: Rectangle}, nil
	case "parabola":
		return Envelope{Kind: Parabola}, nil
	case "optimal":
		return Envelope{Kind: Optimal}, nil
	}
	if rest, ok := strings.CutPrefix(s, "sin^"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Envelope{}, fmt.Errorf("invalid sin^n order %q", rest)
		}
		return Envelope{Kind: SinN, Order: n}, nil
	}
	return Envelope{}, fmt.Errorf("unknown envelope %q", s)
}

// Shape returns the envelope value at the relative position x ∈ [0, 1] of a
// pulse. Optimal envelopes are sampled from their asset instead.
func (e Envelope) Shape(x float64) float64 {
	if x < 0 || x > 1 {
		return 0
	}
	switch e.Kind {
	case Parabola:
		return 4 * x * (1 - x)
	case SinN:
		n := e.Order
		if n <= 0 {
			n = 1
		}
		return math.Pow(math.Sin(math.Pi*x), float64(n))
	default:
		return 1
	}
}

// Marker is a set of digital flags attached to a segment.
type Marker uint8

const (
	MarkerLaser   Marker = 1 << iota // Readout window open
	MarkerGate                       // Photon counter gate
	MarkerTrigger                    // Sync trigger
)

// Has reports whether all flags in m are set.
func (mk Marker) Has(m Marker) bool { return mk&m == m }

// Drive is one active channel inside a segment.
type Drive struct {
	Channel   int
	Envelope  Envelope
	Amplitude float64
	Frequency float64 // Hz
	Phase     float64 // Degrees
	// Offset is the position of this segment inside the channel's whole pulse
	// and PulseLength the length of that pulse, so shaped envelopes that span
	// several segments stay continuous.
	Offset      float64
	PulseLength float64
	// Asset is set for optimal-control drives.
	Asset *Asset
}

// Segment is the atomic unit of a generated program.
type Segment struct {
	Length    float64 // Seconds
	Increment float64 // Length added per sweep repetition
	Drives    []Drive
	Markers   Marker
}

// IsIdle reports whether no channel is driven during the segment.
func (s Segment) IsIdle() bool { return len(s.Drives) == 0 }

// Drive returns the drive on channel ch, if any.
func (s Segment) Drive(ch int) (Drive, bool) {
	for _, d := range s.Drives {
		if d.Channel == ch {
			return d, true
		}
	}
	return Drive{}, false
}

// TotalLength returns the summed length of segs at the given sweep step.
func TotalLength(segs []Segment, step int) float64 {
	var total float64
	for _, s := range segs {
		total += s.Length + float64(step)*s.Increment
	}
	return total
}

// Block is one full shot of an experiment.
type Block struct {
	Name     string
	Segments []Segment
}

// NewBlock creates an empty block.
func NewBlock(name string) *Block {
	return &Block{Name: name}
}

// Append adds segments to the end of the block.
func (b *Block) Append(segs ...Segment) *Block {
	b.Segments = append(b.Segments, segs...)
	return b
}

// Readouts returns the number of readout windows in one play of the block.
func (b *Block) Readouts() int {
	var n int
	for _, s := range b.Segments {
		if s.Markers.Has(MarkerLaser) {
			n++
		}
	}
	return n
}

// Length returns the block duration at the given sweep step.
func (b *Block) Length(step int) float64 {
	return TotalLength(b.Segments, step)
}
