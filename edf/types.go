// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes multichannel sampled signals in the European
// Data Format. Record durations are kept as fractional seconds so nanosecond
// waveform traces can be stored.
package edf

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Version string

// Version0 is the only version defined by EDF and EDF+.
const Version0 Version = "0"

const (
	fixedHeaderBytes  = 256
	signalHeaderBytes = 256
	// Largest data record recommended by the standard.
	maxRecordBytes = 61440
)

// Header describes a file and its signals.
type Header struct {
	Version     Version
	Subject     string // Local subject identification
	RecordingID string
	StartTime   time.Time
	HeaderBytes int // Set when writing
	// Records is the number of data records, -1 while the file is written.
	Records        int
	RecordDuration float64 // Seconds
	Signals        []Signal
}

// Signal describes one channel.
type Signal struct {
	Label            string
	Transducer       string
	Unit             string
	PhysicalMin      float64
	PhysicalMax      float64
	DigitalMin       int
	DigitalMax       int
	Prefiltering     string
	SamplesPerRecord int
}

// recordBytes is the size of one data record.
func (h *Header) recordBytes() int {
	var n int
	for _, s := range h.Signals {
		n += 2 * s.SamplesPerRecord
	}
	return n
}

// signalColumn is one per-signal header field. Fields are stored column by
// column: every signal's label, then every signal's transducer and so on.
type signalColumn struct {
	name  string
	width int
	get   func(s *Signal) string
	set   func(s *Signal, v string) error
}

var signalColumns = []signalColumn{
	{"label", 16, func(s *Signal) string { return s.Label }, func(s *Signal, v string) error { s.Label = v; return nil }},
	{"transducer", 80, func(s *Signal) string { return s.Transducer }, func(s *Signal, v string) error { s.Transducer = v; return nil }},
	{"unit", 8, func(s *Signal) string { return s.Unit }, func(s *Signal, v string) error { s.Unit = v; return nil }},
	{"physical minimum", 8, func(s *Signal) string { return formatNumber(s.PhysicalMin, 8) }, parseFloatInto(func(s *Signal) *float64 { return &s.PhysicalMin })},
	{"physical maximum", 8, func(s *Signal) string { return formatNumber(s.PhysicalMax, 8) }, parseFloatInto(func(s *Signal) *float64 { return &s.PhysicalMax })},
	{"digital minimum", 8, func(s *Signal) string { return strconv.Itoa(s.DigitalMin) }, parseIntInto(func(s *Signal) *int { return &s.DigitalMin })},
	{"digital maximum", 8, func(s *Signal) string { return strconv.Itoa(s.DigitalMax) }, parseIntInto(func(s *Signal) *int { return &s.DigitalMax })},
	{"prefiltering", 80, func(s *Signal) string { return s.Prefiltering }, func(s *Signal, v string) error { s.Prefiltering = v; return nil }},
	{"samples per record", 8, func(s *Signal) string { return strconv.Itoa(s.SamplesPerRecord) }, parseIntInto(func(s *Signal) *int { return &s.SamplesPerRecord })},
	{"reserved", 32, func(*Signal) string { return "" }, func(*Signal, string) error { return nil }},
}

func parseFloatInto(field func(s *Signal) *float64) func(s *Signal, v string) error {
	return func(s *Signal, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(s) = f
		return nil
	}
}

func parseIntInto(field func(s *Signal) *int) func(s *Signal, v string) error {
	return func(s *Signal, v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(s) = i
		return nil
	}
}

// formatNumber renders v in at most width characters, dropping precision as
// needed.
func formatNumber(v float64, width int) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	for prec := width; len(s) > width && prec > 0; prec-- {
		s = strconv.FormatFloat(v, 'g', prec, 64)
	}
	return s
}

// pad left-aligns s in a field of width bytes, truncating if needed.
func pad(sb *strings.Builder, s string, width int) {
	if len(s) > width {
		s = s[:width]
	}
	sb.WriteString(s)
	sb.WriteString(strings.Repeat(" ", width-len(s)))
}

func physicalToDigital(v float64, s *Signal) int16 {
	if s.PhysicalMax == s.PhysicalMin {
		return 0
	}
	d := (v-s.PhysicalMin)*float64(s.DigitalMax-s.DigitalMin)/(s.PhysicalMax-s.PhysicalMin) + float64(s.DigitalMin)
	d = math.Round(d)
	d = math.Max(d, float64(s.DigitalMin))
	d = math.Min(d, float64(s.DigitalMax))
	return int16(d)
}

func digitalToPhysical(d int16, s *Signal) float64 {
	if s.DigitalMax == s.DigitalMin {
		return 0
	}
	return s.PhysicalMin + (float64(d)-float64(s.DigitalMin))*(s.PhysicalMax-s.PhysicalMin)/float64(s.DigitalMax-s.DigitalMin)
}

func (s *Signal) validate() error {
	if s.DigitalMin < math.MinInt16 || s.DigitalMax > math.MaxInt16 || s.DigitalMin >= s.DigitalMax {
		return fmt.Errorf("signal %q: invalid digital range [%d, %d]", s.Label, s.DigitalMin, s.DigitalMax)
	}
	if s.SamplesPerRecord <= 0 {
		return fmt.Errorf("signal %q: no samples per record", s.Label)
	}
	return nil
}
