// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package render

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/OpenPSG/pulsed"
	"github.com/OpenPSG/pulsed/edf"
)

// Largest data record written, in bytes.
const maxRecordBytes = 61440

// Markers exported as EDF signals, in order.
var markerSignals = []struct {
	label  string
	marker pulsed.Marker
}{
	{"laser", pulsed.MarkerLaser},
	{"gate", pulsed.MarkerGate},
	{"trigger", pulsed.MarkerTrigger},
}

// EDFOptions describe the exported file.
type EDFOptions struct {
	Subject   string
	StartTime time.Time
	// RecordSamples is the number of samples per data record. Zero picks the
	// largest record the format allows.
	RecordSamples int
}

// Signals returns the EDF signal layout of tr: an I and a Q signal per
// channel followed by one signal per marker.
func Signals(tr *Trace, recordSamples int) []edf.Signal {
	peak := 1.0
	for _, c := range tr.Channels {
		for k := range c.I {
			peak = math.Max(peak, math.Max(math.Abs(c.I[k]), math.Abs(c.Q[k])))
		}
	}

	analog := func(label string) edf.Signal {
		return edf.Signal{
			Label:            label,
			Transducer:       "baseband",
			PhysicalMin:      -peak,
			PhysicalMax:      peak,
			DigitalMin:       math.MinInt16 + 1,
			DigitalMax:       math.MaxInt16,
			SamplesPerRecord: recordSamples,
		}
	}

	signals := make([]edf.Signal, 0, 2*len(tr.Channels)+len(markerSignals))
	for _, c := range tr.Channels {
		signals = append(signals, analog(fmt.Sprintf("I%d", c.Index)), analog(fmt.Sprintf("Q%d", c.Index)))
	}
	for _, m := range markerSignals {
		signals = append(signals, edf.Signal{
			Label:            m.label,
			Transducer:       "marker",
			PhysicalMin:      0,
			PhysicalMax:      1,
			DigitalMin:       0,
			DigitalMax:       1,
			SamplesPerRecord: recordSamples,
		})
	}
	return signals
}

// WriteEDF writes tr to w. The last record is padded with zeros.
func WriteEDF(w io.WriteSeeker, tr *Trace, opts EDFOptions) error {
	if tr.Len() == 0 {
		return fmt.Errorf("empty trace")
	}

	nSignals := 2*len(tr.Channels) + len(markerSignals)
	perRecord := opts.RecordSamples
	if perRecord <= 0 {
		perRecord = min(tr.Len(), maxRecordBytes/(2*nSignals))
	}

	ew, err := edf.Create(w, edf.Header{
		Subject:        opts.Subject,
		RecordingID:    fmt.Sprintf("%s step %d", tr.Name, tr.Step),
		StartTime:      opts.StartTime,
		RecordDuration: float64(perRecord) / tr.SampleRate,
		Signals:        Signals(tr, perRecord),
	})
	if err != nil {
		return err
	}

	window := func(src []float64, from int) []float64 {
		out := make([]float64, perRecord)
		if from < len(src) {
			copy(out, src[from:])
		}
		return out
	}

	for from := 0; from < tr.Len(); from += perRecord {
		record := make([][]float64, 0, nSignals)
		for _, c := range tr.Channels {
			record = append(record, window(c.I, from), window(c.Q, from))
		}
		for _, m := range markerSignals {
			values := make([]float64, perRecord)
			for k := range values {
				if from+k < tr.Len() && tr.Markers[from+k].Has(m.marker) {
					values[k] = 1
				}
			}
			record = append(record, values)
		}
		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("error writing record at sample %d: %w", from, err)
		}
	}

	return ew.Close()
}
