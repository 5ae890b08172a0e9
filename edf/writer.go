// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Writer writes EDF files record by record.
type Writer struct {
	w       io.WriteSeeker
	hdr     Header
	records int
}

// Create writes a provisional header to w. The record count is filled in by
// Close.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if hdr.Version == "" {
		hdr.Version = Version0
	}
	if len(hdr.Signals) == 0 {
		return nil, fmt.Errorf("no signals")
	}
	if hdr.RecordDuration <= 0 {
		return nil, fmt.Errorf("record duration must be positive, got %g", hdr.RecordDuration)
	}
	for i := range hdr.Signals {
		if err := hdr.Signals[i].validate(); err != nil {
			return nil, err
		}
	}
	if n := hdr.recordBytes(); n > maxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", n, maxRecordBytes)
	}
	hdr.Signals = append([]Signal(nil), hdr.Signals...)
	hdr.Records = -1
	hdr.HeaderBytes = fixedHeaderBytes + len(hdr.Signals)*signalHeaderBytes

	ew := &Writer{w: w, hdr: hdr}
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}
	return ew, nil
}

// Header returns the header as it will be written.
func (ew *Writer) Header() Header {
	return ew.hdr
}

// WriteRecord writes one data record holding SamplesPerRecord physical
// values per signal. Values outside the physical range are clipped.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != len(ew.hdr.Signals) {
		return fmt.Errorf("expected %d signals, got %d", len(ew.hdr.Signals), len(signals))
	}
	for i, samples := range signals {
		if want := ew.hdr.Signals[i].SamplesPerRecord; len(samples) != want {
			return fmt.Errorf("signal %q: expected %d samples, got %d", ew.hdr.Signals[i].Label, want, len(samples))
		}
	}

	if _, err := ew.w.Seek(int64(ew.hdr.HeaderBytes)+int64(ew.records)*int64(ew.hdr.recordBytes()), io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to record %d: %w", ew.records, err)
	}

	bw := bufio.NewWriter(ew.w)
	buf := make([]byte, 2)
	for i, samples := range signals {
		sig := &ew.hdr.Signals[i]
		for _, v := range samples {
			binary.LittleEndian.PutUint16(buf, uint16(physicalToDigital(v, sig)))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	ew.records++
	return nil
}

// Close rewrites the header with the final record count. It does not close
// the underlying writer.
func (ew *Writer) Close() error {
	ew.hdr.Records = ew.records
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	return nil
}

func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	var sb strings.Builder
	sb.Grow(ew.hdr.HeaderBytes)

	pad(&sb, string(ew.hdr.Version), 8)
	pad(&sb, ew.hdr.Subject, 80)
	pad(&sb, ew.hdr.RecordingID, 80)
	pad(&sb, ew.hdr.StartTime.Format("02.01.06"), 8)
	pad(&sb, ew.hdr.StartTime.Format("15.04.05"), 8)
	pad(&sb, strconv.Itoa(ew.hdr.HeaderBytes), 8)
	pad(&sb, "", 44)
	pad(&sb, strconv.Itoa(ew.hdr.Records), 8)
	pad(&sb, formatNumber(ew.hdr.RecordDuration, 8), 8)
	pad(&sb, strconv.Itoa(len(ew.hdr.Signals)), 4)

	for _, col := range signalColumns {
		for i := range ew.hdr.Signals {
			pad(&sb, col.get(&ew.hdr.Signals[i]), col.width)
		}
	}

	_, err := io.WriteString(ew.w, sb.String())
	return err
}
