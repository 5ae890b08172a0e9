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
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Reader reads EDF files.
type Reader struct {
	r   io.ReadSeeker
	hdr Header
}

// Open parses the header of an EDF file.
func Open(r io.ReadSeeker) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	b := make([]byte, fixedHeaderBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	field := func(from, to int) string {
		return strings.TrimSpace(string(b[from:to]))
	}

	hdr := Header{
		Version:     Version(field(0, 8)),
		Subject:     field(8, 88),
		RecordingID: field(88, 168),
	}

	start, err := time.Parse("02.01.06 15.04.05", field(168, 176)+" "+field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = start

	ints := []struct {
		name     string
		from, to int
		dst      *int
	}{
		{"header bytes", 184, 192, &hdr.HeaderBytes},
		{"number of data records", 236, 244, &hdr.Records},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(field(f.from, f.to)); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", f.name, err)
		}
	}
	if hdr.RecordDuration, err = strconv.ParseFloat(field(244, 252), 64); err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	n, err := strconv.Atoi(field(252, 256))
	if err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if n <= 0 || hdr.HeaderBytes != fixedHeaderBytes+n*signalHeaderBytes {
		return nil, fmt.Errorf("inconsistent header: %d signals in %d header bytes", n, hdr.HeaderBytes)
	}

	hdr.Signals = make([]Signal, n)
	for _, col := range signalColumns {
		b := make([]byte, col.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, fmt.Errorf("error reading signal %s: %w", col.name, err)
			}
			if err := col.set(&hdr.Signals[i], strings.TrimSpace(string(b))); err != nil {
				return nil, fmt.Errorf("error parsing %s of signal %d: %w", col.name, i, err)
			}
		}
	}

	return &Reader{r: r, hdr: hdr}, nil
}

// Header returns the parsed header.
func (er *Reader) Header() Header {
	return er.hdr
}

// ReadRecord returns the physical values of every signal in record i.
func (er *Reader) ReadRecord(i int) ([][]float64, error) {
	if i < 0 || (er.hdr.Records >= 0 && i >= er.hdr.Records) {
		return nil, fmt.Errorf("record %d out of range", i)
	}

	size := er.hdr.recordBytes()
	if _, err := er.r.Seek(int64(er.hdr.HeaderBytes)+int64(i)*int64(size), io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to record %d: %w", i, err)
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(er.r, raw); err != nil {
		return nil, fmt.Errorf("error reading record %d: %w", i, err)
	}

	out := make([][]float64, len(er.hdr.Signals))
	for s := range er.hdr.Signals {
		sig := &er.hdr.Signals[s]
		out[s] = make([]float64, sig.SamplesPerRecord)
		for k := range out[s] {
			out[s][k] = digitalToPhysical(int16(binary.LittleEndian.Uint16(raw)), sig)
			raw = raw[2:]
		}
	}
	return out, nil
}

// ReadSignal returns every sample of one signal across all records.
func (er *Reader) ReadSignal(index int) ([]float64, error) {
	if index < 0 || index >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index %d out of range", index)
	}

	var out []float64
	for i := 0; i < er.hdr.Records; i++ {
		rec, err := er.ReadRecord(i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec[index]...)
	}
	return out, nil
}
