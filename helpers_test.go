// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulsed_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/OpenPSG/pulsed"
	"github.com/stretchr/testify/require"
)

type staticCalibration []pulsed.TargetCalibration

func (c staticCalibration) NumTargets() int { return len(c) }

func (c staticCalibration) Target(i int) (pulsed.TargetCalibration, error) {
	if i < 0 || i >= len(c) {
		return pulsed.TargetCalibration{}, fmt.Errorf("no target %d", i)
	}
	return c[i], nil
}

// twoNV has half-π lengths of 25ns and 30ns.
var twoNV = staticCalibration{
	{Transition: pulsed.Transition{Frequency: 1e9, Amplitude: 0.1, RabiPeriod: 100e-9}},
	{Transition: pulsed.Transition{Frequency: 1.2e9, Amplitude: 0.1, RabiPeriod: 120e-9}},
}

// recorder keeps every log record.
type recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }

func (r *recorder) WithGroup(string) slog.Handler { return r }

// rotations returns the attributes of every rotation logged at depth.
func (r *recorder) rotations(depth int64) []map[string]slog.Value {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []map[string]slog.Value
	for _, rec := range r.records {
		if rec.Message != "[ROT] rotation" {
			continue
		}
		attrs := map[string]slog.Value{}
		rec.Attrs(func(a slog.Attr) bool {
			attrs[a.Key] = a.Value
			return true
		})
		if attrs["depth"].Int64() == depth {
			out = append(out, attrs)
		}
	}
	return out
}

func newSession(t *testing.T, cal pulsed.Calibration, opts pulsed.Options, reg *pulsed.Registry) (*pulsed.Session, *recorder) {
	t.Helper()

	rec := &recorder{}
	gen, err := pulsed.NewGenerator(pulsed.GeneratorConfig{
		Calibration: cal,
		Registry:    reg,
		Options:     opts,
		Logger:      slog.New(rec),
	})
	require.NoError(t, err)

	s, err := gen.Begin()
	require.NoError(t, err)
	return s, rec
}

func requireKind(t *testing.T, err error, target error) *pulsed.Error {
	t.Helper()

	require.ErrorIs(t, err, target)
	var perr *pulsed.Error
	require.ErrorAs(t, err, &perr)
	return perr
}

func param(t *testing.T, perr *pulsed.Error, name string) any {
	t.Helper()

	v, ok := perr.Param(name)
	require.True(t, ok, "missing error parameter %q in %v", name, perr)
	return v
}
