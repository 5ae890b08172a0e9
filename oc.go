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
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	amplitudeSuffix = "_amplitude"
	phaseSuffix     = "_phase"
	fractionTol     = 1e-9
)

// Waveform is a uniformly sampled quadrature of an optimal-control pulse:
// the amplitude envelope (I file) or the phase modulation in degrees (Q file).
type Waveform struct {
	Step   float64
	Values []float64
}

// At returns the sample nearest to t seconds into the pulse.
func (w Waveform) At(t float64) float64 {
	if len(w.Values) == 0 || w.Step <= 0 || t < 0 {
		return 0
	}
	i := int(t / w.Step)
	if i >= len(w.Values) {
		return 0
	}
	return w.Values[i]
}

// Asset is a pre-computed shaped pulse loaded from an I and a Q file.
type Asset struct {
	Targets   []int
	Fractions []float64
	Parallel  []int
	IFile     string
	QFile     string
	I         Waveform
	Q         Waveform
	Duration  float64
}

func (a *Asset) String() string {
	return fmt.Sprintf("nv=%v pi=%v par=%v", a.Targets, a.Fractions, a.Parallel)
}

// Registry holds the optimal-control assets. It is read-only once loaded and
// safe for concurrent use.
type Registry struct {
	assets   []*Asset
	warnings []string
}

// NewRegistry builds a registry from already loaded assets.
func NewRegistry(assets ...*Asset) *Registry {
	return &Registry{assets: slices.Clone(assets)}
}

// LoadRegistry scans dir for amplitude/phase file pairs. Files that cannot be
// paired or parsed are skipped with a warning.
func LoadRegistry(dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading asset directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	reg := &Registry{}
	warn := func(msg, file string, err error) {
		logger.Warn("[OC] "+msg, "dir", dir, "file", file, "error", err)
		reg.warnings = append(reg.warnings, fmt.Sprintf("%s: %s: %v", file, msg, err))
	}

	for _, name := range names {
		prefix, ok := quadraturePrefix(name, amplitudeSuffix)
		if !ok {
			continue
		}

		var partners []string
		for _, other := range names {
			if p, ok := quadraturePrefix(other, phaseSuffix); ok && p == prefix {
				partners = append(partners, other)
			}
		}
		if len(partners) != 1 {
			warn("skipping asset without unique phase file", name,
				fmt.Errorf("found %d partners", len(partners)))
			continue
		}

		asset, err := parseAssetName(prefix)
		if err != nil {
			warn("skipping asset with invalid name", name, err)
			continue
		}
		asset.IFile = filepath.Join(dir, name)
		asset.QFile = filepath.Join(dir, partners[0])

		if asset.I, err = readWaveform(asset.IFile); err != nil {
			warn("skipping asset with invalid amplitude data", name, err)
			continue
		}
		if asset.Q, err = readWaveform(asset.QFile); err != nil {
			warn("skipping asset with invalid phase data", partners[0], err)
			continue
		}
		if len(asset.I.Values) != len(asset.Q.Values) {
			warn("skipping asset with mismatched quadratures", name,
				fmt.Errorf("%d != %d samples", len(asset.I.Values), len(asset.Q.Values)))
			continue
		}
		asset.Duration = float64(len(asset.I.Values)) * asset.I.Step

		if dup := reg.find(asset.Targets, asset.Fractions, asset.Parallel, true); len(dup) > 0 {
			warn("skipping asset colliding with "+filepath.Base(dup[0].IFile), name,
				fmt.Errorf("duplicate parameters %s", asset))
			continue
		}

		reg.assets = append(reg.assets, asset)
		logger.Debug("[OC] registered asset", "file", name, "asset", asset.String(), "duration", asset.Duration)
	}

	logger.Info("[OC] registry loaded", "dir", dir, "assets", len(reg.assets), "skipped", len(reg.warnings))
	return reg, nil
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.assets)
}

// Assets returns a copy of the registered assets.
func (r *Registry) Assets() []*Asset {
	if r == nil {
		return nil
	}
	return slices.Clone(r.assets)
}

// Warnings returns the problems encountered while loading.
func (r *Registry) Warnings() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.warnings)
}

// Resolve returns the unique asset for the requested rotation. If no asset
// matches exactly, the parallel-drive qualifier is dropped and the search
// repeated.
func (r *Registry) Resolve(targets []int, fractions []float64, parallel []int) (*Asset, error) {
	const op = "Resolve"

	if len(fractions) == 1 && len(targets) > 1 {
		fractions = repeat(fractions[0], len(targets))
	}
	if len(fractions) != len(targets) {
		return nil, newError(KindShape, op, "rotation fractions do not match targets").
			with("targets", targets).with("fractions", fractions)
	}

	matches := r.find(targets, fractions, parallel, true)
	if len(matches) == 0 {
		matches = r.find(targets, fractions, nil, false)
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, newError(KindAsset, op, "no such calibrated waveform").
			with("targets", targets).with("fractions", fractions).with("parallel", parallel)
	default:
		files := make([]string, len(matches))
		for i, m := range matches {
			files[i] = filepath.Base(m.IFile)
		}
		return nil, newError(KindAsset, op, "ambiguous calibrated waveform").
			with("targets", targets).with("fractions", fractions).with("parallel", parallel).
			with("candidates", files)
	}
}

func (r *Registry) find(targets []int, fractions []float64, parallel []int, withParallel bool) []*Asset {
	if r == nil {
		return nil
	}
	var out []*Asset
	for _, a := range r.assets {
		if !slices.Equal(a.Targets, targets) {
			continue
		}
		if !slices.EqualFunc(a.Fractions, fractions, func(x, y float64) bool {
			return math.Abs(x-y) < fractionTol
		}) {
			continue
		}
		if withParallel && !sameSet(a.Parallel, parallel) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func sameSet(a, b []int) bool {
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(slices.Compact(x), slices.Compact(y))
}

// quadraturePrefix returns the part of name before suffix, ignoring the file
// extension.
func quadraturePrefix(name, suffix string) (string, bool) {
	base := name
	if !strings.HasSuffix(base, suffix) {
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if !strings.HasSuffix(base, suffix) {
		return "", false
	}
	return strings.TrimSuffix(base, suffix), true
}

// parseAssetName reads the key=value fields of an asset file prefix, e.g.
// "oc_nv=0+1_pi=0.5_par=2".
func parseAssetName(prefix string) (*Asset, error) {
	a := &Asset{}
	var haveNV, havePi bool
	for _, field := range strings.Split(prefix, "_") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "nv":
			ids, err := parseInts(value)
			if err != nil {
				return nil, fmt.Errorf("error parsing nv: %w", err)
			}
			a.Targets, haveNV = ids, true
		case "pi":
			var fs []float64
			for _, s := range strings.Split(value, "+") {
				f, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("error parsing pi: %w", err)
				}
				fs = append(fs, f)
			}
			a.Fractions, havePi = fs, true
		case "par":
			ids, err := parseInts(value)
			if err != nil {
				return nil, fmt.Errorf("error parsing par: %w", err)
			}
			a.Parallel = ids
		}
	}
	if !haveNV || !havePi {
		return nil, fmt.Errorf("missing nv or pi field")
	}
	if len(a.Fractions) == 1 && len(a.Targets) > 1 {
		a.Fractions = repeat(a.Fractions[0], len(a.Targets))
	}
	if len(a.Fractions) != len(a.Targets) {
		return nil, fmt.Errorf("%d fractions for %d targets", len(a.Fractions), len(a.Targets))
	}
	return a, nil
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, "+") {
		i, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func readWaveform(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, err
	}
	defer f.Close()
	return parseWaveform(f)
}

// parseWaveform reads two-column "time value" text. Lines starting with '#'
// are comments. Times are taken relative to the first sample.
func parseWaveform(r io.Reader) (Waveform, error) {
	var times, values []float64
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Fields(strings.ReplaceAll(text, ",", " "))
		if len(cols) < 2 {
			return Waveform{}, fmt.Errorf("line %d: expected time and value", line)
		}
		t, err := strconv.ParseFloat(cols[0], 64)
		if err != nil {
			return Waveform{}, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(cols[1], 64)
		if err != nil {
			return Waveform{}, fmt.Errorf("line %d: %w", line, err)
		}
		times = append(times, t)
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return Waveform{}, err
	}
	if len(values) < 2 {
		return Waveform{}, fmt.Errorf("need at least 2 samples, got %d", len(values))
	}
	step := times[1] - times[0]
	if step <= 0 {
		return Waveform{}, fmt.Errorf("non-increasing time column")
	}
	return Waveform{Step: step, Values: values}, nil
}
