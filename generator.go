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
	"log/slog"
	"slices"
)

// Transition is the calibration of one resonance line of a target.
type Transition struct {
	Frequency  float64 // Hz
	Amplitude  float64
	RabiPeriod float64 // Duration of a 2π rotation in seconds
}

// TargetCalibration is the calibration of one target. Secondary holds further
// transitions (e.g. the second ms=±1 line) in a fixed order.
type TargetCalibration struct {
	Transition
	Secondary []Transition
}

// Calibration provides the current per-target calibration. It is queried at
// the start of every generation call.
type Calibration interface {
	NumTargets() int
	Target(i int) (TargetCalibration, error)
}

// ReadoutTiming configures the readout elements.
type ReadoutTiming struct {
	LaserLength float64 `yaml:"laser_length"`
	LaserDelay  float64 `yaml:"laser_delay"`
	WaitTime    float64 `yaml:"wait_time"`
}

// DecouplingOptions configures the decoupling composites and the second
// target of cross-decoupled BB1 pulses.
type DecouplingOptions struct {
	Family  string  `yaml:"family"`
	Order   int     `yaml:"order"`
	Tau     float64 `yaml:"tau"`
	Targets []int   `yaml:"targets"`
}

// Options are generation-wide settings.
type Options struct {
	// TargetOrder permutes targets in the parameter vectors. Nil keeps the
	// natural order.
	TargetOrder []int
	// OCScale multiplies the amplitude of optimal-control pulses.
	OCScale    float64
	Envelope   Envelope
	Readout    ReadoutTiming
	Decoupling DecouplingOptions
}

// GeneratorConfig wires a Generator.
type GeneratorConfig struct {
	Calibration Calibration
	Registry    *Registry
	DDTable     DDTable
	Options     Options
	Logger      *slog.Logger
}

// Generator holds the long-lived, read-only collaborators of generation
// calls. It is safe for concurrent use.
type Generator struct {
	cal    Calibration
	reg    *Registry
	dd     DDTable
	opts   Options
	logger *slog.Logger
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Calibration == nil {
		return nil, fmt.Errorf("missing calibration provider")
	}
	if cfg.DDTable == nil {
		cfg.DDTable = DefaultDDTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Options.OCScale == 0 {
		cfg.Options.OCScale = 1
	}
	if cfg.Options.Decoupling.Family == "" {
		cfg.Options.Decoupling.Family = "xy8"
	}
	if cfg.Options.Decoupling.Order <= 0 {
		cfg.Options.Decoupling.Order = 1
	}

	return &Generator{
		cal:    cfg.Calibration,
		reg:    cfg.Registry,
		dd:     cfg.DDTable,
		opts:   cfg.Options,
		logger: cfg.Logger,
	}, nil
}

// Registry returns the shared optimal-control registry.
func (g *Generator) Registry() *Registry { return g.reg }

// DDTable returns the decoupling families.
func (g *Generator) DDTable() DDTable { return g.dd }

// Options returns the generation-wide settings.
func (g *Generator) Options() Options { return g.opts }

// Params are parallel per-channel vectors.
type Params struct {
	Amplitude []float64
	Frequency []float64
	Period    []float64
}

// Session is the context of one generation call. It holds a calibration
// snapshot and must not be shared between goroutines.
type Session struct {
	gen         *Generator
	nTargets    int
	transitions int
	order       []int
	position    []int // position[target] is the chunk index of target
	all         Params
	depth       int // Nesting of Rotate calls, for diagnostics
	logger      *slog.Logger
}

// Begin reads the current calibration and starts a generation call.
func (g *Generator) Begin() (*Session, error) {
	const op = "Begin"

	n := g.cal.NumTargets()
	if n <= 0 {
		return nil, newError(KindShape, op, "calibration has no targets").with("n_targets", n)
	}

	cals := make([]TargetCalibration, n)
	for i := range cals {
		c, err := g.cal.Target(i)
		if err != nil {
			return nil, fmt.Errorf("error reading calibration of target %d: %w", i, err)
		}
		if len(c.Secondary) != len(cals[0].Secondary) && i > 0 {
			return nil, newError(KindShape, op, "targets have different transition counts").
				with("target", i).with("transitions", len(c.Secondary)+1).
				with("want", len(cals[0].Secondary)+1)
		}
		cals[i] = c
	}

	order := g.opts.TargetOrder
	if order == nil {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}

	build := func(field func(Transition) float64) ([]float64, error) {
		primary := field(cals[0].Transition)
		var secondary []float64
		for i, c := range cals {
			if i > 0 {
				secondary = append(secondary, field(c.Transition))
			}
			for _, t := range c.Secondary {
				secondary = append(secondary, field(t))
			}
		}
		return BuildParams(&primary, secondary, n, order)
	}

	s := &Session{
		gen:         g,
		nTargets:    n,
		transitions: len(cals[0].Secondary) + 1,
		order:       slices.Clone(order),
		position:    InvertOrder(order),
		logger:      g.logger,
	}
	var err error
	if s.all.Amplitude, err = build(func(t Transition) float64 { return t.Amplitude }); err != nil {
		return nil, err
	}
	if s.all.Frequency, err = build(func(t Transition) float64 { return t.Frequency }); err != nil {
		return nil, err
	}
	if s.all.Period, err = build(func(t Transition) float64 { return t.RabiPeriod }); err != nil {
		return nil, err
	}

	s.logger.Debug("[GEN] session started", "targets", n, "transitions", s.transitions, "order", order)
	return s, nil
}

// NumTargets returns the number of targets in the calibration snapshot.
func (s *Session) NumTargets() int { return s.nTargets }

// NumChannels returns the length of the parameter vectors.
func (s *Session) NumChannels() int { return len(s.all.Amplitude) }

// Options returns the generation-wide settings.
func (s *Session) Options() Options { return s.gen.opts }

// Channel returns the vector index of a target's transition.
func (s *Session) Channel(target, transition int) int {
	return s.position[target]*s.transitions + transition
}

// Vectors returns the parameter vectors with every target not listed zeroed.
// Without targets, all targets are kept. Frequency and period are always kept
// in full so idle channels still have a calibrated duration.
func (s *Session) Vectors(targets ...int) (Params, error) {
	p := Params{
		Amplitude: slices.Clone(s.all.Amplitude),
		Frequency: slices.Clone(s.all.Frequency),
		Period:    slices.Clone(s.all.Period),
	}
	if len(targets) == 0 {
		return p, nil
	}

	isolated := make([][]float64, 0, len(targets))
	seen := make(map[int]bool, len(targets))
	for _, t := range targets {
		if seen[t] {
			continue
		}
		seen[t] = true
		if t < 0 || t >= s.nTargets {
			return Params{}, newError(KindShape, "Vectors", "target index out of range").
				with("target", t).with("n_targets", s.nTargets)
		}
		v, err := IsolateParams(s.all.Amplitude, s.nTargets, s.position[t])
		if err != nil {
			return Params{}, err
		}
		isolated = append(isolated, v)
	}
	amp, err := MergeParams(isolated...)
	if err != nil {
		return Params{}, err
	}
	p.Amplitude = amp
	return p, nil
}

// primary returns the parameter vectors of targets with every secondary
// transition silenced.
func (s *Session) primary(targets ...int) (Params, error) {
	p, err := s.Vectors(targets...)
	if err != nil {
		return Params{}, err
	}
	for i := range p.Amplitude {
		if i%s.transitions != 0 {
			p.Amplitude[i] = 0
		}
	}
	return p, nil
}

// Pi returns a bare rotation request on the primary transition of targets
// using the calibrated vectors and the default envelope.
func (s *Session) Pi(fraction, phase float64, targets ...int) (Rotation, error) {
	p, err := s.primary(targets...)
	if err != nil {
		return Rotation{}, err
	}
	return Rotation{
		Phase:     Scalar(phase),
		Targets:   slices.Clone(targets),
		Fraction:  Scalar(fraction),
		Amplitude: p.Amplitude,
		Frequency: p.Frequency,
		Period:    p.Period,
		Idle:      IdleConvert,
		Envelope:  s.gen.opts.Envelope,
		Composite: Bare,
	}, nil
}
