// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command pulsegen generates a predefined measurement and prints its
// structure. It can also export one sweep step as an EDF trace.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/pulsed"
	"github.com/OpenPSG/pulsed/config"
	"github.com/OpenPSG/pulsed/predefined"
	"github.com/OpenPSG/pulsed/render"
	"github.com/mattn/go-runewidth"
)

type options struct {
	config      string
	method      string
	list        bool
	verbose     bool
	edfPath     string
	edfStep     int
	start       float64
	step        float64
	points      int
	targets     string
	alternating bool
	composite   string
	family      string
	order       int
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "pulsed.yaml", "setup file, defaults are used if it does not exist")
	flag.StringVar(&o.method, "method", "rabi", "predefined method to generate")
	flag.BoolVar(&o.list, "list", false, "list the predefined methods and decoupling families")
	flag.BoolVar(&o.verbose, "v", false, "log generation details")
	flag.StringVar(&o.edfPath, "edf", "", "export the block of one sweep step to this EDF file")
	flag.IntVar(&o.edfStep, "edf-step", 0, "sweep step exported with -edf")
	flag.Float64Var(&o.start, "start", 10e-9, "first swept value in seconds")
	flag.Float64Var(&o.step, "step", 10e-9, "swept value increment in seconds")
	flag.IntVar(&o.points, "points", 10, "number of sweep points")
	flag.StringVar(&o.targets, "targets", "", "comma separated target indices")
	flag.BoolVar(&o.alternating, "alternating", false, "add an inverted reference shot")
	flag.StringVar(&o.composite, "composite", "bare", "composite scheme of the projection pulses")
	flag.StringVar(&o.family, "family", "", "decoupling family, defaults to the config")
	flag.IntVar(&o.order, "order", 0, "decoupling order, defaults to the config")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(o, logger, os.Stdout); err != nil {
		logger.Error("pulsegen failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(o options, logger *slog.Logger, out io.Writer) error {
	cfg, err := config.LoadOrDefault(o.config)
	if err != nil {
		return err
	}
	if err := cfg.LoadEnv(".env"); err != nil {
		return err
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	table, err := cfg.DDTable()
	if err != nil {
		return err
	}

	if o.list {
		fmt.Fprintf(out, "methods:  %s\n", strings.Join(predefined.Names(), ", "))
		fmt.Fprintf(out, "families: %s\n", strings.Join(table.Names(), ", "))
		return nil
	}

	reg := pulsed.NewRegistry()
	if cfg.OptimalControl.Dir != "" {
		if reg, err = pulsed.LoadRegistry(cfg.OptimalControl.Dir, logger); err != nil {
			return err
		}
	}

	g, err := pulsed.NewGenerator(pulsed.GeneratorConfig{
		Calibration: cfg,
		Registry:    reg,
		DDTable:     table,
		Options:     opts,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	method, err := predefined.Lookup(o.method)
	if err != nil {
		return err
	}
	composite, err := pulsed.ParseComposite(o.composite)
	if err != nil {
		return err
	}
	targets, err := parseTargets(o.targets)
	if err != nil {
		return err
	}

	e, err := method(g, predefined.Params{
		Targets:     targets,
		Start:       o.start,
		Step:        o.step,
		Points:      o.points,
		Alternating: o.alternating,
		Composite:   composite,
		Family:      o.family,
		Order:       o.order,
	})
	if err != nil {
		return err
	}

	printSummary(out, e)

	if o.edfPath != "" {
		if err := exportEDF(o.edfPath, e, o.edfStep, g, cfg.SampleRate); err != nil {
			return err
		}
		logger.Info("exported trace", slog.String("path", o.edfPath), slog.Int("step", o.edfStep))
	}
	return nil
}

func parseTargets(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var targets []int
	for _, f := range strings.Split(s, ",") {
		t, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", f, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func printSummary(out io.Writer, e *pulsed.Ensemble) {
	info := e.Info
	fmt.Fprintf(out, "%s (%s)\n", e.Name, e.ID)
	fmt.Fprintf(out, "  duration        %s\n", seconds(e.Duration()))
	fmt.Fprintf(out, "  readouts        %d (alternating %t)\n", info.ReadoutCount, info.Alternating)
	fmt.Fprintf(out, "  counting length %s\n\n", seconds(info.CountingLength))

	block := e.Runs[0].Block
	rows := [][]string{{"step", info.Labels[0], "block length", "segments"}}
	for i, v := range info.ControlledVariable {
		rows = append(rows, []string{
			strconv.Itoa(i),
			value(v, info.Units[0]),
			seconds(block.Length(i)),
			strconv.Itoa(len(block.Segments)),
		})
	}
	printTable(out, rows)
}

// printTable left-aligns columns by their display width.
func printTable(out io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		var sb strings.Builder
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
				continue
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		fmt.Fprintln(out, sb.String())
	}
}

func value(v float64, unit string) string {
	if unit == "s" {
		return seconds(v)
	}
	return strings.TrimSpace(strconv.FormatFloat(v, 'g', 6, 64) + " " + unit)
}

func seconds(v float64) string {
	switch a := math.Abs(v); {
	case a == 0:
		return "0 s"
	case a < 1e-6:
		return strconv.FormatFloat(v*1e9, 'f', 3, 64) + " ns"
	case a < 1e-3:
		return strconv.FormatFloat(v*1e6, 'f', 3, 64) + " µs"
	case a < 1:
		return strconv.FormatFloat(v*1e3, 'f', 3, 64) + " ms"
	default:
		return strconv.FormatFloat(v, 'f', 3, 64) + " s"
	}
}

func exportEDF(path string, e *pulsed.Ensemble, step int, g *pulsed.Generator, rate float64) error {
	s, err := g.Begin()
	if err != nil {
		return err
	}
	if step < 0 || step >= e.Runs[0].Count {
		return fmt.Errorf("sweep step %d out of range [0, %d)", step, e.Runs[0].Count)
	}

	tr, err := render.Sample(e.Runs[0].Block, step, s.NumChannels(), rate)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := render.WriteEDF(f, tr, render.EDFOptions{Subject: e.ID, StartTime: time.Now()}); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
