// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads the calibration and generation settings of a setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/OpenPSG/pulsed"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the file.
const (
	EnvOCDir      = "PULSED_OC_DIR"
	EnvOCScale    = "PULSED_OC_SCALE"
	EnvSampleRate = "PULSED_SAMPLE_RATE"
)

// Config is the contents of a setup file.
type Config struct {
	Targets        []Target                 `yaml:"targets"`
	TargetOrder    []int                    `yaml:"target_order,omitempty"`
	Envelope       string                   `yaml:"envelope"`
	OptimalControl OptimalControlConfig     `yaml:"optimal_control"`
	Readout        pulsed.ReadoutTiming     `yaml:"readout"`
	Decoupling     pulsed.DecouplingOptions `yaml:"decoupling"`
	DDFamilies     []pulsed.Descriptor      `yaml:"dd_families,omitempty"`
	SampleRate     float64                  `yaml:"sample_rate"` // Samples per second used when rendering
}

// Target is the calibration of one NV center.
type Target struct {
	Transition `yaml:",inline"`
	Secondary  []Transition `yaml:"secondary,omitempty"`
}

// Transition is the calibration of one resonance line.
type Transition struct {
	Frequency  float64 `yaml:"frequency"`
	Amplitude  float64 `yaml:"amplitude"`
	RabiPeriod float64 `yaml:"rabi_period"`
}

// OptimalControlConfig locates the calibrated waveforms.
type OptimalControlConfig struct {
	Dir   string  `yaml:"dir,omitempty"`
	Scale float64 `yaml:"scale"`
}

// Default returns a single-target setup.
func Default() *Config {
	return &Config{
		Targets: []Target{
			{Transition: Transition{Frequency: 2.87e9, Amplitude: 0.25, RabiPeriod: 100e-9}},
		},
		Envelope:       "rectangle",
		OptimalControl: OptimalControlConfig{Scale: 1},
		Readout: pulsed.ReadoutTiming{
			LaserLength: 3e-6,
			LaserDelay:  500e-9,
			WaitTime:    1e-6,
		},
		Decoupling: pulsed.DecouplingOptions{
			Family: "xy8",
			Order:  1,
			Tau:    500e-9,
		},
		SampleRate: 2.5e9,
	}
}

// Load reads a setup file. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when path is empty or
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnv applies the environment, after reading the given .env files if
// they exist.
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if v := os.Getenv(EnvOCDir); v != "" {
		c.OptimalControl.Dir = v
	}
	if v := os.Getenv(EnvOCScale); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvOCScale, err)
		}
		c.OptimalControl.Scale = scale
	}
	if v := os.Getenv(EnvSampleRate); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSampleRate, err)
		}
		c.SampleRate = rate
	}
	return c.Validate()
}

// Validate checks the settings that cannot be checked at generation time.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	for i, t := range c.Targets {
		if t.RabiPeriod <= 0 {
			return fmt.Errorf("target %d: rabi period must be positive", i)
		}
		if len(t.Secondary) != len(c.Targets[0].Secondary) {
			return fmt.Errorf("target %d: has %d secondary transitions, target 0 has %d",
				i, len(t.Secondary), len(c.Targets[0].Secondary))
		}
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	if _, err := pulsed.ParseEnvelope(c.Envelope); err != nil {
		return err
	}
	return nil
}

// NumTargets implements pulsed.Calibration.
func (c *Config) NumTargets() int { return len(c.Targets) }

// Target implements pulsed.Calibration.
func (c *Config) Target(i int) (pulsed.TargetCalibration, error) {
	if i < 0 || i >= len(c.Targets) {
		return pulsed.TargetCalibration{}, fmt.Errorf("no target %d configured", i)
	}
	t := c.Targets[i]
	tc := pulsed.TargetCalibration{Transition: pulsed.Transition(t.Transition)}
	for _, s := range t.Secondary {
		tc.Secondary = append(tc.Secondary, pulsed.Transition(s))
	}
	return tc, nil
}

// Options converts the config into generation-wide settings.
func (c *Config) Options() (pulsed.Options, error) {
	env, err := pulsed.ParseEnvelope(c.Envelope)
	if err != nil {
		return pulsed.Options{}, err
	}
	return pulsed.Options{
		TargetOrder: c.TargetOrder,
		OCScale:     c.OptimalControl.Scale,
		Envelope:    env,
		Readout:     c.Readout,
		Decoupling:  c.Decoupling,
	}, nil
}

// DDTable returns the built-in decoupling families extended by the file's.
func (c *Config) DDTable() (pulsed.DDTable, error) {
	return pulsed.DefaultDDTable().With(c.DDFamilies...)
}
