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
	"strings"
)

// Kind classifies generation errors.
type Kind string

const (
	KindShape       Kind = "shape"       // Mismatched parallel arrays, out of range targets
	KindTiming      Kind = "timing"      // Negative free-evolution or partition gap
	KindAsset       Kind = "asset"       // Missing or ambiguous optimal-control waveform
	KindUnsupported Kind = "unsupported" // Envelope/composite pairing with no semantics
)

// Sentinel errors for use with errors.Is.
var (
	ErrShape       = &Error{Kind: KindShape}
	ErrTiming      = &Error{Kind: KindTiming}
	ErrAsset       = &Error{Kind: KindAsset}
	ErrUnsupported = &Error{Kind: KindUnsupported}
)

// Param is a named value reported alongside an error.
type Param struct {
	Name  string
	Value any
}

// Error is returned by every generation operation. Params name the inputs that caused it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Params  []Param
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(" error")
	if e.Op != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Op)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if len(e.Params) > 0 {
		sb.WriteString(" (")
		for i, p := range e.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", p.Name, p.Value)
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Param returns the value of the named parameter, if present.
func (e *Error) Param(name string) (any, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) with(name string, value any) *Error {
	e.Params = append(e.Params, Param{Name: name, Value: value})
	return e
}
