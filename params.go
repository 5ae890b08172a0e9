// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pulsed

// BuildParams assembles a per-target ordered parameter vector
// [target0-transition0, target0-transition1, ..., target1-transition0, ...].
//
// The optional primary value is prepended to secondary, the result is split
// into nTargets equal chunks and chunk order[j] is emitted at position j. A
// nil order keeps the natural target order.
func BuildParams(primary *float64, secondary []float64, nTargets int, order []int) ([]float64, error) {
	const op = "BuildParams"

	values := make([]float64, 0, len(secondary)+1)
	if primary != nil {
		values = append(values, *primary)
	}
	values = append(values, secondary...)

	chunk, err := chunkSize(op, len(values), nTargets)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return values, nil
	}
	if err := checkPermutation(op, order, nTargets); err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(values))
	for _, src := range order {
		out = append(out, values[src*chunk:(src+1)*chunk]...)
	}
	return out, nil
}

// IsolateParams returns a copy of v where every chunk except target's is zero.
func IsolateParams(v []float64, nTargets, target int) ([]float64, error) {
	const op = "IsolateParams"

	chunk, err := chunkSize(op, len(v), nTargets)
	if err != nil {
		return nil, err
	}
	if target < 0 || target >= nTargets {
		return nil, newError(KindShape, op, "target index out of range").
			with("target", target).with("n_targets", nTargets)
	}

	out := make([]float64, len(v))
	copy(out[target*chunk:(target+1)*chunk], v[target*chunk:(target+1)*chunk])
	return out, nil
}

// MergeParams sums equally long vectors element-wise. It recombines isolated
// vectors so one request can address several targets.
func MergeParams(vs ...[]float64) ([]float64, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]float64, len(vs[0]))
	for i, v := range vs {
		if len(v) != len(out) {
			return nil, newError(KindShape, "MergeParams", "vector lengths differ").
				with("index", i).with("len", len(v)).with("want", len(out))
		}
		for j, x := range v {
			out[j] += x
		}
	}
	return out, nil
}

// InvertOrder returns the position of each target in a permuted vector.
func InvertOrder(order []int) []int {
	inv := make([]int, len(order))
	for pos, t := range order {
		if t >= 0 && t < len(inv) {
			inv[t] = pos
		}
	}
	return inv
}

func chunkSize(op string, n, nTargets int) (int, error) {
	if nTargets <= 0 {
		return 0, newError(KindShape, op, "target count must be positive").with("n_targets", nTargets)
	}
	if n%nTargets != 0 {
		return 0, newError(KindShape, op, "vector length not divisible by target count").
			with("len", n).with("n_targets", nTargets)
	}
	return n / nTargets, nil
}

func checkPermutation(op string, order []int, n int) error {
	if len(order) != n {
		return newError(KindShape, op, "target order has wrong length").
			with("order", order).with("n_targets", n)
	}
	seen := make([]bool, n)
	for _, t := range order {
		if t < 0 || t >= n || seen[t] {
			return newError(KindShape, op, "target order is not a permutation").
				with("order", order).with("n_targets", n)
		}
		seen[t] = true
	}
	return nil
}
