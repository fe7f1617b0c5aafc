// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package legality decides whether a candidate schedule respects a
// dependence relation.  A schedule is legal iff no dependence is mapped to a
// lexicographically negative delta: for every (src, snk) in the dependence
// relation, the schedule point of snk must not precede that of src.  The
// dependence relation holds may-dependences, so the oracle is conservative:
// it rejects any schedule that could violate some dependence.
package legality

import (
	"math/big"

	"github.com/hikettei/tadashi/pkg/poly"
)

// Check decides whether the candidate schedule respects every dependence.
// dep relates source instances to sink instances; schedule maps instances to
// schedule points.  Neither argument is consumed.
func Check(dep *poly.UnionMap, schedule *poly.UnionMap) bool {
	if dep.IsEmpty() {
		return true
	}
	// map both ends of every dependence into schedule points
	scheduled := dep.Copy().ApplyDomain(schedule.Copy()).ApplyRange(schedule.Copy())
	// difference of sink and source points
	deltas := scheduled.Deltas()
	defer deltas.Free()
	// legal iff no delta is lexicographically negative
	for _, set := range deltas.Sets() {
		if lexNegative(set) {
			return false
		}
	}
	//
	return true
}

// CheckParallel decides whether the band dimension at the given depth may
// run in parallel: no dependence may have a nonzero delta component there.
// Neither argument is consumed.
func CheckParallel(dep *poly.UnionMap, schedule *poly.UnionMap, depth int) bool {
	if dep.IsEmpty() {
		return true
	}
	//
	scheduled := dep.Copy().ApplyDomain(schedule.Copy()).ApplyRange(schedule.Copy())
	deltas := scheduled.Deltas()
	defer deltas.Free()
	//
	for _, set := range deltas.Sets() {
		if !projectionZero(set, depth) {
			return false
		}
	}
	//
	return true
}

// lexNegative checks whether the set contains a point which is
// lexicographically smaller than the zero tuple: some prefix of zeros
// followed by a strictly negative component.  Strictness exploits
// integrality (x < 0 iff x <= -1).
func lexNegative(deltas *poly.Set) bool {
	n := deltas.Space.Out.Arity()
	//
	for j := 0; j < n; j++ {
		probe := deltas.Clone()
		//
		for _, basic := range probe.Basics {
			for i := 0; i < j; i++ {
				basic.AddEquality(poly.NewVarAff(basic.Space, i))
			}
			// delta_j <= -1
			minusOne := poly.NewConstAff(basic.Space, -1)
			basic.AddInequality(minusOne.Sub(poly.NewVarAff(basic.Space, j)))
		}
		//
		if !probe.IsEmpty() {
			return true
		}
	}
	//
	return false
}

// projectionZero checks that the given dimension is identically zero over
// the set, by refuting both strict signs.
func projectionZero(deltas *poly.Set, dim int) bool {
	if dim >= deltas.Space.Out.Arity() {
		return false
	}
	//
	for _, sign := range []int64{1, -1} {
		probe := deltas.Clone()
		//
		for _, basic := range probe.Basics {
			// sign * delta_dim - 1 >= 0
			scaled := poly.NewVarAff(basic.Space, dim).Scale(big.NewRat(sign, 1))
			basic.AddInequality(scaled.Add(poly.NewConstAff(basic.Space, -1)))
		}
		//
		if !probe.IsEmpty() {
			return false
		}
	}
	//
	return true
}
