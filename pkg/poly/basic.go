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
package poly

import (
	"math/big"
)

func bigRatOne() *big.Rat {
	return big.NewRat(1, 1)
}

func bigRatMinusOne() *big.Rat {
	return big.NewRat(-1, 1)
}

// embedAff adds the divisions of a to sys and returns a's expression as a row
// over sys columns.  basemap maps a's parameter and dimension columns to sys
// columns.
func embedAff(sys *system, a *Aff, basemap []int) vec {
	base := a.baseCols()
	fullmap := make([]int, base+len(a.divs))
	copy(fullmap, basemap)
	//
	for i, d := range a.divs {
		argmap := make([]int, len(d.arg.co))
		copy(argmap, fullmap[:base+i])
		//
		for j := base + i; j < len(argmap); j++ {
			argmap[j] = -1
		}
		//
		arg := d.arg.remap(argmap, sys.ncols())
		fullmap[base+i] = sys.addDiv(arg, d.den)
	}
	//
	return a.expr.remap(fullmap, sys.ncols())
}

// identityMap constructs the column map [0, 1, ..., n-1].
func identityMap(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	//
	return m
}

// offsetMap constructs a column map sending parameter columns to themselves
// and dimension columns to an offset position.
func offsetMap(nparam int, ndim int, offset int) []int {
	m := make([]int, nparam+ndim)
	//
	for i := 0; i < nparam; i++ {
		m[i] = i
	}
	//
	for i := 0; i < ndim; i++ {
		m[nparam+i] = offset + i
	}
	//
	return m
}

// rowToAff renders a system row as a quasi-affine expression over the given
// space, whose dimensions correspond to the first len(space.Out.Dims) system
// dimensions.  Division columns with nonzero coefficient are reconstructed
// from their definitions; an undefined division makes the row unrenderable
// and yields nil.
func rowToAff(space *Space, sys *system, row vec) *Aff {
	var (
		nparam = sys.nparam
		a      = NewZeroAff(space)
	)
	// parameters and leading dimensions transfer directly
	for i := 0; i < nparam && i < len(space.Params); i++ {
		a.expr.co[i].Set(row.co[i])
	}
	//
	for i := 0; i < space.Out.Arity(); i++ {
		a.expr.co[len(space.Params)+i].Set(row.co[nparam+i])
	}
	// remaining (projected) dimensions must be zero
	for i := space.Out.Arity(); i < sys.ndim+sys.nexist; i++ {
		if row.co[nparam+i].Sign() != 0 {
			return nil
		}
	}
	//
	a.expr.k.Set(row.k)
	// reconstruct any divisions used by the row
	divBase := nparam + sys.ndim + sys.nexist
	//
	for i, d := range sys.divs {
		c := row.co[divBase+i]
		if c.Sign() == 0 {
			continue
		}
		//
		if d.arg.isZero() && d.arg.k.Sign() == 0 {
			// definition was lost during elimination
			return nil
		}
		//
		arg := rowToAff(space, sys, d.arg)
		if arg == nil || !d.den.IsInt64() {
			return nil
		}
		//
		floored := arg.FloorDiv(d.den.Int64())
		a = a.Add(floored.Scale(c))
	}
	//
	return a
}
