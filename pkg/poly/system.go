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

// vec is an affine row over the columns of a constraint system, plus a
// constant term.  Depending on context it denotes either an expression, an
// equality (expr == 0) or an inequality (expr >= 0).
type vec struct {
	co []*big.Rat
	k  *big.Rat
}

func newVec(ncols int) vec {
	co := make([]*big.Rat, ncols)
	for i := range co {
		co[i] = new(big.Rat)
	}
	//
	return vec{co, new(big.Rat)}
}

func (p vec) clone() vec {
	other := newVec(len(p.co))
	for i, c := range p.co {
		other.co[i].Set(c)
	}
	//
	other.k.Set(p.k)
	//
	return other
}

// extend pads this vector with zero columns up to the given width.
func (p vec) extend(ncols int) vec {
	other := newVec(ncols)
	for i, c := range p.co {
		other.co[i].Set(c)
	}
	//
	other.k.Set(p.k)
	//
	return other
}

// remap produces a copy of this vector over a new column layout, where column
// i of the source maps to column colmap[i] of the target.  A negative entry
// requires the source coefficient to be zero.
func (p vec) remap(colmap []int, ncols int) vec {
	other := newVec(ncols)
	//
	for i, c := range p.co {
		if colmap[i] < 0 {
			if c.Sign() != 0 {
				panic("cannot drop column with nonzero coefficient")
			}
			//
			continue
		}
		//
		other.co[colmap[i]].Add(other.co[colmap[i]], c)
	}
	//
	other.k.Set(p.k)
	//
	return other
}

func (p vec) addScaled(q vec, scale *big.Rat) vec {
	r := p.clone()
	tmp := new(big.Rat)
	//
	for i := range r.co {
		r.co[i].Add(r.co[i], tmp.Mul(scale, q.co[i]))
	}
	//
	r.k.Add(r.k, tmp.Mul(scale, q.k))
	//
	return r
}

func (p vec) scale(scale *big.Rat) vec {
	r := p.clone()
	for i := range r.co {
		r.co[i].Mul(r.co[i], scale)
	}
	//
	r.k.Mul(r.k, scale)
	//
	return r
}

// isZero checks whether every coefficient (though not necessarily the
// constant) is zero.
func (p vec) isZero() bool {
	for _, c := range p.co {
		if c.Sign() != 0 {
			return false
		}
	}
	//
	return true
}

// div represents a floor division floor(arg / den) whose value occupies a
// dedicated column of the enclosing system.
type div struct {
	// arg is the dividend, expressed over the enclosing system's columns.
	// Columns at or after this div's own column are always zero.
	arg vec
	// den is the (strictly positive) divisor.
	den *big.Int
}

func (p div) clone() div {
	return div{p.arg.clone(), new(big.Int).Set(p.den)}
}

// system is a conjunction of affine equalities and inequalities over a fixed
// column layout: parameters, then dimensions, then existentially quantified
// scratch columns, then one column per division.  The interpretation of the
// dimension columns (set dims, or input followed by output dims) is owned by
// the wrapping type.
type system struct {
	// nparam and ndim give the number of parameter and dimension columns.
	nparam int
	ndim   int
	// nexist gives the number of existential scratch columns, used while
	// constructing compositions and projections.  A finished system has none.
	nexist int
	// divs own the trailing columns, in order.
	divs []div
	// eqs are rows interpreted as row == 0.
	eqs []vec
	// ineqs are rows interpreted as row >= 0.
	ineqs []vec
}

func newSystem(nparam int, ndim int) system {
	return system{nparam: nparam, ndim: ndim}
}

// ncols returns the total number of columns, including divisions.
func (p *system) ncols() int {
	return p.nparam + p.ndim + p.nexist + len(p.divs)
}

func (p *system) clone() system {
	other := system{nparam: p.nparam, ndim: p.ndim, nexist: p.nexist}
	//
	for _, d := range p.divs {
		other.divs = append(other.divs, d.clone())
	}
	//
	for _, e := range p.eqs {
		other.eqs = append(other.eqs, e.clone())
	}
	//
	for _, e := range p.ineqs {
		other.ineqs = append(other.ineqs, e.clone())
	}
	//
	return other
}

func (p *system) addEq(v vec) {
	p.eqs = append(p.eqs, v.extend(p.ncols()))
}

func (p *system) addIneq(v vec) {
	p.ineqs = append(p.ineqs, v.extend(p.ncols()))
}

// addExist appends n existential scratch columns, returning the index of the
// first.  Must be called before any division is added.
func (p *system) addExist(n int) int {
	if len(p.divs) > 0 {
		panic("existential columns must precede divisions")
	}
	//
	first := p.nparam + p.ndim + p.nexist
	p.nexist += n
	//
	for i := range p.eqs {
		p.eqs[i] = p.eqs[i].extend(p.ncols())
	}
	//
	for i := range p.ineqs {
		p.ineqs[i] = p.ineqs[i].extend(p.ncols())
	}
	//
	return first
}

// addDiv introduces a new division column for floor(arg / den), constrained
// by 0 <= arg - den*q <= den - 1, and returns its column index.
func (p *system) addDiv(arg vec, den *big.Int) int {
	col := p.ncols()
	// widen existing rows
	for i := range p.eqs {
		p.eqs[i] = p.eqs[i].extend(col + 1)
	}
	//
	for i := range p.ineqs {
		p.ineqs[i] = p.ineqs[i].extend(col + 1)
	}
	//
	for i := range p.divs {
		p.divs[i].arg = p.divs[i].arg.extend(col + 1)
	}
	//
	p.divs = append(p.divs, div{arg.extend(col + 1), new(big.Int).Set(den)})
	// arg - den*q >= 0
	lo := arg.extend(col + 1)
	lo.co[col].SetInt(new(big.Int).Neg(den))
	p.ineqs = append(p.ineqs, lo)
	// den*q + den - 1 - arg >= 0
	hi := arg.extend(col + 1).scale(big.NewRat(-1, 1))
	hi.co[col].SetInt(den)
	hi.k.Add(hi.k, new(big.Rat).SetInt(new(big.Int).Sub(den, big.NewInt(1))))
	p.ineqs = append(p.ineqs, hi)
	//
	return col
}

// substitute uses the equality eq (with nonzero coefficient at col) to remove
// col from the vector v.
func substitute(v vec, eq vec, col int) vec {
	if v.co[col].Sign() == 0 {
		return v
	}
	// v' = v - (v[col]/eq[col]) * eq
	factor := new(big.Rat).Quo(v.co[col], eq.co[col])
	factor.Neg(factor)
	//
	return v.addScaled(eq, factor)
}

// eliminateOne existentially projects out the given column in place, using
// Gaussian substitution where an equality is available and Fourier-Motzkin
// combination otherwise.  The column itself remains in the layout, zeroed.
// A division whose definition mentions the column degrades to a plain
// existential, which is sound for emptiness and bound queries.
func (p *system) eliminateOne(col int) {
	// Prefer Gaussian substitution through an equality.
	for i, eq := range p.eqs {
		if eq.co[col].Sign() != 0 {
			p.eqs = append(p.eqs[:i:i], p.eqs[i+1:]...)
			//
			for j := range p.eqs {
				p.eqs[j] = substitute(p.eqs[j], eq, col)
			}
			//
			for j := range p.ineqs {
				p.ineqs[j] = substitute(p.ineqs[j], eq, col)
			}
			//
			for j := range p.divs {
				if p.divs[j].arg.co[col].Sign() != 0 {
					p.divs[j].arg = substitute(p.divs[j].arg, eq, col)
				}
			}
			//
			return
		}
	}
	// Fourier-Motzkin over the inequalities.
	var lower, upper, rest []vec
	//
	for _, iq := range p.ineqs {
		switch iq.co[col].Sign() {
		case 1:
			lower = append(lower, iq)
		case -1:
			upper = append(upper, iq)
		default:
			rest = append(rest, iq)
		}
	}
	//
	for _, lo := range lower {
		for _, hi := range upper {
			// combine lo and hi so that col cancels
			factor := new(big.Rat).Quo(lo.co[col], hi.co[col])
			factor.Neg(factor)
			rest = append(rest, lo.addScaled(hi, factor))
		}
	}
	//
	p.ineqs = rest
	// any division defined in terms of col loses its definition
	for j := range p.divs {
		if p.divs[j].arg.co[col].Sign() != 0 {
			p.divs[j].arg = newVec(len(p.divs[j].arg.co))
		}
	}
}

// quantify eliminates all existential scratch columns and removes them from
// the layout, leaving a system over [params | dims | divs] only.
func (p *system) quantify() {
	first := p.nparam + p.ndim
	//
	for i := 0; i < p.nexist; i++ {
		p.eliminateOne(first + i)
	}
	// compact the (now zero) existential columns away
	ncols := p.ncols() - p.nexist
	colmap := make([]int, p.ncols())
	//
	for i := 0; i < first; i++ {
		colmap[i] = i
	}
	//
	for i := 0; i < p.nexist; i++ {
		colmap[first+i] = -1
	}
	//
	for i := 0; i < len(p.divs); i++ {
		colmap[first+p.nexist+i] = first + i
	}
	//
	for i := range p.eqs {
		p.eqs[i] = p.eqs[i].remap(colmap, ncols)
	}
	//
	for i := range p.ineqs {
		p.ineqs[i] = p.ineqs[i].remap(colmap, ncols)
	}
	//
	for i := range p.divs {
		p.divs[i].arg = p.divs[i].arg.remap(colmap, ncols)
	}
	//
	p.nexist = 0
}

// copyInto merges the constraints of src into dst, mapping src's parameter
// and dimension columns through colmap.  Divisions of src become fresh
// divisions of dst.  Returns the extended column map covering src divisions.
func (dst *system) copyInto(src *system, colmap []int) []int {
	base := src.nparam + src.ndim + src.nexist
	fullmap := make([]int, base+len(src.divs))
	copy(fullmap, colmap)
	//
	for i, d := range src.divs {
		// later division columns are always zero in this argument
		argmap := make([]int, len(d.arg.co))
		copy(argmap, fullmap[:base+i])
		//
		for j := base + i; j < len(argmap); j++ {
			argmap[j] = -1
		}
		//
		arg := d.arg.remap(argmap, dst.ncols())
		fullmap[base+i] = dst.addDiv(arg, d.den)
	}
	//
	for _, eq := range src.eqs {
		dst.addEq(eq.remap(fullmap, dst.ncols()))
	}
	//
	for _, iq := range src.ineqs {
		dst.addIneq(iq.remap(fullmap, dst.ncols()))
	}
	//
	return fullmap
}

// isEmpty conservatively decides whether this system has no rational
// solution.  Since every value of interest is integral, rational emptiness
// implies integer emptiness; the converse approximation only ever makes the
// legality oracle stricter.
func (p *system) isEmpty() bool {
	q := p.clone()
	//
	for col := 0; col < q.ncols(); col++ {
		q.eliminateOne(col)
	}
	// all coefficients are now zero; check residual constants
	for _, eq := range q.eqs {
		if eq.k.Sign() != 0 {
			return true
		}
	}
	//
	for _, iq := range q.ineqs {
		if iq.k.Sign() < 0 {
			return true
		}
	}
	//
	return false
}
