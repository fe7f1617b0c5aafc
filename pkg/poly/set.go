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
	"fmt"
	"math/big"
	"slices"
	"strings"
)

// BasicSet is a conjunction of affine constraints over a single tuple.
type BasicSet struct {
	// Space of this set; always a set space.
	Space *Space
	sys   system
}

// NewBasicSet constructs the universe set over the given space.
func NewBasicSet(space *Space) *BasicSet {
	return &BasicSet{space, newSystem(len(space.Params), space.Out.Arity())}
}

// Clone creates a deep copy of this set.
func (p *BasicSet) Clone() *BasicSet {
	return &BasicSet{p.Space, p.sys.clone()}
}

// AddEquality constrains this set with expr == 0.
func (p *BasicSet) AddEquality(expr *Aff) {
	row := embedAff(&p.sys, expr, identityMap(len(p.Space.Params)+p.Space.Out.Arity()))
	p.sys.addEq(row)
}

// AddInequality constrains this set with expr >= 0.
func (p *BasicSet) AddInequality(expr *Aff) {
	row := embedAff(&p.sys, expr, identityMap(len(p.Space.Params)+p.Space.Out.Arity()))
	p.sys.addIneq(row)
}

// IsEmpty conservatively decides whether this set contains no point.
func (p *BasicSet) IsEmpty() bool {
	return p.sys.isEmpty()
}

// Intersect conjoins the constraints of two sets over the same space.
func (p *BasicSet) Intersect(other *BasicSet) *BasicSet {
	if !p.Space.Equals(other.Space) {
		panic(fmt.Sprintf("intersecting sets over distinct spaces (%s vs %s)", p.Space, other.Space))
	}
	//
	r := p.Clone()
	r.sys.copyInto(&other.sys, identityMap(len(p.Space.Params)+p.Space.Out.Arity()))
	//
	return r
}

// AlignParams re-expresses this set over an extended parameter list, which
// must include every parameter of the current space.
func (p *BasicSet) AlignParams(params []string) *BasicSet {
	if slices.Equal(p.Space.Params, params) {
		return p
	}
	//
	space := NewSetSpace(params, p.Space.Out)
	r := NewBasicSet(space)
	colmap := make([]int, len(p.Space.Params)+p.Space.Out.Arity())
	//
	for i, name := range p.Space.Params {
		j := space.ParamIndex(name)
		if j < 0 {
			panic(fmt.Sprintf("parameter %s lost during alignment", name))
		}
		//
		colmap[i] = j
	}
	//
	for i := 0; i < p.Space.Out.Arity(); i++ {
		colmap[len(p.Space.Params)+i] = len(params) + i
	}
	//
	r.sys.copyInto(&p.sys, colmap)
	//
	return r
}

// Bounds extracts the lower and upper bounds this set imposes on the given
// dimension, treating every later dimension as existentially quantified and
// every earlier dimension as symbolic.  A lower bound (expr, den) reads
// dim >= expr/den and an upper bound dim <= expr/den, with den > 0.  Bound
// expressions live over the space restricted to the earlier dimensions.
func (p *BasicSet) Bounds(dim int) (lower []Bound, upper []Bound) {
	var (
		nparam = len(p.Space.Params)
		sys    = p.sys.clone()
		col    = nparam + dim
	)
	// substitute away division columns pinned by an equality (e.g. a tile
	// counter equated with its floor term), so bounds read off plain
	// dimensions wherever possible
	divBase0 := nparam + sys.ndim + sys.nexist
	//
	for i := range sys.divs {
		for _, eq := range sys.eqs {
			if eq.co[divBase0+i].Sign() != 0 {
				sys.eliminateOne(divBase0 + i)
				break
			}
		}
	}
	// project away later dimensions
	for i := dim + 1; i < sys.ndim; i++ {
		sys.eliminateOne(nparam + i)
	}
	// project away divisions which lost their definition; elimination may
	// strip further definitions, so iterate to a fixpoint
	divBase := nparam + sys.ndim + sys.nexist
	eliminated := make([]bool, len(sys.divs))
	//
	for changed := true; changed; {
		changed = false
		//
		for i := range sys.divs {
			if !eliminated[i] && sys.divs[i].arg.isZero() && sys.divs[i].arg.k.Sign() == 0 {
				sys.eliminateOne(divBase + i)
				//
				eliminated[i] = true
				changed = true
			}
		}
	}
	// restricted space of bound expressions
	outer := Tuple{p.Space.Out.Name, p.Space.Out.Dims[:dim]}
	space := NewSetSpace(p.Space.Params, outer)
	// equalities contribute twice
	rows := make([]vec, 0, len(sys.ineqs)+2*len(sys.eqs))
	rows = append(rows, sys.ineqs...)
	//
	for _, eq := range sys.eqs {
		rows = append(rows, eq, eq.scale(big.NewRat(-1, 1)))
	}
	//
	for _, row := range rows {
		c := row.co[col]
		if c.Sign() == 0 {
			continue
		}
		// c*dim + rest >= 0
		rest := row.clone()
		rest.co[col].SetInt64(0)
		//
		if c.Sign() > 0 {
			// dim >= -rest/c
			expr := rowToAff(space, &sys, rest.scale(new(big.Rat).Inv(c)).scale(big.NewRat(-1, 1)))
			if expr != nil {
				lower = append(lower, normaliseBound(expr))
			}
		} else {
			// dim <= rest/(-c)
			abs := new(big.Rat).Neg(c)
			expr := rowToAff(space, &sys, rest.scale(new(big.Rat).Inv(abs)))
			//
			if expr != nil {
				upper = append(upper, normaliseBound(expr))
			}
		}
	}
	//
	return lower, upper
}

// Bound is a rational bound expr/den on a loop dimension, with den > 0.
type Bound struct {
	Expr *Aff
	Den  *big.Int
}

// normaliseBound clears rational coefficients out of an expression by scaling
// it up into an integral numerator over a positive denominator.
func normaliseBound(expr *Aff) Bound {
	den := big.NewInt(1)
	// collect the lcm of all coefficient denominators
	lcm := func(d *big.Int) {
		g := new(big.Int).GCD(nil, nil, den, d)
		den.Div(new(big.Int).Mul(den, d), g)
	}
	//
	for _, c := range expr.expr.co {
		lcm(c.Denom())
	}
	//
	lcm(expr.expr.k.Denom())
	//
	if den.Cmp(big.NewInt(1)) == 0 {
		return Bound{expr, big.NewInt(1)}
	}
	//
	return Bound{expr.Scale(new(big.Rat).SetInt(den)), new(big.Int).Set(den)}
}

// Set is a union of basic sets over a common space.
type Set struct {
	// Space of this set; always a set space.
	Space  *Space
	Basics []*BasicSet
}

// NewSet constructs an empty set over the given space.
func NewSet(space *Space) *Set {
	return &Set{space, nil}
}

// SetFromBasics wraps the given basic sets, which must share a space.
func SetFromBasics(basics ...*BasicSet) *Set {
	if len(basics) == 0 {
		panic("set requires at least one basic set")
	}
	//
	s := NewSet(basics[0].Space)
	//
	for _, b := range basics {
		s.Basics = append(s.Basics, b)
	}
	//
	return s
}

// Clone creates a deep copy of this set.
func (p *Set) Clone() *Set {
	r := NewSet(p.Space)
	for _, b := range p.Basics {
		r.Basics = append(r.Basics, b.Clone())
	}
	//
	return r
}

// IsEmpty conservatively decides whether this set contains no point.
func (p *Set) IsEmpty() bool {
	for _, b := range p.Basics {
		if !b.IsEmpty() {
			return false
		}
	}
	//
	return true
}

// Union combines two sets over the same tuple.
func (p *Set) Union(other *Set) *Set {
	params, _, _ := AlignParams(p.Space.Params, other.Space.Params)
	r := NewSet(NewSetSpace(params, p.Space.Out))
	//
	for _, b := range p.Basics {
		r.Basics = append(r.Basics, b.AlignParams(params))
	}
	//
	for _, b := range other.Basics {
		r.Basics = append(r.Basics, b.AlignParams(params))
	}
	//
	return r
}

// Intersect computes the pointwise intersection of two sets.
func (p *Set) Intersect(other *Set) *Set {
	params, _, _ := AlignParams(p.Space.Params, other.Space.Params)
	r := NewSet(NewSetSpace(params, p.Space.Out))
	//
	for _, a := range p.Basics {
		for _, b := range other.Basics {
			r.Basics = append(r.Basics, a.AlignParams(params).Intersect(b.AlignParams(params)))
		}
	}
	//
	return r
}

// IsSubset conservatively checks whether this set is contained in the other.
// It decides the common cases (identical constraint systems, or a basic set
// of the other syntactically implied) and otherwise answers false.
func (p *Set) IsSubset(other *Set) bool {
	// every basic of p must be covered by some basic of other
	for _, a := range p.Basics {
		covered := false
		//
		for _, b := range other.Basics {
			if basicImplies(a, b) {
				covered = true
				break
			}
		}
		//
		if !covered {
			return false
		}
	}
	//
	return true
}

// basicImplies checks a ⊆ b by testing, for each constraint of b, that a
// conjoined with its negation is empty.
func basicImplies(a *BasicSet, b *BasicSet) bool {
	if !a.Space.Out.Equals(b.Space.Out) {
		return false
	}
	//
	params, _, _ := AlignParams(a.Space.Params, b.Space.Params)
	aa := a.AlignParams(params)
	bb := b.AlignParams(params)
	base := identityMap(len(params) + aa.Space.Out.Arity())
	//
	check := func(row vec, eq bool) bool {
		// copy b's divisions so the row can be interpreted
		probe := aa.Clone()
		rowmap := probe.sys.copyInto(&bb.sys, base)
		// drop the copied constraints; only the division definitions matter
		probe.sys.eqs = probe.sys.eqs[:len(aa.sys.eqs)]
		probe.sys.ineqs = probe.sys.ineqs[:len(aa.sys.ineqs)+2*len(bb.sys.divs)]
		// negate: row >= 0 becomes -row - 1 >= 0
		neg := row.remap(rowmap, probe.sys.ncols()).scale(big.NewRat(-1, 1))
		neg.k.Sub(neg.k, big.NewRat(1, 1))
		probe.sys.addIneq(neg)
		//
		if !probe.sys.isEmpty() {
			return false
		}
		//
		if eq {
			// also check row <= 0 direction
			probe = aa.Clone()
			rowmap = probe.sys.copyInto(&bb.sys, base)
			probe.sys.eqs = probe.sys.eqs[:len(aa.sys.eqs)]
			probe.sys.ineqs = probe.sys.ineqs[:len(aa.sys.ineqs)+2*len(bb.sys.divs)]
			//
			pos := row.remap(rowmap, probe.sys.ncols())
			pos.k.Sub(pos.k, big.NewRat(1, 1))
			probe.sys.addIneq(pos)
			//
			return probe.sys.isEmpty()
		}
		//
		return true
	}
	//
	for _, eq := range bb.sys.eqs {
		if !check(eq, true) {
			return false
		}
	}
	//
	for _, iq := range bb.sys.ineqs {
		if !check(iq, false) {
			return false
		}
	}
	//
	return true
}

func (p *Set) String() string {
	var pieces []string
	for _, b := range p.Basics {
		pieces = append(pieces, b.body())
	}
	//
	return wrapNotation(p.Space.Params, strings.Join(pieces, "; "))
}

func (p *BasicSet) String() string {
	return wrapNotation(p.Space.Params, p.body())
}

// body renders the piece between the braces.
func (p *BasicSet) body() string {
	names := systemNames(p.Space, &p.sys)
	head := p.Space.Out.String()
	constraints := renderConstraints(&p.sys, names)
	//
	if constraints == "" {
		return head
	}
	//
	return fmt.Sprintf("%s : %s", head, constraints)
}

func wrapNotation(params []string, body string) string {
	if len(params) > 0 {
		return fmt.Sprintf("[%s] -> { %s }", strings.Join(params, ", "), body)
	}
	//
	return fmt.Sprintf("{ %s }", body)
}

// systemNames builds printable column names for a set-shaped system.
func systemNames(space *Space, sys *system) []string {
	names := make([]string, sys.ncols())
	copy(names, space.Params)
	copy(names[sys.nparam:], space.In.Dims)
	copy(names[sys.nparam+space.In.Arity():], space.Out.Dims)
	//
	for i := sys.nparam + sys.ndim; i < sys.nparam+sys.ndim+sys.nexist; i++ {
		names[i] = fmt.Sprintf("e%d", i)
	}
	//
	divBase := sys.nparam + sys.ndim + sys.nexist
	//
	for i, d := range sys.divs {
		// later division columns are zero in the argument, so the partially
		// filled name table is safe here
		names[divBase+i] = fmt.Sprintf("floord(%s, %s)", renderExpr(d.arg, names), d.den)
	}
	//
	return names
}

func renderConstraints(sys *system, names []string) string {
	var parts []string
	//
	for _, eq := range sys.eqs {
		parts = append(parts, fmt.Sprintf("%s = 0", renderExpr(eq, names)))
	}
	//
	for _, iq := range sys.ineqs {
		parts = append(parts, fmt.Sprintf("%s >= 0", renderExpr(iq, names)))
	}
	//
	return strings.Join(parts, " and ")
}

