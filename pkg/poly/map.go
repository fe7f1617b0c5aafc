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

// BasicMap is a conjunction of affine constraints relating an input tuple to
// an output tuple.
type BasicMap struct {
	// Space of this relation; never a set space.
	Space *Space
	sys   system
}

// NewBasicMap constructs the universal relation over the given space.
func NewBasicMap(space *Space) *BasicMap {
	return &BasicMap{space, newSystem(len(space.Params), space.Dim())}
}

// BasicMapFromAffs constructs the graph { in -> [a_0(in), ..., a_k(in)] }
// of the given expressions, all defined over the same domain tuple.  Their
// parameter lists are merged, so the expressions may mention different
// parameters.
func BasicMapFromAffs(out Tuple, affs []*Aff) *BasicMap {
	if len(affs) != out.Arity() {
		panic("arity mismatch between output tuple and expressions")
	}
	//
	domain := affs[0].Space
	params := domain.Params
	//
	for _, a := range affs[1:] {
		params, _, _ = AlignParams(params, a.Space.Params)
	}
	//
	space := NewMapSpace(params, domain.Out, out)
	m := NewBasicMap(space)
	//
	var (
		nparam = len(space.Params)
		nin    = space.In.Arity()
	)
	//
	for j, a := range affs {
		if !a.Space.In.Equals(domain.In) || !a.Space.Out.Equals(domain.Out) {
			panic("expressions of one graph must share a domain")
		}
		// place the expression's parameters within the merged list
		_, _, colmap := AlignParams(params, a.Space.Params)
		for d := 0; d < nin; d++ {
			colmap = append(colmap, nparam+d)
		}
		// out_j - a(in) == 0
		row := embedAff(&m.sys, a, colmap)
		row = row.scale(bigRatMinusOne())
		row.co[nparam+nin+j].Add(row.co[nparam+nin+j], bigRatOne())
		m.sys.addEq(row)
	}
	//
	return m
}

// Clone creates a deep copy of this relation.
func (p *BasicMap) Clone() *BasicMap {
	return &BasicMap{p.Space, p.sys.clone()}
}

// AddEquality constrains this relation with expr == 0, where expr is defined
// over [in; out] dimensions.
func (p *BasicMap) AddEquality(expr *Aff) {
	row := embedAff(&p.sys, expr, identityMap(len(p.Space.Params)+p.Space.Dim()))
	p.sys.addEq(row)
}

// AddInequality constrains this relation with expr >= 0.
func (p *BasicMap) AddInequality(expr *Aff) {
	row := embedAff(&p.sys, expr, identityMap(len(p.Space.Params)+p.Space.Dim()))
	p.sys.addIneq(row)
}

// IsEmpty conservatively decides whether this relation is empty.
func (p *BasicMap) IsEmpty() bool {
	return p.sys.isEmpty()
}

// AlignParams re-expresses this relation over an extended parameter list.
func (p *BasicMap) AlignParams(params []string) *BasicMap {
	if slices.Equal(p.Space.Params, params) {
		return p
	}
	//
	space := NewMapSpace(params, p.Space.In, p.Space.Out)
	r := NewBasicMap(space)
	colmap := make([]int, len(p.Space.Params)+p.Space.Dim())
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
	for i := 0; i < p.Space.Dim(); i++ {
		colmap[len(p.Space.Params)+i] = len(params) + i
	}
	//
	r.sys.copyInto(&p.sys, colmap)
	//
	return r
}

// Inverse swaps the input and output tuples of this relation.
func (p *BasicMap) Inverse() *BasicMap {
	var (
		nparam = len(p.Space.Params)
		nin    = p.Space.In.Arity()
		nout   = p.Space.Out.Arity()
		r      = NewBasicMap(p.Space.Reverse())
	)
	//
	colmap := make([]int, nparam+nin+nout)
	//
	for i := 0; i < nparam; i++ {
		colmap[i] = i
	}
	// inputs become outputs
	for i := 0; i < nin; i++ {
		colmap[nparam+i] = nparam + nout + i
	}
	// outputs become inputs
	for i := 0; i < nout; i++ {
		colmap[nparam+nin+i] = nparam + i
	}
	//
	r.sys.copyInto(&p.sys, colmap)
	//
	return r
}

// ApplyRange composes this relation A -> B with other B -> C, producing the
// relation A -> C.
func (p *BasicMap) ApplyRange(other *BasicMap) *BasicMap {
	if !p.Space.Out.Equals(other.Space.In) {
		panic(fmt.Sprintf("composing through mismatched tuples (%s vs %s)", p.Space.Out, other.Space.In))
	}
	//
	params, _, _ := AlignParams(p.Space.Params, other.Space.Params)
	lhs := p.AlignParams(params)
	rhs := other.AlignParams(params)
	//
	var (
		nparam = len(params)
		nA     = lhs.Space.In.Arity()
		nB     = lhs.Space.Out.Arity()
		nC     = rhs.Space.Out.Arity()
		r      = NewBasicMap(NewMapSpace(params, lhs.Space.In, rhs.Space.Out))
	)
	//
	mid := r.sys.addExist(nB)
	// embed lhs with B landing in the existential block
	lmap := make([]int, nparam+nA+nB)
	//
	for i := 0; i < nparam+nA; i++ {
		lmap[i] = i
	}
	//
	for i := 0; i < nB; i++ {
		lmap[nparam+nA+i] = mid + i
	}
	//
	r.sys.copyInto(&lhs.sys, lmap)
	// embed rhs with B landing in the existential block
	rmap := make([]int, nparam+nB+nC)
	//
	for i := 0; i < nparam; i++ {
		rmap[i] = i
	}
	//
	for i := 0; i < nB; i++ {
		rmap[nparam+i] = mid + i
	}
	//
	for i := 0; i < nC; i++ {
		rmap[nparam+nB+i] = nparam + nA + i
	}
	//
	r.sys.copyInto(&rhs.sys, rmap)
	r.sys.quantify()
	//
	return r
}

// Intersect conjoins the constraints of two relations over the same tuples.
func (p *BasicMap) Intersect(other *BasicMap) *BasicMap {
	if !p.Space.In.Equals(other.Space.In) || !p.Space.Out.Equals(other.Space.Out) {
		panic(fmt.Sprintf("intersecting relations over distinct spaces (%s vs %s)", p.Space, other.Space))
	}
	//
	params, _, _ := AlignParams(p.Space.Params, other.Space.Params)
	r := p.AlignParams(params).Clone()
	o := other.AlignParams(params)
	r.sys.copyInto(&o.sys, identityMap(len(params)+r.Space.Dim()))
	//
	return r
}

// IntersectDomain restricts the input tuple of this relation to the given
// set.
func (p *BasicMap) IntersectDomain(dom *BasicSet) *BasicMap {
	if !p.Space.In.Equals(dom.Space.Out) {
		panic(fmt.Sprintf("domain tuple mismatch (%s vs %s)", p.Space.In, dom.Space.Out))
	}
	//
	params, _, _ := AlignParams(p.Space.Params, dom.Space.Params)
	r := p.AlignParams(params).Clone()
	d := dom.AlignParams(params)
	r.sys.copyInto(&d.sys, offsetMap(len(params), d.Space.Out.Arity(), len(params)))
	//
	return r
}

// IntersectRange restricts the output tuple of this relation to the given
// set.
func (p *BasicMap) IntersectRange(ran *BasicSet) *BasicMap {
	if !p.Space.Out.Equals(ran.Space.Out) {
		panic(fmt.Sprintf("range tuple mismatch (%s vs %s)", p.Space.Out, ran.Space.Out))
	}
	//
	params, _, _ := AlignParams(p.Space.Params, ran.Space.Params)
	r := p.AlignParams(params).Clone()
	s := ran.AlignParams(params)
	offset := len(params) + r.Space.In.Arity()
	r.sys.copyInto(&s.sys, offsetMap(len(params), s.Space.Out.Arity(), offset))
	//
	return r
}

// Deltas computes { out - in } for a relation whose tuples have equal arity.
func (p *BasicMap) Deltas() *BasicSet {
	var (
		nparam = len(p.Space.Params)
		n      = p.Space.In.Arity()
	)
	//
	if n != p.Space.Out.Arity() {
		panic("deltas require equal arities")
	}
	//
	dims := make([]string, n)
	for i := range dims {
		dims[i] = fmt.Sprintf("d%d", i)
	}
	//
	r := NewBasicSet(NewSetSpace(p.Space.Params, Tuple{"", dims}))
	ex := r.sys.addExist(2 * n)
	// embed the relation over the existential block
	colmap := make([]int, nparam+2*n)
	//
	for i := 0; i < nparam; i++ {
		colmap[i] = i
	}
	//
	for i := 0; i < 2*n; i++ {
		colmap[nparam+i] = ex + i
	}
	//
	r.sys.copyInto(&p.sys, colmap)
	// delta_j - out_j + in_j == 0
	for j := 0; j < n; j++ {
		row := newVec(r.sys.ncols())
		row.co[nparam+j].SetInt64(1)
		row.co[ex+j].SetInt64(1)
		row.co[ex+n+j].SetInt64(-1)
		r.sys.addEq(row)
	}
	//
	r.sys.quantify()
	//
	return r
}

// Range projects this relation onto its output tuple.
func (p *BasicMap) Range() *BasicSet {
	var (
		nparam = len(p.Space.Params)
		nin    = p.Space.In.Arity()
		nout   = p.Space.Out.Arity()
	)
	//
	r := NewBasicSet(NewSetSpace(p.Space.Params, p.Space.Out))
	ex := r.sys.addExist(nin)
	colmap := make([]int, nparam+nin+nout)
	//
	for i := 0; i < nparam; i++ {
		colmap[i] = i
	}
	//
	for i := 0; i < nin; i++ {
		colmap[nparam+i] = ex + i
	}
	//
	for i := 0; i < nout; i++ {
		colmap[nparam+nin+i] = nparam + i
	}
	//
	r.sys.copyInto(&p.sys, colmap)
	r.sys.quantify()
	//
	return r
}

// SolveInputs solves the equality constraints of this relation for every
// input dimension, expressing each as an affine function of the parameters
// and output dimensions.  Division columns participate as plain unknowns,
// which is what makes tiled schedules invertible.  Fails if some input
// dimension is not determined by the equalities.
func (p *BasicMap) SolveInputs() ([]*Aff, error) {
	var (
		nparam = len(p.Space.Params)
		nin    = p.Space.In.Arity()
		nout   = p.Space.Out.Arity()
		sys    = p.sys.clone()
	)
	// unknowns are the input dims followed by the division columns
	unknowns := make([]int, 0, nin+len(sys.divs))
	//
	for i := 0; i < nin; i++ {
		unknowns = append(unknowns, nparam+i)
	}
	//
	divBase := nparam + sys.ndim + sys.nexist
	//
	for i := range sys.divs {
		unknowns = append(unknowns, divBase+i)
	}
	// identical floor terms embedded by separate expressions are one value
	for i := range sys.divs {
		for j := i + 1; j < len(sys.divs); j++ {
			a, b := sys.divs[i].arg.extend(sys.ncols()), sys.divs[j].arg.extend(sys.ncols())
			same := sys.divs[i].den.Cmp(sys.divs[j].den) == 0 && a.k.Cmp(b.k) == 0
			for c := 0; same && c < len(a.co); c++ {
				same = a.co[c].Cmp(b.co[c]) == 0
			}
			//
			if same {
				eq := newVec(sys.ncols())
				eq.co[divBase+i].SetInt64(1)
				eq.co[divBase+j].SetInt64(-1)
				sys.eqs = append(sys.eqs, eq)
			}
		}
	}
	// forward elimination: solve one equality per unknown
	solutions := make(map[int]vec)
	//
	for _, col := range unknowns {
		for i, eq := range sys.eqs {
			if eq.co[col].Sign() == 0 {
				continue
			}
			// normalise so the unknown has coefficient one
			inv := new(big.Rat).Inv(eq.co[col])
			solved := eq.scale(inv)
			sys.eqs = append(sys.eqs[:i:i], sys.eqs[i+1:]...)
			// substitute into the remaining equalities
			for j := range sys.eqs {
				sys.eqs[j] = substitute(sys.eqs[j], solved, col)
			}
			//
			solutions[col] = solved
			//
			break
		}
	}
	// back substitution until solutions mention unknowns no more
	for changed := true; changed; {
		changed = false
		//
		for col := range solutions {
			solved := solutions[col]
			//
			for _, other := range unknowns {
				if other != col && solved.co[other].Sign() != 0 {
					dep, ok := solutions[other]
					if !ok {
						continue
					}
					//
					solved = substitute(solved, dep, other)
					solutions[col] = solved
					changed = true
				}
			}
		}
	}
	// render each input dimension over [params | out]
	space := NewSetSpace(p.Space.Params, p.Space.Out)
	result := make([]*Aff, nin)
	//
	for i := 0; i < nin; i++ {
		col := nparam + i
		//
		solved, ok := solutions[col]
		if !ok {
			return nil, fmt.Errorf("input dimension %d undetermined", i)
		}
		// solved reads col + rest == 0, hence col == -rest
		rest := solved.clone()
		rest.co[col].SetInt64(0)
		rest = rest.scale(big.NewRat(-1, 1))
		//
		a := NewZeroAff(space)
		//
		for j := 0; j < nparam; j++ {
			a.expr.co[j].Set(rest.co[j])
		}
		//
		for j := 0; j < nout; j++ {
			a.expr.co[nparam+j].Set(rest.co[nparam+nin+j])
		}
		//
		a.expr.k.Set(rest.k)
		// anything else left is an unsolved unknown
		for _, col := range unknowns {
			if rest.co[col].Sign() != 0 {
				return nil, fmt.Errorf("input dimension %d depends on an unsolved unknown", i)
			}
		}
		//
		result[i] = a
	}
	//
	return result, nil
}

func (p *BasicMap) String() string {
	names := systemNames(p.Space, &p.sys)
	head := fmt.Sprintf("%s -> %s", p.Space.In.String(), p.Space.Out.String())
	constraints := renderConstraints(&p.sys, names)
	//
	if constraints != "" {
		head = fmt.Sprintf("%s : %s", head, constraints)
	}
	//
	return wrapNotation(p.Space.Params, head)
}

// Map is a union of basic relations over a common pair of tuples.
type Map struct {
	// Space of this relation; never a set space.
	Space  *Space
	Basics []*BasicMap
}

// NewMap constructs an empty relation over the given space.
func NewMap(space *Space) *Map {
	return &Map{space, nil}
}

// MapFromBasics wraps the given basic relations, which must share tuples.
func MapFromBasics(basics ...*BasicMap) *Map {
	if len(basics) == 0 {
		panic("map requires at least one basic map")
	}
	//
	m := NewMap(basics[0].Space)
	m.Basics = append(m.Basics, basics...)
	//
	return m
}

// Clone creates a deep copy of this relation.
func (p *Map) Clone() *Map {
	r := NewMap(p.Space)
	for _, b := range p.Basics {
		r.Basics = append(r.Basics, b.Clone())
	}
	//
	return r
}

// IsEmpty conservatively decides whether this relation is empty.
func (p *Map) IsEmpty() bool {
	for _, b := range p.Basics {
		if !b.IsEmpty() {
			return false
		}
	}
	//
	return true
}

// Union combines two relations over the same tuples.
func (p *Map) Union(other *Map) *Map {
	params, _, _ := AlignParams(p.Space.Params, other.Space.Params)
	r := NewMap(NewMapSpace(params, p.Space.In, p.Space.Out))
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

// Inverse swaps the tuples of this relation.
func (p *Map) Inverse() *Map {
	r := NewMap(p.Space.Reverse())
	for _, b := range p.Basics {
		r.Basics = append(r.Basics, b.Inverse())
	}
	//
	return r
}

// ApplyRange composes this relation with another, pairwise over basics.
func (p *Map) ApplyRange(other *Map) *Map {
	params, _, _ := AlignParams(p.Space.Params, other.Space.Params)
	r := NewMap(NewMapSpace(params, p.Space.In, other.Space.Out))
	//
	for _, a := range p.Basics {
		for _, b := range other.Basics {
			r.Basics = append(r.Basics, a.ApplyRange(b))
		}
	}
	//
	return r
}

// Intersect computes the pointwise intersection of two relations.
func (p *Map) Intersect(other *Map) *Map {
	params, _, _ := AlignParams(p.Space.Params, other.Space.Params)
	r := NewMap(NewMapSpace(params, p.Space.In, p.Space.Out))
	//
	for _, a := range p.Basics {
		for _, b := range other.Basics {
			r.Basics = append(r.Basics, a.Intersect(b))
		}
	}
	//
	return r
}

// Deltas computes the union of per-basic delta sets.
func (p *Map) Deltas() *Set {
	dims := p.Space.In.Arity()
	names := make([]string, dims)
	//
	for i := range names {
		names[i] = fmt.Sprintf("d%d", i)
	}
	//
	r := NewSet(NewSetSpace(p.Space.Params, Tuple{"", names}))
	//
	for _, b := range p.Basics {
		r.Basics = append(r.Basics, b.Deltas())
	}
	//
	return r
}

// Range projects this relation onto its output tuple.
func (p *Map) Range() *Set {
	r := NewSet(NewSetSpace(p.Space.Params, p.Space.Out))
	for _, b := range p.Basics {
		r.Basics = append(r.Basics, b.Range())
	}
	//
	return r
}

func (p *Map) String() string {
	var pieces []string
	//
	for _, b := range p.Basics {
		names := systemNames(b.Space, &b.sys)
		head := fmt.Sprintf("%s -> %s", b.Space.In.String(), b.Space.Out.String())
		//
		if cs := renderConstraints(&b.sys, names); cs != "" {
			head = fmt.Sprintf("%s : %s", head, cs)
		}
		//
		pieces = append(pieces, head)
	}
	//
	return wrapNotation(p.Space.Params, strings.Join(pieces, "; "))
}

// LexLT constructs the strict lexicographic order { x -> y : x <lex y } over
// an anonymous n-dimensional space.  The standard disjunctive encoding has
// one basic relation per position: equal on the prefix, strictly ordered at
// the position itself.  Strictness uses y_j >= x_j + 1, exploiting
// integrality.
func LexLT(params []string, n int) *Map {
	dims := make([]string, n)
	for i := range dims {
		dims[i] = fmt.Sprintf("d%d", i)
	}
	//
	tuple := Tuple{"", dims}
	space := NewMapSpace(params, tuple, tuple)
	r := NewMap(space)
	nparam := len(params)
	//
	for j := 0; j < n; j++ {
		b := NewBasicMap(space)
		// x_i == y_i for i < j
		for i := 0; i < j; i++ {
			row := newVec(b.sys.ncols())
			row.co[nparam+i].SetInt64(-1)
			row.co[nparam+n+i].SetInt64(1)
			b.sys.addEq(row)
		}
		// y_j - x_j - 1 >= 0
		row := newVec(b.sys.ncols())
		row.co[nparam+j].SetInt64(-1)
		row.co[nparam+n+j].SetInt64(1)
		row.k.SetInt64(-1)
		b.sys.addIneq(row)
		//
		r.Basics = append(r.Basics, b)
	}
	//
	return r
}

// LexLE constructs the non-strict lexicographic order { x -> y : x <=lex y }
// over an anonymous n-dimensional space: the strict order extended with one
// disjunct equating the tuples.
func LexLE(params []string, n int) *Map {
	r := LexLT(params, n)
	nparam := len(params)
	//
	b := NewBasicMap(r.Space)
	// x_i == y_i for all i
	for i := 0; i < n; i++ {
		row := newVec(b.sys.ncols())
		row.co[nparam+i].SetInt64(-1)
		row.co[nparam+n+i].SetInt64(1)
		b.sys.addEq(row)
	}
	//
	r.Basics = append(r.Basics, b)
	//
	return r
}
