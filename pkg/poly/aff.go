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
	"strings"
)

// Aff is a quasi-affine expression over the dimensions and parameters of a
// set space, possibly involving integer floor divisions.  Affs are immutable
// value types; operations return fresh expressions.
type Aff struct {
	// Space is the domain this expression is defined over (a set space).
	Space *Space
	// expr holds the coefficients over [params | dims | divs] plus constant.
	expr vec
	// divs defines the floor-division columns, in order.
	divs []div
}

// NewZeroAff constructs the zero expression over the given space.
func NewZeroAff(space *Space) *Aff {
	ncols := len(space.Params) + space.Out.Arity()
	return &Aff{space, newVec(ncols), nil}
}

// NewConstAff constructs a constant expression over the given space.
func NewConstAff(space *Space, val int64) *Aff {
	a := NewZeroAff(space)
	a.expr.k.SetInt64(val)
	//
	return a
}

// NewVarAff constructs the expression which projects out dimension dim.
func NewVarAff(space *Space, dim int) *Aff {
	if dim < 0 || dim >= space.Out.Arity() {
		panic(fmt.Sprintf("dimension %d out of bounds for %s", dim, space))
	}
	//
	a := NewZeroAff(space)
	a.expr.co[len(space.Params)+dim].SetInt64(1)
	//
	return a
}

// NewParamAff constructs the expression coeff * param.
func NewParamAff(space *Space, coeff int64, param int) *Aff {
	if param < 0 || param >= len(space.Params) {
		panic(fmt.Sprintf("parameter %d out of bounds for %s", param, space))
	}
	//
	a := NewZeroAff(space)
	a.expr.co[param].SetInt64(coeff)
	//
	return a
}

func (p *Aff) clone() *Aff {
	divs := make([]div, len(p.divs))
	for i, d := range p.divs {
		divs[i] = d.clone()
	}
	//
	return &Aff{p.Space, p.expr.clone(), divs}
}

// baseCols returns the number of non-division columns.
func (p *Aff) baseCols() int {
	return len(p.Space.Params) + p.Space.Out.Arity()
}

// IsConstant checks whether this expression involves no dimension, parameter
// or division.
func (p *Aff) IsConstant() bool {
	return p.expr.isZero()
}

// Constant returns the constant term of this expression.
func (p *Aff) Constant() *big.Rat {
	return new(big.Rat).Set(p.expr.k)
}

// Coeff returns the coefficient of the given dimension.
func (p *Aff) Coeff(dim int) *big.Rat {
	return new(big.Rat).Set(p.expr.co[len(p.Space.Params)+dim])
}

// Add sums two expressions defined over the same space.
func (p *Aff) Add(other *Aff) *Aff {
	if !p.Space.Equals(other.Space) {
		panic(fmt.Sprintf("adding expressions over distinct spaces (%s vs %s)", p.Space, other.Space))
	}
	//
	r := p.clone()
	base := r.baseCols()
	ncols := base + len(r.divs) + len(other.divs)
	// make room for the other's divisions
	r.expr = r.expr.extend(ncols)
	// remap the other's columns past our divisions
	colmap := make([]int, base+len(other.divs))
	for i := 0; i < base; i++ {
		colmap[i] = i
	}
	//
	for i := range other.divs {
		colmap[base+i] = base + len(p.divs) + i
	}
	//
	for _, d := range other.divs {
		r.divs = append(r.divs, div{d.arg.remap(colmap, ncols), new(big.Int).Set(d.den)})
	}
	//
	r.expr = r.expr.addScaled(other.expr.remap(colmap, ncols), big.NewRat(1, 1))
	//
	return r.normalise()
}

// Sub subtracts another expression from this one.
func (p *Aff) Sub(other *Aff) *Aff {
	return p.Add(other.Scale(big.NewRat(-1, 1)))
}

// Scale multiplies this expression by a rational constant.
func (p *Aff) Scale(factor *big.Rat) *Aff {
	r := p.clone()
	r.expr = r.expr.scale(factor)
	//
	return r
}

// Neg negates this expression.
func (p *Aff) Neg() *Aff {
	return p.Scale(big.NewRat(-1, 1))
}

// FloorDiv constructs floor(this / den) for a strictly positive divisor.
// This expression must not itself contain divisions with rational
// coefficients; integral nesting is fine.
func (p *Aff) FloorDiv(den int64) *Aff {
	if den <= 0 {
		panic("floor division requires a positive divisor")
	}
	//
	r := p.clone()
	ncols := r.baseCols() + len(r.divs) + 1
	arg := r.expr.extend(ncols)
	// new div column takes the whole expression as argument
	r.divs = append(r.divs, div{arg, big.NewInt(den)})
	r.expr = newVec(ncols)
	r.expr.co[ncols-1].SetInt64(1)
	//
	return r
}

// normalise drops division columns with zero coefficient which no other
// division refers to.
func (p *Aff) normalise() *Aff {
	base := p.baseCols()
	// mark used divisions (transitively, scanning backwards)
	used := make([]bool, len(p.divs))
	//
	for i := len(p.divs) - 1; i >= 0; i-- {
		if p.expr.co[base+i].Sign() != 0 {
			used[i] = true
		}
		//
		if used[i] {
			for j := 0; j < i; j++ {
				if p.divs[i].arg.co[base+j].Sign() != 0 {
					used[j] = true
				}
			}
		}
	}
	// fast path: everything used
	all := true
	//
	for _, u := range used {
		all = all && u
	}
	//
	if all {
		return p
	}
	// rebuild without dead divisions
	colmap := make([]int, base+len(p.divs))
	ncols := base
	//
	for i := 0; i < base; i++ {
		colmap[i] = i
	}
	//
	var divs []div
	//
	for i, u := range used {
		if u {
			colmap[base+i] = ncols
			ncols++
		} else {
			colmap[base+i] = -1
		}
	}
	//
	remap := func(v vec) vec {
		r := newVec(ncols)
		for i, c := range v.co {
			if colmap[i] >= 0 {
				r.co[colmap[i]].Set(c)
			}
		}
		//
		r.k.Set(v.k)
		//
		return r
	}
	//
	for i, u := range used {
		if u {
			divs = append(divs, div{remap(p.divs[i].arg), new(big.Int).Set(p.divs[i].den)})
		}
	}
	//
	return &Aff{p.Space, remap(p.expr), divs}
}

// Equals checks structural equality of two expressions.
func (p *Aff) Equals(other *Aff) bool {
	if !p.Space.Equals(other.Space) || len(p.divs) != len(other.divs) {
		return false
	}
	//
	if p.expr.k.Cmp(other.expr.k) != 0 || len(p.expr.co) != len(other.expr.co) {
		return false
	}
	//
	for i := range p.expr.co {
		if p.expr.co[i].Cmp(other.expr.co[i]) != 0 {
			return false
		}
	}
	//
	for i := range p.divs {
		if p.divs[i].den.Cmp(other.divs[i].den) != 0 {
			return false
		}
		//
		for j := range p.divs[i].arg.co {
			if p.divs[i].arg.co[j].Cmp(other.divs[i].arg.co[j]) != 0 {
				return false
			}
		}
		//
		if p.divs[i].arg.k.Cmp(other.divs[i].arg.k) != 0 {
			return false
		}
	}
	//
	return true
}

// Eval evaluates this expression at concrete parameter and dimension
// values, applying floor semantics to every division.
func (p *Aff) Eval(params []int64, point []int64) *big.Rat {
	var (
		nparam = len(p.Space.Params)
		ndim   = p.Space.Out.Arity()
		vals   = make([]*big.Rat, p.baseCols()+len(p.divs))
	)
	//
	if len(params) != nparam || len(point) != ndim {
		panic("evaluation point has wrong arity")
	}
	//
	for i, v := range params {
		vals[i] = new(big.Rat).SetInt64(v)
	}
	//
	for i, v := range point {
		vals[nparam+i] = new(big.Rat).SetInt64(v)
	}
	//
	evalRow := func(row vec, upto int) *big.Rat {
		sum := new(big.Rat).Set(row.k)
		tmp := new(big.Rat)
		//
		for i := 0; i < upto; i++ {
			sum.Add(sum, tmp.Mul(row.co[i], vals[i]))
		}
		//
		return sum
	}
	//
	for i, d := range p.divs {
		arg := evalRow(d.arg, p.baseCols()+i)
		// floor(arg / den)
		quotient := new(big.Rat).Quo(arg, new(big.Rat).SetInt(d.den))
		floored := new(big.Int).Div(quotient.Num(), quotient.Denom())
		vals[p.baseCols()+i] = new(big.Rat).SetInt(floored)
	}
	//
	return evalRow(p.expr, len(vals))
}

// MacroUse tracks which helper macros rendered C expressions rely on, so
// that their definitions can be printed once up front.
type MacroUse struct {
	Floord bool
	Ceild  bool
	Min    bool
	Max    bool
}

// CExpr renders this expression as C source.  names gives the source-level
// names of the parameter and dimension columns, in order.  Floor divisions
// render through the floord macro; rational coefficients render as an exact
// integer division of the scaled numerator, which is only valid at points
// where that division is exact (loop strides guarantee this).
func (p *Aff) CExpr(names []string, use *MacroUse) string {
	den := big.NewInt(1)
	//
	gather := func(d *big.Int) {
		g := new(big.Int).GCD(nil, nil, den, d)
		den.Div(new(big.Int).Mul(den, d), g)
	}
	//
	for _, c := range p.expr.co {
		gather(c.Denom())
	}
	//
	gather(p.expr.k.Denom())
	//
	if den.Cmp(big.NewInt(1)) != 0 {
		scaled := p.Scale(new(big.Rat).SetInt(den))
		return fmt.Sprintf("(%s) / %s", scaled.CExpr(names, use), den)
	}
	//
	full := make([]string, p.baseCols()+len(p.divs))
	copy(full, names)
	//
	for i, d := range p.divs {
		use.Floord = true
		// truncate the argument to the columns preceding this division
		argv := newVec(p.baseCols() + i)
		//
		for j := range argv.co {
			argv.co[j].Set(d.arg.co[j])
		}
		//
		argv.k.Set(d.arg.k)
		arg := &Aff{p.Space, argv, p.divs[:i]}
		full[p.baseCols()+i] = fmt.Sprintf("floord(%s, %s)", arg.CExpr(names, use), d.den)
	}
	//
	return renderExpr(p.expr, full)
}

func (p *Aff) String() string {
	names := make([]string, p.baseCols()+len(p.divs))
	copy(names, p.Space.Params)
	copy(names[len(p.Space.Params):], p.Space.Out.Dims)
	//
	for i, d := range p.divs {
		names[p.baseCols()+i] = fmt.Sprintf("floord(%s, %s)", renderExpr(d.arg, names), d.den)
	}
	//
	return renderExpr(p.expr, names)
}

// renderExpr prints an affine row using the given column names.
func renderExpr(v vec, names []string) string {
	var (
		builder strings.Builder
		first   = true
	)
	//
	term := func(c *big.Rat, name string) {
		if c.Sign() == 0 {
			return
		}
		//
		if !first {
			if c.Sign() > 0 {
				builder.WriteString(" + ")
			} else {
				builder.WriteString(" - ")
			}
		} else if c.Sign() < 0 {
			builder.WriteString("-")
		}
		//
		first = false
		abs := new(big.Rat).Abs(c)
		//
		if name == "" {
			builder.WriteString(ratString(abs))
		} else if abs.Cmp(big.NewRat(1, 1)) == 0 {
			builder.WriteString(name)
		} else {
			builder.WriteString(fmt.Sprintf("%s*%s", ratString(abs), name))
		}
	}
	//
	for i, c := range v.co {
		term(c, names[i])
	}
	//
	if v.k.Sign() != 0 || first {
		term(v.k, "")
		//
		if first {
			builder.WriteString("0")
		}
	}
	//
	return builder.String()
}

func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	//
	return r.String()
}
