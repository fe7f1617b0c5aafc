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

// Piece pairs a domain with the affine value taken on it.  The value shares
// the domain's tuple; the domain may carry parameters the value does not
// mention (IntersectDomain widens only the domain).
type Piece struct {
	Domain *Set
	Value  *Aff
}

// Clone creates a deep copy of this piece.
func (p Piece) Clone() Piece {
	return Piece{p.Domain.Clone(), p.Value.clone()}
}

// UnionPwAff is a piecewise quasi-affine function defined over the instance
// sets of one or more statements.  It is an (unowned) value type; the owned
// wrapper is MultiUnionPwAff.
type UnionPwAff struct {
	Pieces []Piece
}

// NewUnionPwAff constructs an empty piecewise function.
func NewUnionPwAff(pieces ...Piece) UnionPwAff {
	return UnionPwAff{pieces}
}

// Clone creates a deep copy of this function.
func (p UnionPwAff) Clone() UnionPwAff {
	pieces := make([]Piece, len(p.Pieces))
	for i, piece := range p.Pieces {
		pieces[i] = piece.Clone()
	}
	//
	return UnionPwAff{pieces}
}

// UnionAdd combines two piecewise functions.  Pieces over the same tuple
// with structurally equal domains are summed pointwise; all other pieces are
// kept side by side, which is the isl union_add semantics restricted to the
// aligned-or-disjoint situations the transformations produce.
func (p UnionPwAff) UnionAdd(other UnionPwAff) UnionPwAff {
	r := p.Clone()
	//
	for _, piece := range other.Pieces {
		merged := false
		//
		for i, mine := range r.Pieces {
			if mine.Value.Space.Equals(piece.Value.Space) && setsEqual(mine.Domain, piece.Domain) {
				r.Pieces[i].Value = mine.Value.Add(piece.Value)
				merged = true
				//
				break
			}
		}
		//
		if !merged {
			r.Pieces = append(r.Pieces, piece.Clone())
		}
	}
	//
	return r
}

// IntersectDomain restricts each piece to the given union set, dropping
// pieces whose restricted domain is empty.
func (p UnionPwAff) IntersectDomain(dom *UnionSet) UnionPwAff {
	var pieces []Piece
	//
	for _, piece := range p.Pieces {
		s := dom.Lookup(piece.Domain.Space.Out.Name)
		if s == nil {
			continue
		}
		//
		restricted := piece.Domain.Intersect(s)
		if restricted.IsEmpty() {
			continue
		}
		//
		pieces = append(pieces, Piece{restricted, piece.Value.clone()})
	}
	//
	return UnionPwAff{pieces}
}

// Scale multiplies every piece value by a rational constant.
func (p UnionPwAff) Scale(factor *big.Rat) UnionPwAff {
	r := p.Clone()
	for i := range r.Pieces {
		r.Pieces[i].Value = r.Pieces[i].Value.Scale(factor)
	}
	//
	return r
}

// FloorDiv maps every piece value v to floor(v / den).
func (p UnionPwAff) FloorDiv(den int64) UnionPwAff {
	r := p.Clone()
	for i := range r.Pieces {
		r.Pieces[i].Value = r.Pieces[i].Value.FloorDiv(den)
	}
	//
	return r
}

// Mod maps every piece value v to v - den * floor(v / den).
func (p UnionPwAff) Mod(den int64) UnionPwAff {
	r := p.Clone()
	//
	for i := range r.Pieces {
		v := r.Pieces[i].Value
		floored := v.FloorDiv(den).Scale(new(big.Rat).SetInt64(den))
		r.Pieces[i].Value = v.Sub(floored)
	}
	//
	return r
}

func (p UnionPwAff) String() string {
	var pieces []string
	//
	for _, piece := range p.Pieces {
		head := fmt.Sprintf("%s -> [(%s)]", piece.Domain.Space.Out.String(), piece.Value.String())
		//
		var constraints []string
		//
		for _, b := range piece.Domain.Basics {
			names := systemNames(b.Space, &b.sys)
			if cs := renderConstraints(&b.sys, names); cs != "" {
				constraints = append(constraints, cs)
			}
		}
		//
		if len(constraints) > 0 {
			head = fmt.Sprintf("%s : %s", head, strings.Join(constraints, " or "))
		}
		//
		pieces = append(pieces, head)
	}
	//
	return fmt.Sprintf("{ %s }", strings.Join(pieces, "; "))
}

// setsEqual checks mutual containment of two sets.
func setsEqual(a *Set, b *Set) bool {
	return a.IsSubset(b) && b.IsSubset(a)
}

// MultiUnionPwAff is an owned, fixed-arity vector of piecewise quasi-affine
// functions sharing a named output tuple.  It is the partial-schedule payload
// of a band node.
type MultiUnionPwAff struct {
	ctx *Ctx
	// outName identifies the output tuple of this schedule block.
	outName string
	// members holds one piecewise function per output dimension.
	members []UnionPwAff
	freed   bool
}

// NewMultiUnionPwAff constructs an owned multi piecewise function.
func NewMultiUnionPwAff(ctx *Ctx, outName string, members ...UnionPwAff) *MultiUnionPwAff {
	ctx.retain()
	return &MultiUnionPwAff{ctx: ctx, outName: outName, members: members}
}

// Ctx returns the owning context.
func (p *MultiUnionPwAff) Ctx() *Ctx {
	return p.ctx
}

// Free releases this value against its context.  Freeing twice is a bug.
func (p *MultiUnionPwAff) Free() {
	if p.freed {
		panic("multi union pw aff freed twice")
	}
	//
	p.freed = true
	p.members = nil
	p.ctx.release()
}

// Copy creates a new owned copy of this value.
func (p *MultiUnionPwAff) Copy() *MultiUnionPwAff {
	p.check()
	//
	members := make([]UnionPwAff, len(p.members))
	for i, m := range p.members {
		members[i] = m.Clone()
	}
	//
	return NewMultiUnionPwAff(p.ctx, p.outName, members...)
}

// Dim returns the number of output dimensions.
func (p *MultiUnionPwAff) Dim() int {
	p.check()
	return len(p.members)
}

// OutName returns the output tuple identifier.
func (p *MultiUnionPwAff) OutName() string {
	p.check()
	return p.outName
}

// SetOutName renames the output tuple, consuming the operand.
func (p *MultiUnionPwAff) SetOutName(name string) *MultiUnionPwAff {
	p.check()
	//
	r := p.Copy()
	r.outName = name
	p.Free()
	//
	return r
}

// Member returns the piecewise function at the given output dimension.  The
// result is a deep copy and may be used freely.
func (p *MultiUnionPwAff) Member(i int) UnionPwAff {
	p.check()
	return p.members[i].Clone()
}

// UnionAdd combines two schedules memberwise, consuming both.  The output
// identifier of the receiver wins.
func (p *MultiUnionPwAff) UnionAdd(other *MultiUnionPwAff) *MultiUnionPwAff {
	p.check()
	other.check()
	//
	if len(p.members) != len(other.members) {
		panic("union_add requires equal dimensionality")
	}
	//
	members := make([]UnionPwAff, len(p.members))
	for i := range p.members {
		members[i] = p.members[i].UnionAdd(other.members[i])
	}
	//
	r := NewMultiUnionPwAff(p.ctx, p.outName, members...)
	p.Free()
	other.Free()
	//
	return r
}

// Add sums two schedules defined over identical piece domains, consuming
// both.  This is the shift operation's workhorse.
func (p *MultiUnionPwAff) Add(other *MultiUnionPwAff) *MultiUnionPwAff {
	return p.UnionAdd(other)
}

// IntersectDomain restricts every member to the given union set, consuming
// both operands.
func (p *MultiUnionPwAff) IntersectDomain(dom *UnionSet) *MultiUnionPwAff {
	p.check()
	//
	members := make([]UnionPwAff, len(p.members))
	for i := range p.members {
		members[i] = p.members[i].IntersectDomain(dom)
	}
	//
	r := NewMultiUnionPwAff(p.ctx, p.outName, members...)
	p.Free()
	dom.Free()
	//
	return r
}

// Scale multiplies every member by an integer constant, consuming the
// operand.
func (p *MultiUnionPwAff) Scale(factor int64) *MultiUnionPwAff {
	p.check()
	//
	members := make([]UnionPwAff, len(p.members))
	for i := range p.members {
		members[i] = p.members[i].Scale(new(big.Rat).SetInt64(factor))
	}
	//
	r := NewMultiUnionPwAff(p.ctx, p.outName, members...)
	p.Free()
	//
	return r
}

// FloorDiv maps every member value v to floor(v / den), consuming the
// operand.
func (p *MultiUnionPwAff) FloorDiv(den int64) *MultiUnionPwAff {
	p.check()
	//
	members := make([]UnionPwAff, len(p.members))
	for i := range p.members {
		members[i] = p.members[i].FloorDiv(den)
	}
	//
	r := NewMultiUnionPwAff(p.ctx, p.outName, members...)
	p.Free()
	//
	return r
}

// Mod maps every member value v to v mod den, consuming the operand.
func (p *MultiUnionPwAff) Mod(den int64) *MultiUnionPwAff {
	p.check()
	//
	members := make([]UnionPwAff, len(p.members))
	for i := range p.members {
		members[i] = p.members[i].Mod(den)
	}
	//
	r := NewMultiUnionPwAff(p.ctx, p.outName, members...)
	p.Free()
	//
	return r
}

// AsUnionMap converts this schedule block into its graph, a new owned
// relation from statement instances to output tuples.  The operand is not
// consumed.
func (p *MultiUnionPwAff) AsUnionMap() *UnionMap {
	p.check()
	//
	r := NewUnionMap(p.ctx)
	if len(p.members) == 0 {
		return r
	}
	// collect statement tuples from the first member
	for _, piece := range p.members[0].Pieces {
		var (
			affs   = make([]*Aff, len(p.members))
			domain = piece.Domain.Clone()
			ok     = true
		)
		//
		for i, member := range p.members {
			found := false
			//
			for _, q := range member.Pieces {
				if q.Domain.Space.Out.Name == piece.Domain.Space.Out.Name {
					affs[i] = q.Value
					domain = domain.Intersect(q.Domain)
					found = true
					//
					break
				}
			}
			//
			ok = ok && found
		}
		//
		if !ok {
			continue
		}
		//
		outDims := make([]string, len(p.members))
		for i := range outDims {
			outDims[i] = fmt.Sprintf("o%d", i)
		}
		//
		graph := BasicMapFromAffs(Tuple{p.outName, outDims}, affs)
		//
		for _, b := range domain.Basics {
			r.add(MapFromBasics(graph.IntersectDomain(b)))
		}
	}
	//
	return r
}

// Domain returns the union of piece domains of the first member as a new
// owned union set.  The operand is not consumed.
func (p *MultiUnionPwAff) Domain() *UnionSet {
	p.check()
	//
	r := NewUnionSet(p.ctx)
	if len(p.members) == 0 {
		return r
	}
	//
	for _, piece := range p.members[0].Pieces {
		r.add(piece.Domain.Clone())
	}
	//
	return r
}

func (p *MultiUnionPwAff) check() {
	if p.freed {
		panic("use of freed multi union pw aff")
	}
}

func (p *MultiUnionPwAff) String() string {
	p.check()
	//
	var members []string
	for _, m := range p.members {
		members = append(members, m.String())
	}
	//
	if p.outName != "" {
		return fmt.Sprintf("%s[%s]", p.outName, strings.Join(members, ", "))
	}
	//
	return fmt.Sprintf("[%s]", strings.Join(members, ", "))
}
