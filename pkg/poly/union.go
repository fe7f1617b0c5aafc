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
	"strings"
)

// UnionSet is an owned union of sets over distinct tuples.  Operations on
// union values follow the kernel's ownership protocol: they consume their
// operands (releasing them against the context) and return a freshly owned
// result.  Inspecting a union value does not consume it.
type UnionSet struct {
	ctx   *Ctx
	sets  []*Set
	freed bool
}

// NewUnionSet creates an empty union set.
func NewUnionSet(ctx *Ctx) *UnionSet {
	ctx.retain()
	return &UnionSet{ctx: ctx}
}

// UnionSetFromSets creates a union set holding the given per-tuple sets.
func UnionSetFromSets(ctx *Ctx, sets ...*Set) *UnionSet {
	r := NewUnionSet(ctx)
	//
	for _, s := range sets {
		r.add(s)
	}
	//
	return r
}

// Ctx returns the owning context.
func (p *UnionSet) Ctx() *Ctx {
	return p.ctx
}

// Free releases this value against its context.  Freeing twice is a bug.
func (p *UnionSet) Free() {
	if p.freed {
		panic("union set freed twice")
	}
	//
	p.freed = true
	p.sets = nil
	p.ctx.release()
}

// Copy creates a new owned copy of this value.
func (p *UnionSet) Copy() *UnionSet {
	p.check()
	//
	r := NewUnionSet(p.ctx)
	for _, s := range p.sets {
		r.sets = append(r.sets, s.Clone())
	}
	//
	return r
}

// Sets returns the per-tuple sets of this union, in insertion order.  The
// result is borrowed, not owned.
func (p *UnionSet) Sets() []*Set {
	p.check()
	return p.sets
}

// Lookup returns the set over the named tuple, or nil.
func (p *UnionSet) Lookup(name string) *Set {
	p.check()
	//
	for _, s := range p.sets {
		if s.Space.Out.Name == name {
			return s
		}
	}
	//
	return nil
}

// IsEmpty conservatively decides whether this union contains no point.
func (p *UnionSet) IsEmpty() bool {
	p.check()
	//
	for _, s := range p.sets {
		if !s.IsEmpty() {
			return false
		}
	}
	//
	return true
}

// Union merges two union sets, consuming both.
func (p *UnionSet) Union(other *UnionSet) *UnionSet {
	p.check()
	other.check()
	//
	r := p.Copy()
	//
	for _, s := range other.sets {
		r.add(s.Clone())
	}
	//
	p.Free()
	other.Free()
	//
	return r
}

// Intersect computes the pointwise intersection, consuming both operands.
func (p *UnionSet) Intersect(other *UnionSet) *UnionSet {
	p.check()
	other.check()
	//
	r := NewUnionSet(p.ctx)
	//
	for _, s := range p.sets {
		if o := other.Lookup(s.Space.Out.Name); o != nil && o.Space.Out.Equals(s.Space.Out) {
			r.add(s.Intersect(o))
		}
	}
	//
	p.Free()
	other.Free()
	//
	return r
}

// IsSubset conservatively checks containment of this union in the other.
// Neither operand is consumed.
func (p *UnionSet) IsSubset(other *UnionSet) bool {
	p.check()
	other.check()
	//
	for _, s := range p.sets {
		if s.IsEmpty() {
			continue
		}
		//
		o := other.Lookup(s.Space.Out.Name)
		if o == nil || !s.IsSubset(o) {
			return false
		}
	}
	//
	return true
}

// add merges a per-tuple set into this union in place.
func (p *UnionSet) add(s *Set) {
	for i, existing := range p.sets {
		if existing.Space.Out.Name == s.Space.Out.Name {
			p.sets[i] = existing.Union(s)
			return
		}
	}
	//
	p.sets = append(p.sets, s)
}

func (p *UnionSet) check() {
	if p.freed {
		panic("use of freed union set")
	}
}

func (p *UnionSet) String() string {
	p.check()
	//
	var (
		params []string
		pieces []string
	)
	//
	for _, s := range p.sets {
		params, _, _ = AlignParams(params, s.Space.Params)
	}
	//
	for _, s := range p.sets {
		for _, b := range s.Basics {
			pieces = append(pieces, b.body())
		}
	}
	//
	return wrapNotation(params, strings.Join(pieces, "; "))
}

// UnionMap is an owned union of relations over distinct tuple pairs,
// following the same ownership protocol as UnionSet.
type UnionMap struct {
	ctx   *Ctx
	maps  []*Map
	freed bool
}

// NewUnionMap creates an empty union map.
func NewUnionMap(ctx *Ctx) *UnionMap {
	ctx.retain()
	return &UnionMap{ctx: ctx}
}

// UnionMapFromMaps creates a union map holding the given relations.
func UnionMapFromMaps(ctx *Ctx, maps ...*Map) *UnionMap {
	r := NewUnionMap(ctx)
	//
	for _, m := range maps {
		r.add(m)
	}
	//
	return r
}

// Ctx returns the owning context.
func (p *UnionMap) Ctx() *Ctx {
	return p.ctx
}

// Free releases this value against its context.  Freeing twice is a bug.
func (p *UnionMap) Free() {
	if p.freed {
		panic("union map freed twice")
	}
	//
	p.freed = true
	p.maps = nil
	p.ctx.release()
}

// Copy creates a new owned copy of this value.
func (p *UnionMap) Copy() *UnionMap {
	p.check()
	//
	r := NewUnionMap(p.ctx)
	for _, m := range p.maps {
		r.maps = append(r.maps, m.Clone())
	}
	//
	return r
}

// Maps returns the per-tuple-pair relations of this union.  The result is
// borrowed, not owned.
func (p *UnionMap) Maps() []*Map {
	p.check()
	return p.maps
}

// IsEmpty conservatively decides whether this union relation is empty.
func (p *UnionMap) IsEmpty() bool {
	p.check()
	//
	for _, m := range p.maps {
		if !m.IsEmpty() {
			return false
		}
	}
	//
	return true
}

// Union merges two union maps, consuming both.
func (p *UnionMap) Union(other *UnionMap) *UnionMap {
	p.check()
	other.check()
	//
	r := p.Copy()
	//
	for _, m := range other.maps {
		r.add(m.Clone())
	}
	//
	p.Free()
	other.Free()
	//
	return r
}

// Inverse reverses every relation, consuming the operand.
func (p *UnionMap) Inverse() *UnionMap {
	p.check()
	//
	r := NewUnionMap(p.ctx)
	for _, m := range p.maps {
		r.maps = append(r.maps, m.Inverse())
	}
	//
	p.Free()
	//
	return r
}

// ApplyRange composes p with other where range tuples match input tuples,
// consuming both: { x -> other(y) : x -> y in p }.
func (p *UnionMap) ApplyRange(other *UnionMap) *UnionMap {
	p.check()
	other.check()
	//
	r := NewUnionMap(p.ctx)
	//
	for _, m := range p.maps {
		for _, o := range other.maps {
			if m.Space.Out.Equals(o.Space.In) {
				r.add(m.ApplyRange(o))
			}
		}
	}
	//
	p.Free()
	other.Free()
	//
	return r
}

// ApplyDomain rewrites the domain of p through other, consuming both:
// { other(x) -> y : x -> y in p }.
func (p *UnionMap) ApplyDomain(other *UnionMap) *UnionMap {
	p.check()
	other.check()
	//
	r := NewUnionMap(p.ctx)
	//
	for _, m := range p.maps {
		for _, o := range other.maps {
			if m.Space.In.Equals(o.Space.In) {
				r.add(o.Inverse().ApplyRange(m))
			}
		}
	}
	//
	p.Free()
	other.Free()
	//
	return r
}

// Intersect computes the pointwise intersection over matching tuple pairs,
// consuming both operands.
func (p *UnionMap) Intersect(other *UnionMap) *UnionMap {
	p.check()
	other.check()
	//
	r := NewUnionMap(p.ctx)
	//
	for _, m := range p.maps {
		for _, o := range other.maps {
			if m.Space.In.Equals(o.Space.In) && m.Space.Out.Equals(o.Space.Out) {
				r.add(m.Intersect(o))
			}
		}
	}
	//
	p.Free()
	other.Free()
	//
	return r
}

// Deltas computes the union of out - in difference sets, consuming the
// operand.  All relations must pair tuples of equal arity.
func (p *UnionMap) Deltas() *UnionSet {
	p.check()
	//
	r := NewUnionSet(p.ctx)
	for _, m := range p.maps {
		r.add(m.Deltas())
	}
	//
	p.Free()
	//
	return r
}

// Range projects onto output tuples, consuming the operand.
func (p *UnionMap) Range() *UnionSet {
	p.check()
	//
	r := NewUnionSet(p.ctx)
	for _, m := range p.maps {
		r.add(m.Range())
	}
	//
	p.Free()
	//
	return r
}

// add merges a relation into this union in place.
func (p *UnionMap) add(m *Map) {
	for i, existing := range p.maps {
		if existing.Space.In.Equals(m.Space.In) && existing.Space.Out.Equals(m.Space.Out) {
			p.maps[i] = existing.Union(m)
			return
		}
	}
	//
	p.maps = append(p.maps, m)
}

func (p *UnionMap) check() {
	if p.freed {
		panic("use of freed union map")
	}
}

func (p *UnionMap) String() string {
	p.check()
	//
	var (
		params []string
		pieces []string
	)
	//
	for _, m := range p.maps {
		params, _, _ = AlignParams(params, m.Space.Params)
	}
	//
	for _, m := range p.maps {
		for _, b := range m.Basics {
			names := systemNames(b.Space, &b.sys)
			head := fmt.Sprintf("%s -> %s", b.Space.In.String(), b.Space.Out.String())
			//
			if cs := renderConstraints(&b.sys, names); cs != "" {
				head = fmt.Sprintf("%s : %s", head, cs)
			}
			//
			pieces = append(pieces, head)
		}
	}
	//
	return wrapNotation(params, strings.Join(pieces, "; "))
}
