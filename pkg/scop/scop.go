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
package scop

import (
	"encoding/json"

	"github.com/hikettei/tadashi/pkg/frontend"
	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/tree"
	"github.com/hikettei/tadashi/pkg/util"
)

// Scop is the per-region session state: the immutable source metadata, the
// cached dependence relation, the accepted schedule (current), an optional
// in-flight candidate (scratch), and the strings handed out by the
// introspection surface.
type Scop struct {
	// info holds the front-end metadata (statements, accesses, arrays).
	info *frontend.ScopInfo
	// dependence caches the may-dependence relation of the region.
	dependence *poly.UnionMap
	// current is the accepted schedule.
	current tree.Cursor
	// scratch holds the in-flight candidate, if any.
	scratch util.Option[tree.Cursor]
	// dirty is set once any transformation has been committed.
	dirty bool
	// strings interns the introspection results handed out for this scop;
	// they stay valid until the record is released.
	strings []string
}

// Info returns the front-end metadata of this region.
func (p *Scop) Info() *frontend.ScopInfo {
	return p.info
}

// Current returns the accepted schedule cursor.
func (p *Scop) Current() tree.Cursor {
	return p.current
}

// Dirty reports whether any transformation has been committed.
func (p *Scop) Dirty() bool {
	return p.dirty
}

// addString interns a transient introspection result against this record.
func (p *Scop) addString(str string) string {
	p.strings = append(p.strings, str)
	return p.strings[len(p.strings)-1]
}

// free releases everything this record owns, in the reverse of allocation
// order: dependence, then scratch, then current; the front-end metadata goes
// last.
func (p *Scop) free() {
	p.strings = nil
	p.dependence.Free()
	//
	if p.scratch.HasValue() {
		p.scratch.Unwrap().Free()
		p.scratch = util.None[tree.Cursor]()
	}
	//
	p.current.Free()
	p.info.Free()
}

// computeDependences derives the may-dependence relation of a region from
// its access relations and original schedule: all pairs of accesses to a
// common cell, at least one of which writes, ordered strictly by the
// original schedule.  Kills by must-writes are not applied, which
// over-approximates the flow dependences and keeps the oracle conservative.
func computeDependences(info *frontend.ScopInfo, original tree.Node) (*poly.UnionMap, error) {
	schedule, err := tree.ScheduleMap(original)
	if err != nil {
		return nil, err
	}
	//
	var (
		reads  = info.MayReads
		writes = info.MayWrites
	)
	// raw: write then read of the same cell
	raw := writes.Copy().ApplyRange(reads.Copy().Inverse())
	// war: read then write of the same cell
	war := reads.Copy().ApplyRange(writes.Copy().Inverse())
	// waw: write then write of the same cell
	waw := writes.Copy().ApplyRange(writes.Copy().Inverse())
	//
	conflicts := raw.Union(war).Union(waw)
	// keep only pairs the original schedule orders strictly
	depth := scheduleArity(schedule)
	order := schedule.Copy().
		ApplyRange(scheduleLexLT(schedule.Ctx(), info.Params, depth)).
		ApplyRange(schedule.Copy().Inverse())
	//
	schedule.Free()
	//
	return conflicts.Intersect(order), nil
}

// scheduleArity reads the (uniform) schedule-point dimensionality.
func scheduleArity(schedule *poly.UnionMap) int {
	for _, m := range schedule.Maps() {
		return m.Space.Out.Arity()
	}
	//
	return 0
}

// scheduleLexLT wraps the strict lexicographic order as an owned relation.
func scheduleLexLT(ctx *poly.Ctx, params []string, n int) *poly.UnionMap {
	return poly.UnionMapFromMaps(ctx, poly.LexLT(params, n))
}

// signaturePiece is the serialised form of one piece of a band's loop
// signature.
type signaturePiece struct {
	Params []string `json:"params"`
	Vars   []string `json:"vars"`
}

// loopSignature renders the structured per-piece description of a band's
// partial schedule: the parameter names and iteration-variable names of each
// piece domain.
func loopSignature(band *tree.Band) string {
	pieces := make([]signaturePiece, 0)
	//
	if band.Schedule.Dim() > 0 {
		member := band.Schedule.Member(0)
		//
		for _, piece := range member.Pieces {
			space := piece.Domain.Space
			pieces = append(pieces, signaturePiece{
				Params: append([]string{}, space.Params...),
				Vars:   append([]string{}, space.Out.Dims...),
			})
		}
	}
	//
	data, err := json.Marshal(pieces)
	if err != nil {
		// the piece structure is always serialisable
		panic(err)
	}
	//
	return string(data)
}
